// Package terminal implements the console front-end for an agent session.
//
// It prints a short banner, initializes the session, then reads lines from
// its input and submits each one as a turn:
//
//	s := agent.NewSession(agent.Options{Logger: logger})
//	term := terminal.New(s)
//	err := term.Run(ctx, mcpagent.NewBuilder(cfg, logger))
//
// Blank lines are ignored. "exit" or "quit", in any letter case, end the
// loop without recording a turn, as do end of input and cancellation of ctx.
// The session is shut down when Run returns, closing the protocol
// connection if one was opened.
//
// Role labels are styled with lipgloss; output that is not a terminal gets
// plain text.
package terminal
