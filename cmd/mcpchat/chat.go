package main

import (
	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/agent/terminal"
	"github.com/m4xw311/mcpchat/config"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/mcpagent"
	"github.com/m4xw311/mcpchat/session"
	"github.com/spf13/cobra"
)

const defaultConsoleMCPConfig = "browser_mcp.json"

type chatFlags struct {
	mcpConfig string
	session   string
	resume    string
}

func newChatCmd(g *globalFlags) *cobra.Command {
	f := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in the console",
		Long: `Start a console chat. Type "exit" or "quit" to leave.
MCP servers are read from --mcp-config (browser_mcp.json by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			if cmd.Flags().Changed("mcp-config") || cfg.MCPConfig == "" {
				cfg.MCPConfig = f.mcpConfig
			}

			tr, err := openTranscript(cfg, f)
			if err != nil {
				return err
			}

			s := agent.NewSession(agent.Options{
				TurnTimeout: cfg.TurnTimeout,
				Logger:      logger.Logger,
				Transcript:  tr,
			})
			term := terminal.New(s, terminal.WithInput(cmd.InOrStdin()), terminal.WithOutput(cmd.OutOrStdout()))
			build := mcpagent.NewBuilder(cfg, logger.Logger, mcpagent.WithHistory(tr.All()))
			return term.Run(cmd.Context(), build)
		},
	}

	cmd.Flags().StringVar(&f.mcpConfig, "mcp-config", defaultConsoleMCPConfig, "MCP servers file")
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "save the conversation under this name")
	cmd.Flags().StringVarP(&f.resume, "resume", "r", "", "resume a saved conversation by name")
	cmd.MarkFlagsMutuallyExclusive("session", "resume")
	return cmd
}

func openTranscript(cfg *config.Config, f *chatFlags) (*session.Transcript, error) {
	switch {
	case f.resume != "":
		tr, err := session.Load(cfg.SessionsDir, f.resume)
		if err != nil {
			return nil, errors.Wrapf(err, "error resuming session '%s'", f.resume)
		}
		return tr, nil
	case f.session != "":
		tr, err := session.NewNamed(cfg.SessionsDir, f.session)
		if err != nil {
			return nil, errors.Wrapf(err, "error creating session '%s'", f.session)
		}
		return tr, nil
	default:
		return session.New(), nil
	}
}
