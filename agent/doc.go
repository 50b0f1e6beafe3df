// Package agent provides the session and turn loop shared by the mcpchat
// front-ends.
//
// A Session owns one transcript and one agent handle. The handle is built
// once by a BuildFunc during Initialize and reused for every turn; Shutdown
// closes the protocol connection behind it.
//
// # Lifecycle
//
//	UNINITIALIZED --Initialize ok--> READY --Shutdown--> CLOSED
//	UNINITIALIZED --Initialize fails--> FAILED --Shutdown--> CLOSED
//
// Submit is accepted only in READY. A failed Initialize is reported through
// Status rather than an error, so front-ends can render it as a connection
// indicator and keep running.
//
// # Call shapes
//
// The agent object may implement Runner, Invoker or AsyncInvoker. Resolve
// picks one, in that order, when the session initializes. A handle exposing
// none of them still yields a turn: the reply is UnsupportedMessage.
//
// # Failure boundaries
//
// Errors returned (or panics raised) by the agent call become the reply
// "❌ Error: <message>". Failures starting or awaiting the call, including a
// configured turn timeout, become "❌ Failed to get response: <message>".
// Either way the user and assistant turns are both recorded, so a transcript
// holds exactly two turns per Submit.
//
// # Usage
//
//	sess := agent.NewSession(agent.Options{Logger: logger})
//	if !sess.Initialize(ctx, build) {
//	    fmt.Println(sess.Status())
//	}
//	defer sess.Shutdown(context.Background())
//
//	reply, err := sess.Submit(ctx, "open example.com and summarize it")
//
// # Subpackages
//
// agent/terminal runs the console read loop. agent/web serves the chat page
// and assigns one Session to each browser session.
package agent
