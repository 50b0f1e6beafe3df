// Package web serves the browser chat UI for agent sessions.
//
// Each browser is identified by a cookie and gets its own agent.Session,
// built with the server's BuildFunc the first time it loads the page. Form
// posts and websocket requests without a known session do not create one.
// Sessions unused for Options.IdleTimeout are shut down, and at most
// Options.MaxSessions are kept, evicting the least recently used.
// Routes:
//
//	GET  /         chat page: transcript, status indicator, statistics
//	POST /chat     submit the "prompt" form field as one turn
//	POST /clear    empty the transcript
//	POST /theme    toggle between light and dark mode
//	GET  /ws       websocket chat, used by the page when scripts run
//	GET  /healthz  liveness and live session count
//
// A browser whose session failed to initialize sees the failure status and
// cannot chat; /chat answers 409 Conflict. Shutdown closes every session's
// protocol connection.
package web
