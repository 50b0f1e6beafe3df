package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/session"
	"github.com/rs/zerolog"
)

const (
	sessionCookie = "mcpchat_session"
	themeCookie   = "mcpchat_theme"

	// Shown in place of the chat input when the agent failed to initialize.
	cannotProceedMessage = "❌ Cannot proceed without MCP Agent. Please check your configuration."
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxSessions = 64
)

var (
	// ErrServerClosed is returned for requests that arrive after Shutdown.
	ErrServerClosed = fmt.Errorf("web server is shut down")
	// errNoSession is returned for requests that need an existing browser
	// session but carry no known session cookie.
	errNoSession = fmt.Errorf("no chat session, load the page first")
)

type Options struct {
	// Title is shown in the page header and browser tab.
	Title string
	// Build creates the agent handle for each new browser session.
	Build       agent.BuildFunc
	TurnTimeout time.Duration
	// IdleTimeout shuts down browser sessions unused for this long.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration
	// MaxSessions caps live browser sessions; creating one more shuts down
	// the least recently used. Zero means DefaultMaxSessions.
	MaxSessions int
	Logger      zerolog.Logger
}

// browserSession is one browser's agent session and when it was last used.
// lastUsed is guarded by Server.mu.
type browserSession struct {
	id       string
	session  *agent.Session
	init     sync.Once
	lastUsed time.Time
}

// Server is the web front-end. Each browser, identified by a cookie, gets
// its own agent session, initialized on first use and shut down with the
// server.
type Server struct {
	opts   Options
	log    zerolog.Logger
	router chi.Router

	// now is called with mu held.
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*browserSession
	closed   bool
	done     chan struct{}
}

// New creates a Server. Nothing is initialized until a browser connects.
func New(opts Options) *Server {
	if opts.Title == "" {
		opts.Title = "MCP AI Assistant"
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	s := &Server{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "web").Logger(),
		now:      time.Now,
		sessions: make(map[string]*browserSession),
		done:     make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/chat", s.handleChat)
	r.Post("/clear", s.handleClear)
	r.Post("/theme", s.handleTheme)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	return r
}

// Handler returns the HTTP handler serving the chat UI.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then stops the HTTP
// server and shuts every agent session down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	go s.sweep(ctx)
	s.log.Info().Str("addr", addr).Msg("web server listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = s.Shutdown(context.WithoutCancel(ctx))
			return errors.Wrapf(err, "web server failed")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown")
	}
	return s.Shutdown(shutdownCtx)
}

// Shutdown shuts down every browser session. Later requests get
// ErrServerClosed. Calling it again does nothing.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	var all []*browserSession
	for _, b := range s.sessions {
		all = append(all, b)
	}
	s.sessions = make(map[string]*browserSession)
	s.mu.Unlock()

	return s.shutdownAll(ctx, all)
}

func (s *Server) shutdownAll(ctx context.Context, sessions []*browserSession) error {
	var errs []error
	for _, b := range sessions {
		if err := b.session.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Str("browser", b.id).Msg("session shutdown failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionCount reports how many browser sessions are live.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep evicts idle sessions until ctx is done or the server shuts down.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.opts.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle(ctx)
		}
	}
}

// evictIdle shuts down sessions unused for longer than the idle timeout and
// returns how many it removed.
func (s *Server) evictIdle(ctx context.Context) int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.opts.IdleTimeout)
	var idle []*browserSession
	for id, b := range s.sessions {
		if b.lastUsed.Before(cutoff) {
			idle = append(idle, b)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	if len(idle) > 0 {
		s.log.Info().Int("count", len(idle)).Msg("evicting idle browser sessions")
		_ = s.shutdownAll(context.WithoutCancel(ctx), idle)
	}
	return len(idle)
}

// sessionFor returns the browser's session and marks it used. Only when
// create is set does a browser without a known session get a new one,
// initialized here, with a session cookie set if the request had none.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request, create bool) (*browserSession, error) {
	id := browserID(r)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServerClosed
	}
	b, ok := s.sessions[id]
	if ok {
		b.lastUsed = s.now()
		s.mu.Unlock()
		s.initialize(r, b)
		return b, nil
	}
	if !create {
		s.mu.Unlock()
		return nil, errNoSession
	}

	newCookie := id == ""
	if newCookie {
		id = uuid.Must(uuid.NewV7()).String()
	}
	evicted := s.evictOldestLocked()
	b = &browserSession{
		id: id,
		session: agent.NewSession(agent.Options{
			TurnTimeout: s.opts.TurnTimeout,
			Logger:      s.log.With().Str("browser", id).Logger(),
			Transcript:  session.New(),
		}),
		lastUsed: s.now(),
	}
	s.sessions[id] = b
	s.mu.Unlock()

	if evicted != nil {
		s.log.Info().Str("browser", evicted.id).Msg("session limit reached, evicting least recently used")
		_ = s.shutdownAll(context.WithoutCancel(r.Context()), []*browserSession{evicted})
	}
	if newCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	s.initialize(r, b)
	return b, nil
}

// initialize builds the session's agent once; concurrent first requests
// wait for it.
func (s *Server) initialize(r *http.Request, b *browserSession) {
	b.init.Do(func() {
		// The handle outlives this request.
		b.session.Initialize(context.WithoutCancel(r.Context()), s.opts.Build)
	})
}

// touch marks b as used now.
func (s *Server) touch(b *browserSession) {
	s.mu.Lock()
	b.lastUsed = s.now()
	s.mu.Unlock()
}

// evictOldestLocked removes the least recently used session when the
// registry is full. s.mu must be held.
func (s *Server) evictOldestLocked() *browserSession {
	if len(s.sessions) < s.opts.MaxSessions {
		return nil
	}
	var oldest *browserSession
	for _, b := range s.sessions {
		if oldest == nil || b.lastUsed.Before(oldest.lastUsed) {
			oldest = b
		}
	}
	delete(s.sessions, oldest.id)
	return oldest
}

func browserID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func darkMode(r *http.Request) bool {
	c, err := r.Cookie(themeCookie)
	return err == nil && c.Value == "dark"
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := s.sessionFor(w, r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.render(w, http.StatusOK, s.view(r, b.session, ""))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	b, ok := s.existingSession(w, r)
	if !ok {
		return
	}
	sess := b.session
	if !sess.Ready() {
		s.render(w, http.StatusConflict, s.view(r, sess, cannotProceedMessage))
		return
	}

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt != "" {
		if _, err := sess.Submit(r.Context(), prompt); err != nil {
			s.render(w, http.StatusConflict, s.view(r, sess, submitError(err)))
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	b, ok := s.existingSession(w, r)
	if !ok {
		return
	}
	b.session.Clear()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// existingSession looks up the browser's session for a form post. A browser
// without one is sent to the page, which creates it.
func (s *Server) existingSession(w http.ResponseWriter, r *http.Request) (*browserSession, bool) {
	b, err := s.sessionFor(w, r, false)
	switch {
	case errors.Is(err, errNoSession):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	return b, true
}

// submitError is the text shown for a turn that was not recorded.
func submitError(err error) string {
	if errors.Is(err, agent.ErrNotReady) {
		return cannotProceedMessage
	}
	return errors.Message(err)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	next := "dark"
	if darkMode(r) {
		next = "light"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	count := len(s.sessions)
	s.mu.Unlock()

	status, code := "ok", http.StatusOK
	if closed {
		status, code = "closed", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "sessions": count})
}
