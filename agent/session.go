package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/session"
	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned by Submit unless the session initialized
	// successfully and has not been shut down.
	ErrNotReady = fmt.Errorf("session is not ready")
	// ErrEmptyInput is returned by Submit for blank input.
	ErrEmptyInput = fmt.Errorf("input is empty")
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Connection is the protocol client an agent handle depends on. Only the
// Session opens or closes it.
type Connection interface {
	IsConnected() bool
	CloseAllSessions(ctx context.Context) error
}

// Handle is what a BuildFunc produces: the agent object (exposing some subset
// of Runner, Invoker and AsyncInvoker) and the connection it reads through.
// Conn may be nil.
type Handle struct {
	Agent any
	Conn  Connection
}

// BuildFunc constructs the agent handle for a session.
type BuildFunc func(ctx context.Context) (*Handle, error)

// Options tune a Session.
type Options struct {
	// TurnTimeout bounds each Submit. Zero means a hung agent call blocks
	// the turn indefinitely.
	TurnTimeout time.Duration
	Logger      zerolog.Logger
	// Transcript to record turns in; a fresh in-memory transcript is used
	// when nil.
	Transcript *session.Transcript
}

// Session holds one transcript and one agent handle. Submit calls are
// serialized: at most one agent invocation is in flight per session.
type Session struct {
	transcript *session.Transcript
	timeout    time.Duration
	log        zerolog.Logger

	// turnMu serializes Submit and is held for the whole turn.
	turnMu sync.Mutex
	// inflight is closed when the last started agent call returns. A turn
	// that timed out leaves it open. Guarded by turnMu.
	inflight <-chan struct{}

	mu         sync.RWMutex
	state      State
	status     string
	handle     *Handle
	capability Capability
}

// NewSession creates a session in the UNINITIALIZED state.
func NewSession(opts Options) *Session {
	tr := opts.Transcript
	if tr == nil {
		tr = session.New()
	}
	return &Session{
		transcript: tr,
		timeout:    opts.TurnTimeout,
		log:        opts.Logger.With().Str("session", tr.ID).Logger(),
		state:      StateUninitialized,
	}
}

// Initialize builds the agent handle and resolves its call shape. Failures,
// including panics inside build, leave the session FAILED with a readable
// Status; Initialize never panics and never returns an error for them.
func (s *Session) Initialize(ctx context.Context, build BuildFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		s.log.Warn().Str("state", s.state.String()).Msg("initialize called twice")
		return s.state == StateReady
	}

	handle, err := safeBuild(ctx, build)
	if err == nil && handle == nil {
		err = errors.New("agent builder returned no handle")
	}
	if err != nil {
		s.state = StateFailed
		s.status = fmt.Sprintf("Failed to initialize agent: %s", errors.Message(err))
		s.log.Error().Err(err).Msg("agent initialization failed")
		return false
	}

	s.handle = handle
	s.capability = Resolve(handle.Agent)
	s.state = StateReady
	s.status = "MCP Agent Connected"
	s.log.Info().Str("capability", s.capability.Kind().String()).Msg("agent ready")
	return true
}

func safeBuild(ctx context.Context, build BuildFunc) (handle *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle, err = nil, errors.Recover(r)
		}
	}()
	if build == nil {
		return nil, errors.New("no agent builder configured")
	}
	return build(ctx)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether Submit may be called.
func (s *Session) Ready() bool { return s.State() == StateReady }

// Status is a human-readable line describing the initialize outcome.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ID identifies the session's transcript.
func (s *Session) ID() string { return s.transcript.ID }

// Transcript exposes the session's transcript store.
func (s *Session) Transcript() *session.Transcript { return s.transcript }

// Clear empties the transcript. Agent-side memory is not affected.
func (s *Session) Clear() {
	s.transcript.Clear()
	if err := s.transcript.Save(); err != nil {
		s.log.Warn().Err(err).Msg("failed to save transcript")
	}
}

// Submit runs one turn: it records userText, calls the agent and records the
// reply, which it also returns. Agent failures never surface as errors; they
// become the reply text. The returned error is non-nil only when no turn was
// recorded (ErrNotReady, ErrEmptyInput).
func (s *Session) Submit(ctx context.Context, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrEmptyInput
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.RLock()
	state, capability := s.state, s.capability
	s.mu.RUnlock()
	if state != StateReady {
		return "", errors.Wrapf(ErrNotReady, "state %s", state)
	}

	if err := s.transcript.Append(session.Turn{Role: session.RoleUser, Text: userText}); err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var reply string
	if err := waitIdle(ctx, s.inflight); err != nil {
		s.log.Warn().Err(err).Msg("previous agent call still running")
		reply = formatDispatchFailure(err)
	} else {
		var done <-chan struct{}
		reply, done = dispatch(ctx, capability, userText)
		s.inflight = done
	}
	s.log.Debug().
		Str("capability", capability.Kind().String()).
		Dur("elapsed", time.Since(start)).
		Msg("turn completed")

	if err := s.transcript.Append(session.Turn{Role: session.RoleAssistant, Text: reply}); err != nil {
		return "", err
	}
	if err := s.transcript.Save(); err != nil {
		s.log.Warn().Err(err).Msg("failed to save transcript")
	}
	return reply, nil
}

// waitIdle blocks until the previous agent call has returned or ctx is done.
func waitIdle(ctx context.Context, inflight <-chan struct{}) error {
	if inflight == nil {
		return nil
	}
	select {
	case <-inflight:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "previous turn is still running")
	}
}

// dispatch is the outer failure boundary around starting and awaiting the
// agent task. done is closed when the agent call returns, or is nil if no
// call was started.
func dispatch(ctx context.Context, c Capability, input string) (reply string, done <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			reply = formatDispatchFailure(errors.Recover(r))
		}
	}()

	t, err := c.start(ctx, input)
	if err != nil {
		return formatDispatchFailure(err), nil
	}
	reply, err = t.await(ctx)
	if err != nil {
		return formatDispatchFailure(err), t.done
	}
	return reply, t.done
}

// Shutdown releases the connection and moves the session to CLOSED. The
// connection is closed only if it reports being connected. Calling Shutdown
// again, or after a failed Initialize, does nothing. A turn still in flight
// sees its calls fail once the connection is gone.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	handle := s.handle
	s.state = StateClosed
	s.handle = nil
	s.capability = Capability{}
	s.mu.Unlock()

	if handle == nil || handle.Conn == nil || !handle.Conn.IsConnected() {
		return nil
	}
	s.log.Info().Msg("closing agent connection")
	if err := handle.Conn.CloseAllSessions(ctx); err != nil {
		return errors.Wrapf(err, "failed to close agent connection")
	}
	return nil
}
