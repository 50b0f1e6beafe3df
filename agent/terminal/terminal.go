package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/session"
)

// Words that end the chat loop, compared case-insensitively.
var exitWords = []string{"exit", "quit"}

type theme struct {
	you       lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	failure   lipgloss.Style
}

func newTheme(out io.Writer) theme {
	r := lipgloss.NewRenderer(out)
	return theme{
		you:       r.NewStyle().Foreground(lipgloss.Color("#01cdfe")).Bold(true),
		assistant: r.NewStyle().Foreground(lipgloss.Color("#05ffa1")).Bold(true),
		notice:    r.NewStyle().Foreground(lipgloss.Color("#9ca3d8")),
		failure:   r.NewStyle().Foreground(lipgloss.Color("#ff71ce")).Bold(true),
	}
}

// Terminal runs the console chat loop for one agent session.
type Terminal struct {
	session *agent.Session
	in      io.Reader
	out     io.Writer
	theme   theme
}

type Option func(*Terminal)

// WithInput reads user lines from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(t *Terminal) { t.in = r }
}

// WithOutput writes the conversation to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(t *Terminal) { t.out = w }
}

// New creates a new Terminal for s.
func New(s *agent.Session, opts ...Option) *Terminal {
	t := &Terminal{
		session: s,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.theme = newTheme(t.out)
	return t
}

// Run initializes the session with build, chats until an exit word, end of
// input or ctx cancellation, and always shuts the session down. It returns an
// error only if the session could not be initialized.
func (t *Terminal) Run(ctx context.Context, build agent.BuildFunc) error {
	defer func() {
		if err := t.session.Shutdown(context.WithoutCancel(ctx)); err != nil {
			t.printf("%s\n", t.theme.failure.Render(fmt.Sprintf("Error during shutdown: %v", err)))
		}
	}()

	t.println(t.theme.notice.Render("Starting MCP Server..."))
	if !t.session.Initialize(ctx, build) {
		t.println(t.theme.failure.Render(t.session.Status()))
		return errors.New("%s", t.session.Status())
	}
	t.println(t.theme.notice.Render("MCP Server started successfully."))

	// Replay a resumed conversation so the user sees where it left off.
	for _, turn := range t.session.Transcript().All() {
		t.printf("%s %s\n", t.label(turn.Role), turn.Text)
	}

	t.println(t.theme.notice.Render("Starting chat..."))
	t.loop(ctx)
	return nil
}

func (t *Terminal) loop(ctx context.Context) {
	lines := readLines(t.in)
	for {
		t.printf("%s ", t.theme.you.Render("You:"))

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			t.println("")
			return
		case line, ok = <-lines:
		}
		if !ok {
			t.println("")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExitWord(input) {
			t.println(t.theme.notice.Render("Exiting chat..."))
			return
		}

		t.printf("\n%s ", t.theme.assistant.Render("Assistant:"))
		reply, err := t.session.Submit(ctx, input)
		if err != nil {
			t.println(t.theme.failure.Render(fmt.Sprintf("Error during chat: %s", errors.Message(err))))
			continue
		}
		t.println(reply)
	}
}

func (t *Terminal) label(role session.Role) string {
	if role == session.RoleUser {
		return t.theme.you.Render("You:")
	}
	return t.theme.assistant.Render("Assistant:")
}

func (t *Terminal) printf(format string, a ...any) { fmt.Fprintf(t.out, format, a...) }
func (t *Terminal) println(s string)               { fmt.Fprintln(t.out, s) }

func isExitWord(input string) bool {
	for _, w := range exitWords {
		if strings.EqualFold(input, w) {
			return true
		}
	}
	return false
}

// readLines delivers lines from r until EOF or a read error. The goroutine
// stays blocked on r if nobody reads; for stdin that ends with the process.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
