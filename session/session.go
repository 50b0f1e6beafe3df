package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/m4xw311/mcpchat/errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ErrInvalidRole is returned by Append for a turn whose role is not user or
// assistant.
var ErrInvalidRole = fmt.Errorf("invalid turn role")

// Turn is one role-tagged message. Turns are values; the transcript hands out
// copies so a stored turn cannot be changed after insertion.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Transcript is the ordered conversation history of one session. Turns are
// only reachable through Append, Clear and the copying accessors.
type Transcript struct {
	ID   string
	Name string

	mu    sync.RWMutex
	turns []Turn
	path  string
}

// transcriptFile is the on-disk form of a Transcript.
type transcriptFile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Turns []Turn `json:"messages"`
}

// New creates an empty, unsaved transcript.
func New() *Transcript {
	return &Transcript{
		ID:    uuid.Must(uuid.NewV7()).String(),
		turns: []Turn{},
	}
}

// NewNamed creates an empty transcript that Save writes to
// <dir>/<name>.json.
func NewNamed(dir, name string) (*Transcript, error) {
	path, err := transcriptPath(dir, name)
	if err != nil {
		return nil, err
	}
	t := New()
	t.Name = name
	t.path = path
	return t, nil
}

// Load reads a transcript previously written by Save.
func Load(dir, name string) (*Transcript, error) {
	path, err := transcriptPath(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read session file %s", path)
	}

	t := &Transcript{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, errors.Wrapf(err, "could not parse session file %s", path)
	}
	t.Name = name
	t.path = path
	return t, nil
}

// MarshalJSON encodes the transcript as {"id", "name", "messages"}.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	f := transcriptFile{ID: t.ID, Name: t.Name, Turns: t.turns}
	data, err := json.Marshal(f)
	t.mu.RUnlock()
	return data, err
}

// UnmarshalJSON decodes the form written by MarshalJSON. Every turn must
// have a valid role; a missing id gets a fresh one.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var f transcriptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	for i, turn := range f.Turns {
		if !turn.Role.Valid() {
			return errors.Wrapf(ErrInvalidRole, "turn %d has role %q", i, turn.Role)
		}
	}
	if f.Turns == nil {
		f.Turns = []Turn{}
	}
	if f.ID == "" {
		f.ID = uuid.Must(uuid.NewV7()).String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ID, t.Name, t.turns = f.ID, f.Name, f.Turns
	return nil
}

// Append adds a turn at the end of the transcript.
func (t *Transcript) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return errors.Wrapf(ErrInvalidRole, "role %q", turn.Role)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
	return nil
}

// Clear replaces the history with an empty sequence.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = []Turn{}
}

// All returns a copy of the turns in conversation order.
func (t *Transcript) All() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.turns)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Count returns the number of turns with the given role.
func (t *Transcript) Count(role Role) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, turn := range t.turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Persistent reports whether Save writes anywhere.
func (t *Transcript) Persistent() bool {
	return t.path != ""
}

// Save writes the transcript to disk. It is a no-op for transcripts created
// with New.
func (t *Transcript) Save() error {
	if t.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize session")
	}
	return os.WriteFile(t.path, data, 0644)
}

func transcriptPath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errors.New("invalid session name %q", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create session directory")
	}
	return filepath.Join(dir, fmt.Sprintf("%s.json", name)), nil
}
