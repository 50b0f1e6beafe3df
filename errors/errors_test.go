package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCallSite(t *testing.T) {
	err := New("agent %s is gone", "primary")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "[errors_test.go:"), err.Error())
	assert.Contains(t, err.Error(), "agent primary is gone")
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, Wrapf(nil, "ignored"))

	base := fmt.Errorf("dial tcp: refused")
	err := Wrapf(base, "failed to connect to MCP server '%s'", "browser")
	require.Error(t, err)
	assert.True(t, Is(err, base))
	assert.Contains(t, err.Error(), "failed to connect to MCP server 'browser': dial tcp: refused")
}

type codeErr struct{ code int }

func (c *codeErr) Error() string { return fmt.Sprintf("code %d", c.code) }

func TestAs(t *testing.T) {
	err := Wrapf(&codeErr{code: 7}, "call")
	var target *codeErr
	require.True(t, As(err, &target))
	assert.Equal(t, 7, target.code)
}

func TestRecover(t *testing.T) {
	assert.Nil(t, Recover(nil))

	base := fmt.Errorf("boom")
	assert.Same(t, base, Recover(base))
	assert.EqualError(t, Recover("tool exploded"), "tool exploded")
	assert.EqualError(t, Recover(42), "42")
}

func TestJoin(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	a, b := fmt.Errorf("close a"), fmt.Errorf("close b")
	err := Join(a, nil, b)
	assert.True(t, Is(err, a))
	assert.True(t, Is(err, b))
}

func TestMessageDropsCallSites(t *testing.T) {
	assert.Equal(t, "", Message(nil))

	err := Wrapf(New("GROQ_API_KEY environment variable not set"), "failed to create %s client", "groq")
	assert.Contains(t, err.Error(), "[errors_test.go:")
	assert.Equal(t, "failed to create groq client: GROQ_API_KEY environment variable not set", Message(err))

	assert.Equal(t, "list [a b] failed", Message(fmt.Errorf("list [a b] failed")))
}
