package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type runOnly struct{}

func (runOnly) Run(context.Context, string) (string, error) { return "run", nil }

type invokeOnly struct{}

func (invokeOnly) Invoke(context.Context, string) (string, error) { return "invoke", nil }

type asyncOnly struct{}

func (asyncOnly) AInvoke(context.Context, string) <-chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Text: "ainvoke"}
	return ch
}

type everything struct {
	runOnly
	invokeOnly
	asyncOnly
}

type invokeAndAsync struct {
	invokeOnly
	asyncOnly
}

func TestResolvePreferenceOrder(t *testing.T) {
	tests := []struct {
		name   string
		handle any
		want   CapabilityKind
	}{
		{"all three prefer run", everything{}, CapabilityRun},
		{"invoke before ainvoke", invokeAndAsync{}, CapabilityInvoke},
		{"run only", runOnly{}, CapabilityRun},
		{"ainvoke only", asyncOnly{}, CapabilityAsyncInvoke},
		{"nothing", struct{}{}, CapabilityNone},
		{"nil handle", nil, CapabilityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.handle).Kind())
		})
	}
}

func TestDispatchUsesResolvedShape(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "run", dispatch(ctx, Resolve(everything{}), "q"))
	assert.Equal(t, "invoke", dispatch(ctx, Resolve(invokeAndAsync{}), "q"))
	assert.Equal(t, "ainvoke", dispatch(ctx, Resolve(asyncOnly{}), "q"))
	assert.Equal(t, UnsupportedMessage, dispatch(ctx, Resolve(struct{}{}), "q"))
}

func TestCapabilityKindString(t *testing.T) {
	assert.Equal(t, "run", CapabilityRun.String())
	assert.Equal(t, "invoke", CapabilityInvoke.String())
	assert.Equal(t, "ainvoke", CapabilityAsyncInvoke.String())
	assert.Equal(t, "none", CapabilityNone.String())
}
