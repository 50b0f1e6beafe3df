package agent

import (
	"context"
	"fmt"

	"github.com/m4xw311/mcpchat/errors"
)

// Reply strings appended to the transcript in place of a real answer.
const (
	UnsupportedMessage = "⚠️ MCPAgent has no supported method (`run`, `invoke`, or `ainvoke`)."
	callErrorPrefix    = "❌ Error: "
	dispatchFailPrefix = "❌ Failed to get response: "
)

// Runner is the synchronous call shape.
type Runner interface {
	Run(ctx context.Context, input string) (string, error)
}

// Invoker is the alternative synchronous call shape.
type Invoker interface {
	Invoke(ctx context.Context, input string) (string, error)
}

// Result is delivered by an AsyncInvoker.
type Result struct {
	Text string
	Err  error
}

// AsyncInvoker starts a call and delivers exactly one Result on the returned
// channel, or closes it. The call counts as running until then, even after
// the turn waiting on it has timed out.
type AsyncInvoker interface {
	AInvoke(ctx context.Context, input string) <-chan Result
}

// CapabilityKind tags the call shape chosen for an agent handle.
type CapabilityKind int

const (
	CapabilityNone CapabilityKind = iota
	CapabilityRun
	CapabilityInvoke
	CapabilityAsyncInvoke
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilityRun:
		return "run"
	case CapabilityInvoke:
		return "invoke"
	case CapabilityAsyncInvoke:
		return "ainvoke"
	default:
		return "none"
	}
}

// Capability is the call shape resolved for one agent handle. The zero value
// is CapabilityNone.
type Capability struct {
	kind   CapabilityKind
	run    Runner
	invoke Invoker
	async  AsyncInvoker
}

// Resolve picks the first call shape the handle implements, in the order
// Run, Invoke, AInvoke.
func Resolve(handle any) Capability {
	if r, ok := handle.(Runner); ok {
		return Capability{kind: CapabilityRun, run: r}
	}
	if i, ok := handle.(Invoker); ok {
		return Capability{kind: CapabilityInvoke, invoke: i}
	}
	if a, ok := handle.(AsyncInvoker); ok {
		return Capability{kind: CapabilityAsyncInvoke, async: a}
	}
	return Capability{}
}

func (c Capability) Kind() CapabilityKind { return c.kind }

// task is the single awaited unit of work for one turn. reply yields the
// text already formatted by the per-call boundary; done is closed once the
// agent call itself has returned, which may be after the turn gave up on it.
type task struct {
	reply <-chan string
	done  <-chan struct{}
}

// start launches the call for input. Errors returned or raised by the agent
// inside the call are folded into the reply as "❌ Error: ..."; an error
// returned from start itself, or a panic while starting, belongs to the
// outer dispatch boundary.
func (c Capability) start(ctx context.Context, input string) (task, error) {
	out := make(chan string, 1)
	done := make(chan struct{})

	switch c.kind {
	case CapabilityNone:
		out <- UnsupportedMessage
		close(done)
		return task{reply: out, done: done}, nil

	case CapabilityRun, CapabilityInvoke:
		call := c.invokeFunc()
		go func() {
			defer close(done)
			out <- guardedCall(func() (string, error) { return call(ctx, input) })
		}()
		return task{reply: out, done: done}, nil

	case CapabilityAsyncInvoke:
		results := c.async.AInvoke(ctx, input)
		if results == nil {
			return task{}, errors.New("agent returned no task")
		}
		// The agent owns the call until it delivers or closes results.
		go func() {
			defer close(done)
			res, ok := <-results
			if !ok {
				// Closed without a result: the await itself failed.
				close(out)
				return
			}
			out <- formatCall(res.Text, res.Err)
		}()
		return task{reply: out, done: done}, nil
	}

	return task{}, fmt.Errorf("unknown capability %d", c.kind)
}

func (c Capability) invokeFunc() func(context.Context, string) (string, error) {
	if c.kind == CapabilityRun {
		return c.run.Run
	}
	return c.invoke.Invoke
}

// await blocks until the task yields or ctx is done. Once ctx is done its
// error wins over a reply that raced with it.
func (t task) await(ctx context.Context) (string, error) {
	select {
	case reply, ok := <-t.reply:
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !ok {
			return "", errors.New("agent task ended without a result")
		}
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func guardedCall(call func() (string, error)) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			reply = callErrorPrefix + errors.Message(errors.Recover(r))
		}
	}()
	return formatCall(call())
}

func formatCall(text string, err error) string {
	if err != nil {
		return callErrorPrefix + errors.Message(err)
	}
	return text
}

func formatDispatchFailure(err error) string {
	return dispatchFailPrefix + errors.Message(err)
}
