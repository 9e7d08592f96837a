package runner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, opts ...dispatch.Option) (*dispatch.Dispatcher, *fsm.Machine) {
	t.Helper()
	m, err := fsm.NewBuilder("initial").
		Add("initial").On("load", "loaded").
		Add("loaded").On("analyze", "ready").
		Add("ready").Stay("analyze").
		Builder().
		ResetTo("reset", "initial").
		Build(fsm.WithName("test"))
	require.NoError(t, err)

	reg := dispatch.NewRegistry()
	reg.MustRegister(
		dispatch.Command{Name: "load", Handler: func(ctx context.Context, args string) (string, error) {
			if args == "" {
				return "Usage: load <name>", dispatch.ErrCancelTransition
			}
			return "Loaded " + args, nil
		}},
		dispatch.Command{Name: "analyze", Confirm: "Proceed? (y/n)", Handler: func(ctx context.Context, args string) (string, error) {
			return "Analysis started.", nil
		}},
		dispatch.Command{Name: "exit", Always: true, Handler: func(ctx context.Context, args string) (string, error) {
			return "Goodbye!", dispatch.ErrExit
		}},
	)
	return dispatch.New(m, reg, opts...), m
}

func TestRunner_TextSession(t *testing.T) {
	in := strings.NewReader("load\nload reviewer\nbogus\nreset now\nanalyze\nexit\nload never-read\n")
	out := &bytes.Buffer{}
	handler := runner.NewTextHandler(in, out)

	d, m := newDispatcher(t, dispatch.WithInterceptor(dispatch.ConfirmationInterceptor(handler)))

	var recorded []string
	r := runner.New(
		runner.WithDispatcher(d),
		runner.WithHandler(handler),
		runner.WithRecorder(func(ctx context.Context, line string, o dispatch.Outcome) {
			recorded = append(recorded, line+"="+o.Status())
		}),
	)
	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Usage: load <name>")
	assert.Contains(t, text, "Loaded reviewer")
	assert.Contains(t, text, "Unknown command: bogus")
	assert.Contains(t, text, "Goodbye!")
	assert.NotContains(t, text, "never-read")

	// The gate rejects analyze before any confirmation is asked.
	assert.NotContains(t, text, "Proceed?")
	assert.Equal(t, "initial", m.CurrentName())
	assert.Equal(t, []string{
		"load=cancelled",
		"load reviewer=ok",
		"bogus=unknown",
		"reset now=ok",
		"analyze=unavailable",
		"exit=exit",
	}, recorded)
}

func TestRunner_ConfirmationDeclined(t *testing.T) {
	in := strings.NewReader("load a\nanalyze\nn\nanalyze\ny\n")
	out := &bytes.Buffer{}
	handler := runner.NewTextHandler(in, out)
	d, m := newDispatcher(t, dispatch.WithInterceptor(dispatch.ConfirmationInterceptor(handler)))

	r := runner.New(runner.WithDispatcher(d), runner.WithHandler(handler))
	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Proceed? (y/n)")
	assert.Contains(t, text, "Cancelled.")
	assert.Contains(t, text, "Analysis started.")
	assert.Equal(t, "ready", m.CurrentName())
}

func TestRunner_NotAvailableMessage(t *testing.T) {
	in := strings.NewReader("analyze\n")
	out := &bytes.Buffer{}
	d, _ := newDispatcher(t)

	r := runner.New(runner.WithDispatcher(d), runner.WithHandler(runner.NewTextHandler(in, out)))
	require.NoError(t, r.Run(context.Background()))

	assert.Contains(t, out.String(), "Command 'analyze' is not available in state 'initial'.")
}

func TestRunner_JSONSessionSurvivesRejectedInput(t *testing.T) {
	in := strings.NewReader("\xff\xfe\n\"load reviewer\"\n")
	out := &bytes.Buffer{}
	d, m := newDispatcher(t)

	r := runner.New(runner.WithDispatcher(d), runner.WithHandler(runner.NewJSONHandler(in, out)))
	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, `{"type":"system","text":"Error: input contains invalid UTF-8 sequences"}`)
	assert.Contains(t, text, `{"type":"output","text":"Loaded reviewer"}`)
	assert.Equal(t, "loaded", m.CurrentName())
}

func TestRunner_RequiresDispatcher(t *testing.T) {
	r := runner.New(runner.WithHandler(runner.NewTextHandler(strings.NewReader(""), io.Discard)))
	assert.ErrorIs(t, r.Run(context.Background()), runner.ErrNoDispatcher)
}

// eventHandler is an IOHandler whose Input blocks until told to stop.
type eventHandler struct {
	mu     sync.Mutex
	events []string
	got    chan struct{}
	stop   chan struct{}
}

func (h *eventHandler) Output(ctx context.Context, text string) error      { return nil }
func (h *eventHandler) SystemOutput(ctx context.Context, msg string) error { return nil }

func (h *eventHandler) Event(ctx context.Context, e domain.CallEvent, text string) error {
	h.mu.Lock()
	h.events = append(h.events, e.InputID+":"+text)
	h.mu.Unlock()
	h.got <- struct{}{}
	return nil
}

func (h *eventHandler) Input(ctx context.Context) (string, error) {
	select {
	case <-h.stop:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestRunner_DeliversEventsWhileWaitingForInput(t *testing.T) {
	events := make(chan domain.CallEvent, 2)
	h := &eventHandler{got: make(chan struct{}, 2), stop: make(chan struct{})}
	d, _ := newDispatcher(t)

	r := runner.New(
		runner.WithDispatcher(d),
		runner.WithHandler(h),
		runner.WithEvents(events, func(ctx context.Context, e domain.CallEvent) (string, error) {
			if e.Failed() {
				return "failed: " + e.Error, nil
			}
			return strings.ToUpper(e.Result), nil
		}),
	)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	events <- domain.CallEvent{EventBase: domain.EventBase{Type: domain.EventCallComplete}, InputID: "a", Result: "fine"}
	events <- domain.CallEvent{EventBase: domain.EventBase{Type: domain.EventCallError}, InputID: "b", Error: "boom"}

	for i := 0; i < 2; i++ {
		select {
		case <-h.got:
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	close(h.stop)
	require.NoError(t, <-done)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"a:FINE", "b:failed: boom"}, h.events)
}

func TestRunner_EventHandlerErrorIsReported(t *testing.T) {
	events := make(chan domain.CallEvent, 1)
	out := &lockedBuffer{}
	pr, pw := io.Pipe()
	d, _ := newDispatcher(t)

	r := runner.New(
		runner.WithDispatcher(d),
		runner.WithHandler(runner.NewTextHandler(pr, out)),
		runner.WithEvents(events, func(ctx context.Context, e domain.CallEvent) (string, error) {
			return "", errors.New("could not store analysis")
		}),
	)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	events <- domain.CallEvent{InputID: "x", Result: "r"}
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Error: could not store analysis")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
}

func TestRunner_ContextCancelStopsLoop(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	d, _ := newDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(runner.WithDispatcher(d), runner.WithHandler(runner.NewTextHandler(pr, io.Discard)))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_Greeting(t *testing.T) {
	out := &bytes.Buffer{}
	d, _ := newDispatcher(t)
	r := runner.New(
		runner.WithDispatcher(d),
		runner.WithHandler(runner.NewTextHandler(strings.NewReader(""), out)),
		runner.WithGreeting("Welcome."),
	)
	require.NoError(t, r.Run(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "Welcome.\n"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
