package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	answers []string
	prompts []string
	err     error
}

func (p *scriptedPrompter) SystemOutput(ctx context.Context, msg string) error {
	p.prompts = append(p.prompts, msg)
	return nil
}

func (p *scriptedPrompter) Input(ctx context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestConfirmationInterceptor(t *testing.T) {
	cmd := Command{Name: "analyze", Confirm: "Proceed? (y/n)"}

	for answer, want := range map[string]bool{"y": true, "YES": true, " yes ": true, "n": false, "": false, "sure": false} {
		p := &scriptedPrompter{answers: []string{answer}}
		allowed, err := ConfirmationInterceptor(p)(context.Background(), cmd, "")
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "answer %q", answer)
		assert.Equal(t, []string{"Proceed? (y/n)"}, p.prompts)
	}
}

func TestConfirmationInterceptor_SkipsCommandsWithoutPrompt(t *testing.T) {
	p := &scriptedPrompter{}
	allowed, err := ConfirmationInterceptor(p)(context.Background(), Command{Name: "load"}, "")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, p.prompts)
}

func TestConfirmationInterceptor_InputError(t *testing.T) {
	p := &scriptedPrompter{err: context.Canceled}
	_, err := ConfirmationInterceptor(p)(context.Background(), Command{Name: "x", Confirm: "?"}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatch_DeclinedConfirmationCancels(t *testing.T) {
	m := newMachine(t)
	reg := NewRegistry()
	called := false
	reg.MustRegister(Command{Name: "load", Confirm: "Sure? (y/n)", Handler: func(ctx context.Context, args string) (string, error) {
		called = true
		return "", nil
	}})

	p := &scriptedPrompter{answers: []string{"n", "y"}}
	d := New(m, reg, WithInterceptor(ConfirmationInterceptor(p)))

	out := d.Dispatch(context.Background(), "load")
	assert.True(t, out.Cancelled)
	assert.False(t, called)
	assert.Equal(t, "initial", m.CurrentName())

	out = d.Dispatch(context.Background(), "load")
	assert.False(t, out.Cancelled)
	assert.True(t, called)
	assert.Equal(t, "loaded", m.CurrentName())
}

func TestMultiInterceptor(t *testing.T) {
	deny := func(ctx context.Context, cmd Command, args string) (bool, error) { return false, nil }
	fail := func(ctx context.Context, cmd Command, args string) (bool, error) { return false, errors.New("x") }

	allowed, err := MultiInterceptor(AutoApprove(), AutoApprove())(context.Background(), Command{}, "")
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = MultiInterceptor(AutoApprove(), deny, fail)(context.Background(), Command{}, "")
	assert.NoError(t, err)
	assert.False(t, allowed)

	_, err = MultiInterceptor(fail)(context.Background(), Command{}, "")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Command{Name: "b"}))
	require.NoError(t, r.Register(Command{Name: "a"}))

	assert.ErrorIs(t, r.Register(Command{Name: "a"}), ErrDuplicateCommand)
	assert.Error(t, r.Register(Command{}))
	assert.Panics(t, func() { r.MustRegister(Command{Name: "b"}) })

	cmds := r.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "a", cmds[0].Name)

	_, ok := r.Lookup("missing")
	assert.False(t, ok)
}
