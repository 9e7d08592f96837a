package dispatch

import (
	"context"
	"strings"
)

// Interceptor runs before a handler. Returning false cancels the command
// and its transition; returning an error fails it.
type Interceptor func(ctx context.Context, cmd Command, args string) (bool, error)

// Prompter is the slice of an IO handler needed to ask a question.
type Prompter interface {
	SystemOutput(ctx context.Context, msg string) error
	Input(ctx context.Context) (string, error)
}

// MultiInterceptor chains multiple interceptors.
func MultiInterceptor(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, cmd Command, args string) (bool, error) {
		for _, interceptor := range interceptors {
			allowed, err := interceptor(ctx, cmd, args)
			if err != nil {
				return false, err
			}
			if !allowed {
				return false, nil
			}
		}
		return true, nil
	}
}

// ConfirmationInterceptor asks the user before running commands that carry
// a Confirm prompt. Only "y" and "yes" proceed.
func ConfirmationInterceptor(p Prompter) Interceptor {
	return func(ctx context.Context, cmd Command, args string) (bool, error) {
		if cmd.Confirm == "" {
			return true, nil
		}
		if err := p.SystemOutput(ctx, cmd.Confirm); err != nil {
			return false, err
		}

		input, err := p.Input(ctx)
		if err != nil {
			return false, err
		}

		input = strings.TrimSpace(strings.ToLower(input))
		return input == "y" || input == "yes", nil
	}
}

// AutoApprove allows everything.
func AutoApprove() Interceptor {
	return func(ctx context.Context, cmd Command, args string) (bool, error) {
		return true, nil
	}
}
