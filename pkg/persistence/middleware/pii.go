package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedaction returns a middleware that masks, before saving, every data
// value whose key matches one of the patterns, in shared and screen data
// alike. The in-memory session is left untouched.
func NewRedaction(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactionMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, name string, data *domain.SessionData) error {
	cloned := *data
	cloned.SharedData.Data = m.mask(data.SharedData.Data)
	cloned.Screens = make(map[string]*domain.ScreenData, len(data.Screens))
	for screen, sc := range data.Screens {
		if sc == nil {
			continue
		}
		copied := *sc
		copied.Data = m.mask(sc.Data)
		cloned.Screens[screen] = &copied
	}
	return m.next.Save(ctx, name, &cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, name string) (*domain.SessionData, error) {
	return m.next.Load(ctx, name)
}

func (m *redactionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a copy of in with matching keys masked, nested maps included.
func (m *redactionMiddleware) mask(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m.matches(k) {
			out[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = m.mask(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func (m *redactionMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
