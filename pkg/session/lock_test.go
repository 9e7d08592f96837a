package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/agentflow/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, name string, data *domain.SessionData) error {
	return nil
}
func (nopStore) Load(ctx context.Context, name string) (*domain.SessionData, error) {
	return nil, domain.ErrSessionNotFound
}
func (nopStore) Delete(ctx context.Context, name string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)    { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, name, domain.NewSessionData())
		_ = mgr.Delete(ctx, name)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
