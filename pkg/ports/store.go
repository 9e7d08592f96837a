package ports

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// SessionStore defines the interface for persisting session documents.
type SessionStore interface {
	// Save persists the document for a given session name.
	Save(ctx context.Context, name string, data *domain.SessionData) error

	// Load retrieves the document for a given session name.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, name string) (*domain.SessionData, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
