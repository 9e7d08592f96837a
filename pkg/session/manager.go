package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Create initializes an empty session. It fails with domain.ErrSessionExists
// when the name is taken.
func (m *Manager) Create(ctx context.Context, name string) (*domain.SessionData, error) {
	var data *domain.SessionData
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, name)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, name)
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		data = domain.NewSessionData()
		if err := m.store.Save(ctx, name, data); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return data, err
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, name string) (*domain.SessionData, error) {
	var data *domain.SessionData
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		data, err = m.store.Load(ctx, name)
		return err
	})
	return data, err
}

// LoadOrCreate loads a session, initializing and persisting a new one if
// it does not exist yet.
func (m *Manager) LoadOrCreate(ctx context.Context, name string) (*domain.SessionData, error) {
	var data *domain.SessionData
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		data, err = m.store.Load(ctx, name)
		if err == nil {
			data.Normalize()
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		data = domain.NewSessionData()
		// Persist immediately to reserve the name.
		if err := m.store.Save(ctx, name, data); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return data, err
}

// Save persists the session document.
func (m *Manager) Save(ctx context.Context, name string, data *domain.SessionData) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Save(ctx, name, data)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Open loads or creates the named session and binds a Storage to it.
func (m *Manager) Open(ctx context.Context, name string) (*Storage, error) {
	data, err := m.LoadOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Storage{manager: m, name: name, data: data}, nil
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
