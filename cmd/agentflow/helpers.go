package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/agentflow/internal/clarity"
	"github.com/aretw0/agentflow/internal/config"
	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/adapters/file"
	"github.com/aretw0/agentflow/pkg/adapters/llm"
	"github.com/aretw0/agentflow/pkg/adapters/memory"
	redisstore "github.com/aretw0/agentflow/pkg/adapters/redis"
	"github.com/aretw0/agentflow/pkg/persistence/middleware"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/aretw0/agentflow/pkg/session"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger writes to the configured log file, or to w.
func newLogger(w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Log.File != "" {
		return logging.NewFile(cfg.Log.File, level)
	}
	return logging.NewWriter(w, level), nopCloser{}, nil
}

// openStore builds the configured session store, wrapped with redaction and
// encryption when configured. Redis stores also provide a distributed lock
// for the session manager.
func openStore(ctx context.Context) (ports.SessionStore, []session.Option, io.Closer, error) {
	store, opts, closer, err := openBackend(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	mws, err := storeMiddleware()
	if err != nil {
		_ = closer.Close()
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mws...), opts, closer, nil
}

func storeMiddleware() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Store.Redact) > 0 {
		redact, err := middleware.NewRedaction(cfg.Store.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}
	if cfg.Store.EncryptionKey != "" {
		active, err := middleware.DecodeKey(cfg.Store.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		encCfg := middleware.EncryptionConfig{ActiveKey: active}
		for _, s := range cfg.Store.FallbackKeys {
			key, err := middleware.DecodeKey(s)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys: %w", err)
			}
			encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
		}
		encrypt, err := middleware.NewEncryption(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, encrypt)
	}
	return mws, nil
}

func openBackend(ctx context.Context) (ports.SessionStore, []session.Option, io.Closer, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		return memory.NewStore(), nil, nopCloser{}, nil
	case config.StoreRedis:
		rc := cfg.Store.Redis
		store := redisstore.New(rc.Addr, rc.Password, rc.DB,
			redisstore.WithPrefix(rc.Prefix),
			redisstore.WithTTL(rc.TTL),
		)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := store.Client().Ping(pingCtx).Err(); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("redis %s unreachable: %w", rc.Addr, err)
		}
		locker := redisstore.NewLocker(store.Client(), store.Prefix())
		return store, []session.Option{session.WithLocker(locker)}, store, nil
	default:
		return file.New(cfg.SessionsDir), nil, nopCloser{}, nil
	}
}

func catalog() (llm.Catalog, error) {
	if len(cfg.Models) == 0 {
		return llm.DefaultCatalog(), nil
	}
	return llm.ParseCatalog(cfg.Models)
}

func providers() *llm.Registry {
	return llm.DefaultRegistry(llm.Keys{
		Anthropic: cfg.Anthropic.APIKey,
		OpenAI:    cfg.OpenAI.APIKey,
	})
}

// newApp wires the clarity application to the configuration.
func newApp(storage *session.Storage, screen string, logger *slog.Logger) (*clarity.App, error) {
	models, err := catalog()
	if err != nil {
		return nil, err
	}
	return clarity.New(
		clarity.WithAgentsDir(cfg.AgentsDir),
		clarity.WithExportDir(cfg.MessageExportPath),
		clarity.WithCatalog(models),
		clarity.WithProviders(providers()),
		clarity.WithDefaultModel(cfg.DefaultModel),
		clarity.WithStorage(storage, screen),
		clarity.WithLogger(logger),
	), nil
}
