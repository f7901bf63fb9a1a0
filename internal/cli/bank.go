package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tinoosan/bankledger/internal/config"
	"github.com/tinoosan/bankledger/internal/credential"
	"github.com/tinoosan/bankledger/internal/service/registry"
	"github.com/tinoosan/bankledger/internal/storage/jsonfile"
	"github.com/tinoosan/bankledger/internal/storage/memory"
	"github.com/tinoosan/bankledger/internal/storage/postgres"
	"github.com/tinoosan/bankledger/internal/storage/sqlite"
)

// Backend is a registry.Store that can report readiness and be closed.
type Backend interface {
	registry.Store
	Ready(ctx context.Context) error
	io.Closer
}

var (
	_ Backend = (*jsonfile.Store)(nil)
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
)

// session is a loaded registry plus the resources behind it.
type session struct {
	cfg   config.Config
	log   *slog.Logger
	store Backend
	reg   *registry.Registry
}

func (s *session) Close() error { return s.store.Close() }

// openStore builds the backend selected by cfg.Store.Backend.
func openStore(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendJSON:
		return jsonfile.New(jsonfile.Paths{
			Users:    cfg.UsersPath(),
			Accounts: cfg.AccountsPath(),
			Meta:     cfg.MetaPath(),
		}), nil
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLiteFile())
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openSession loads config, opens the store and loads the registry from it.
// Logs go to logOut.
func (o *RootOptions) openSession(ctx context.Context, logOut io.Writer) (*session, error) {
	cfg, err := config.Load(o.ConfigPath, o.getenv)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := buildLogger(cfg.Log, o.Verbose, logOut)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	hasher, err := credential.Lookup(cfg.Hash)
	if err != nil {
		_ = store.Close()
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	reg, err := registry.New(store, registry.Options{Currency: cfg.Currency, Hasher: hasher, Logger: logger})
	if err != nil {
		_ = store.Close()
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if err := reg.Load(ctx); err != nil {
		_ = store.Close()
		return nil, WrapExitError(ExitCommandError, "load state", err)
	}
	logger.Debug("state loaded", "backend", cfg.Store.Backend)
	return &session{cfg: cfg, log: logger, store: store, reg: reg}, nil
}
