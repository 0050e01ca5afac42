// Package bootstrap wires a *config.Config into a running variable-store
// stack: storage backends, the authentication engine, the store itself,
// and the SMM_VARIABLE provider bound to an RPC endpoint. It is shared by
// every tsctl subcommand so that "serve", "vars", and "keys" all start
// from the identical stack a deployed partition would run
// (config -> logger -> telemetry -> storage -> stores -> router).
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arm-trusted-services/ts-core/internal/logger"
	"github.com/arm-trusted-services/ts-core/pkg/audit"
	"github.com/arm-trusted-services/ts-core/pkg/config"
	"github.com/arm-trusted-services/ts-core/pkg/metrics"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/service/uefismm"
	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	tscrypto "github.com/arm-trusted-services/ts-core/pkg/variable/crypto"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
	"github.com/arm-trusted-services/ts-core/pkg/variable/store"
)

// Stack holds every long-lived component a tsctl command needs, plus the
// Close hook to release storage handles and the audit ledger on exit.
type Stack struct {
	Config   *config.Config
	Store    *store.Store
	Provider *uefismm.Provider
	Endpoint *endpoint.Endpoint
	Metrics  *metrics.Metrics
	Audit    audit.Store

	closers []func() error
}

// Close releases every resource opened during Build, in reverse order.
func (s *Stack) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build constructs a full Stack from cfg: storage backends per
// cfg.Storage, the audit ledger per cfg.Audit, the authentication engine
// over a stdlib X509Verifier, the variable store, and the SMM_VARIABLE
// provider registered on a fresh endpoint under uuid.SMMVariable.
func Build(ctx context.Context, cfg *config.Config) (*Stack, error) {
	s := &Stack{Config: cfg}

	if cfg.Metrics.Enabled {
		s.Metrics = metrics.New(prometheus.DefaultRegisterer)
	} else {
		s.Metrics = metrics.NullMetrics()
	}

	auditStore, err := audit.New(ctx, cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: audit: %w", err)
	}
	s.Audit = auditStore
	s.closers = append(s.closers, auditStore.Close)

	persistentBackend, closePersistent, err := buildBackend(cfg.Storage.Persistent)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: persistent storage: %w", err)
	}
	if closePersistent != nil {
		s.closers = append(s.closers, closePersistent)
	}

	volatileBackend, closeVolatile, err := buildBackend(cfg.Storage.Volatile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: volatile storage: %w", err)
	}
	if closeVolatile != nil {
		s.closers = append(s.closers, closeVolatile)
	}

	authEngine := auth.NewEngine(tscrypto.NewX509Verifier())

	varStore := store.New(
		cfg.Owner.OwnerID,
		cfg.Owner.MaxVariables,
		store.Delegate{TotalCapacity: int(cfg.Storage.Persistent.TotalCapacity), MaxVariableSize: int(cfg.Owner.MaxVariableSize), Backend: persistentBackend},
		store.Delegate{TotalCapacity: int(cfg.Storage.Volatile.TotalCapacity), MaxVariableSize: int(cfg.Owner.MaxVariableSize), Backend: volatileBackend},
		authEngine,
	)
	if initStatus := varStore.Init(ctx); !initStatus.IsSuccess() {
		return nil, fmt.Errorf("bootstrap: store init failed: %s", initStatus)
	}
	s.Store = varStore

	provider := uefismm.New(uuid.SMMVariable, varStore, s.Metrics)
	provider.AttachAudit(auditStore, cfg.Owner.OwnerID)
	s.Provider = provider

	ep := endpoint.NewEndpoint()
	ep.Register(provider)
	s.Endpoint = ep

	logger.Info("bootstrap: stack ready", "owner_id", cfg.Owner.OwnerID, "persistent", cfg.Storage.Persistent.Type, "volatile", cfg.Storage.Volatile.Type)
	return s, nil
}

// PersistentBackend constructs just the persistent storage backend named
// by cfg.Storage.Persistent, without the rest of the stack: used by
// "vars dump"/"vars restore", which exercise the index serialization
// format directly against a backend rather than through a running store.
func PersistentBackend(cfg *config.Config) (storage.Backend, func() error, error) {
	return buildBackend(cfg.Storage.Persistent)
}

// buildBackend constructs the storage.Backend named by cfg.Type, plus a
// close hook when the backend owns an OS-level handle (badger).
func buildBackend(cfg config.StorageBackendConfig) (storage.Backend, func() error, error) {
	switch cfg.Type {
	case "memory":
		return storage.NewMemory(), nil, nil

	case "badger":
		opts := badger.DefaultOptions(cfg.Badger.Path)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger at %q: %w", cfg.Badger.Path, err)
		}
		return storage.NewBadger(db), db.Close, nil

	case "s3":
		ctx := context.Background()
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		backend, err := storage.NewS3(ctx, storage.S3Config{
			Client:    client,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend type %q", cfg.Type)
	}
}
