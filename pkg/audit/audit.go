// Package audit implements the authentication audit ledger: a durable,
// append-only log of every authenticated-variable verification verdict
// the authentication engine produces. Two durable backends are provided
// (glebarez/sqlite via gorm for local/dev use, and a
// pgxpool+golang-migrate postgres store for the
// lower-level metadata store) — here applied to a single narrow-purpose
// table rather than a full schema.
//
// Writing to the ledger never blocks or fails a variable-store operation:
// it is consulted only for observability, never for authorization
// decisions.
package audit

import (
	"context"
	"time"
)

// Kind distinguishes the two authentication classes the engine
// recognizes.
type Kind string

const (
	KindSecureBoot Kind = "secure_boot"
	KindPrivate    Kind = "private"
)

// Verdict is the outcome of one authentication attempt.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// Record is one authentication attempt.
type Record struct {
	ID           int64
	OwnerID      uint32
	VariableName string
	GUID         string
	Kind         Kind
	Verdict      Verdict
	Reason       string
	Timestamp    time.Time
}

// Store is the narrow append-only ledger interface every backend
// implements.
type Store interface {
	// Append writes one record. Implementations never return an error
	// that the caller is expected to propagate to a variable-store
	// operation; Append's error return exists for the ledger's own
	// retry/logging, not for authorization flow control.
	Append(ctx context.Context, rec Record) error

	// Recent returns up to limit records, most recent first, for a
	// given owner. Used by tsctl and any future audit-review tooling.
	Recent(ctx context.Context, ownerID uint32, limit int) ([]Record, error)

	Close() error
}

// Type selects which Store implementation Config.New constructs.
type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMemory   Type = "memory"
)

// Config selects and configures one audit ledger backend.
type Config struct {
	Type     Type
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// ApplyDefaults fills unset fields, matching store.Config.ApplyDefaults.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeSQLite
	}
	if c.Type == TypeSQLite && c.SQLite.Path == "" {
		c.SQLite.Path = "ts-core-audit.db"
	}
	if c.Type == TypePostgres && c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
}

// New constructs the configured Store.
func New(ctx context.Context, cfg Config) (Store, error) {
	cfg.ApplyDefaults()

	switch cfg.Type {
	case TypeMemory:
		return NewMemory(), nil
	case TypeSQLite:
		return newSQLiteStore(cfg.SQLite)
	case TypePostgres:
		return newPostgresStore(ctx, cfg.Postgres)
	default:
		return nil, errUnsupportedType(cfg.Type)
	}
}

type errUnsupportedType Type

func (e errUnsupportedType) Error() string {
	return "audit: unsupported store type " + string(e)
}
