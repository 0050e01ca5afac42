package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver, required by golang-migrate

	"github.com/arm-trusted-services/ts-core/pkg/audit/migrations"
)

// PostgresConfig configures the HA-capable ledger backend.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

func (c PostgresConfig) connString() string {
	if c.Port == 0 {
		c.Port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// postgresStore implements Store over pgxpool, with schema managed by
// golang-migrate against the embedded migrations package, matching
// pkg/store/metadata/postgres/migrate.go's runMigrations.
type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(ctx context.Context, cfg PostgresConfig) (Store, error) {
	connString := cfg.connString()

	if err := runMigrations(connString); err != nil {
		return nil, fmt.Errorf("audit: migration failed: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func runMigrations(connString string) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{
		MigrationsTable: "audit_schema_migrations",
		DatabaseName:    "ts_core_audit",
	})
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *postgresStore) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_audit_records (owner_id, variable_name, guid, kind, verdict, reason, "timestamp")
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.OwnerID, rec.VariableName, rec.GUID, string(rec.Kind), string(rec.Verdict), rec.Reason, rec.Timestamp,
	)
	return err
}

func (s *postgresStore) Recent(ctx context.Context, ownerID uint32, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, variable_name, guid, kind, verdict, reason, "timestamp"
		 FROM auth_audit_records WHERE owner_id = $1 ORDER BY "timestamp" DESC LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var kind, verdict string
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.VariableName, &r.GUID, &kind, &verdict, &r.Reason, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Kind = Kind(kind)
		r.Verdict = Verdict(verdict)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
