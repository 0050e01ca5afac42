package audit

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteConfig configures the zero-dependency local/dev ledger backend.
type SQLiteConfig struct {
	Path string
}

// auditModel is the GORM row shape for one audit record.
type auditModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	OwnerID      uint32 `gorm:"index"`
	VariableName string
	GUID         string
	Kind         string
	Verdict      string
	Reason       string
	Timestamp    time.Time `gorm:"index"`
}

func (auditModel) TableName() string { return "auth_audit_records" }

// sqliteStore implements Store over glebarez/sqlite + gorm.
type sqliteStore struct {
	db *gorm.DB
}

func newSQLiteStore(cfg SQLiteConfig) (Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&auditModel{}); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Append(ctx context.Context, rec Record) error {
	row := auditModel{
		OwnerID:      rec.OwnerID,
		VariableName: rec.VariableName,
		GUID:         rec.GUID,
		Kind:         string(rec.Kind),
		Verdict:      string(rec.Verdict),
		Reason:       rec.Reason,
		Timestamp:    rec.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *sqliteStore) Recent(ctx context.Context, ownerID uint32, limit int) ([]Record, error) {
	var rows []auditModel
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{
			ID:           row.ID,
			OwnerID:      row.OwnerID,
			VariableName: row.VariableName,
			GUID:         row.GUID,
			Kind:         Kind(row.Kind),
			Verdict:      Verdict(row.Verdict),
			Reason:       row.Reason,
			Timestamp:    row.Timestamp,
		}
	}
	return records, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
