package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAppendAndRecent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Append(ctx, Record{OwnerID: 1, VariableName: "PK", Kind: KindSecureBoot, Verdict: VerdictAccepted, Timestamp: base}))
	require.NoError(t, m.Append(ctx, Record{OwnerID: 1, VariableName: "db", Kind: KindSecureBoot, Verdict: VerdictRejected, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, m.Append(ctx, Record{OwnerID: 2, VariableName: "Other", Kind: KindPrivate, Verdict: VerdictAccepted, Timestamp: base}))

	records, err := m.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "db", records[0].VariableName)
	require.Equal(t, "PK", records[1].VariableName)

	require.NoError(t, m.Close())
}

func TestMemoryRecentRespectsLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, Record{OwnerID: 1, VariableName: "db", Verdict: VerdictAccepted, Timestamp: time.Now()}))
	}

	records, err := m.Recent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestSQLiteStoreAppendAndRecent(t *testing.T) {
	dir := t.TempDir()
	cfg := SQLiteConfig{Path: filepath.Join(dir, "audit.db")}

	s, err := newSQLiteStore(cfg)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Append(ctx, Record{
		OwnerID:      7,
		VariableName: "KEK",
		GUID:         "11111111-2222-3333-4444-555555555555",
		Kind:         KindSecureBoot,
		Verdict:      VerdictAccepted,
		Reason:       "valid signature",
		Timestamp:    now,
	}))

	records, err := s.Recent(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "KEK", records[0].VariableName)
	require.Equal(t, VerdictAccepted, records[0].Verdict)
	require.NotZero(t, records[0].ID)
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	require.Equal(t, TypeSQLite, cfg.Type)
	require.NotEmpty(t, cfg.SQLite.Path)
}

func TestNewMemoryBackend(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{Type: TypeMemory})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, Record{OwnerID: 1, VariableName: "db"}))
	require.NoError(t, s.Close())
}

func TestNewUnsupportedType(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, Config{Type: "bogus"})
	require.Error(t, err)
}
