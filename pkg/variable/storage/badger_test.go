//go:build integration

package storage_test

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage/storetest"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) storage.Backend {
		return storage.NewBadger(openTestBadger(t))
	})
}
