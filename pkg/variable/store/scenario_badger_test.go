//go:build integration

package store

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

// TestScenariosBadger reruns the full scenario suite with the persistent
// delegate backed by Badger instead of the in-memory backend, so the
// end-to-end behavior is demonstrably independent of the storage
// collaborator wiring.
func TestScenariosBadger(t *testing.T) {
	runScenarios(t, func(t *testing.T) storage.Backend {
		opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
		db, err := badger.Open(opts)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return storage.NewBadger(db)
	})
}
