// Package storetest provides a conformance test suite for storage.Backend
// implementations: every
// backend (Memory, Badger, S3) should pass RunConformanceSuite so the
// variable store's behavior is independent of which backend it is wired
// to.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) storage.Backend {
//	        return storage.NewMemory()
//	    })
//	}
package storetest
