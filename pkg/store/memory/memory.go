// Package memory provides in-memory implementations of the storage
// contracts. They back unit tests and the "memory" storage backend for
// local development; data does not survive a restart.
package memory

import "sync"

// locker is embedded by every store in this package so each guards its
// own state with one mutex.
type locker struct {
	mu sync.RWMutex
}
