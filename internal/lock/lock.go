// Package lock provides the RWMutex used to guard a mirrored repository
// while it is being ensured/fetched. It wraps go-deadlock so that a
// programming mistake (double-lock, lock-order inversion between two
// repositories) surfaces as a clear report instead of a silent hang.
package lock

import "github.com/sasha-s/go-deadlock"

// RWMutex is a drop-in replacement for sync.RWMutex with deadlock
// detection enabled.
type RWMutex = deadlock.RWMutex
