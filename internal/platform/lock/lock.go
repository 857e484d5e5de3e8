// Package lock serializes booking writes for one doctor and date so that the
// read, conflict check and insert sequence runs without interleaving.
package lock

import (
	"context"
	"errors"
	"strings"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context was done.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive, named critical sections. The returned release
// function must be called exactly once; extra calls are no-ops.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
	// Backend names the implementation for health reporting.
	Backend() string
	Ping(ctx context.Context) error
}

const keyPrefix = "clinic:lock"

// Key joins parts into a namespaced lock key.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
