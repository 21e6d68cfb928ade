package ports

import (
	"context"
	"time"
)

// RunLocker grants exclusive use of a key. Acquire returns
// domain.ErrRunInProgress while another holder owns the key.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}
