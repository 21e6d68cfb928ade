package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// RunLocker is a process-local ports.RunLocker. Expired entries are taken
// over by the next caller.
type RunLocker struct {
	mu    sync.Mutex
	held  map[string]lockEntry
	nowFn func() time.Time
}

func NewRunLocker() *RunLocker {
	return &RunLocker{
		held:  make(map[string]lockEntry),
		nowFn: time.Now,
	}
}

func (l *RunLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, domain.ErrRunInProgress
	}
	token := uuid.NewString()
	l.held[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return &lease{locker: l, key: key, token: token}, nil
}

type lease struct {
	locker *RunLocker
	key    string
	token  string
}

func (l *lease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if entry, ok := l.locker.held[l.key]; ok && entry.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
