package jobstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTerminalTTL bounds how long complete/failed statuses stay queryable.
const DefaultTerminalTTL = 24 * time.Hour

// MemoryStore keeps statuses in-process. Non-terminal statuses never expire;
// terminal statuses are evicted after the configured TTL so the map does not
// grow without bound.
type MemoryStore struct {
	cache       *gocache.Cache
	terminalTTL time.Duration
}

func NewMemoryStore(terminalTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		cache:       gocache.New(gocache.NoExpiration, 10*time.Minute),
		terminalTTL: terminalTTL,
	}
}

func (s *MemoryStore) SetStatus(_ context.Context, jobID string, status Status) error {
	ttl := time.Duration(gocache.NoExpiration)
	if status.Terminal() {
		ttl = s.terminalTTL
	}
	s.cache.Set(jobID, status, ttl)
	return nil
}

func (s *MemoryStore) GetStatus(_ context.Context, jobID string) Status {
	if v, found := s.cache.Get(jobID); found {
		return v.(Status)
	}
	return StatusUnknown
}
