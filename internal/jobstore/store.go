package jobstore

import (
	"context"
	"fmt"
	"time"
)

// Status is the last recorded pipeline state for a job.
type Status string

const (
	StatusAccepted     Status = "accepted"
	StatusConverting   Status = "converting"
	StatusDiarizing    Status = "diarizing"
	StatusTranscribing Status = "transcribing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"

	// StatusUnknown is returned for ids never written (or already evicted).
	// It is never stored.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether no further writes will follow for this execution.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Store maps job ids to their current status. Writes are last-writer-wins and
// must be safe for concurrent use from many job executions.
type Store interface {
	SetStatus(ctx context.Context, jobID string, status Status) error
	GetStatus(ctx context.Context, jobID string) Status
}

// Config selects and tunes a store backend.
type Config struct {
	Backend          string      `yaml:"backend"` // "memory" or "redis"
	TerminalTTLHours int         `yaml:"terminal_ttl_hours"`
	Redis            RedisConfig `yaml:"redis"`
}

// New builds the configured backend, defaulting to the in-process store.
func New(cfg Config) (Store, error) {
	ttl := time.Duration(cfg.TerminalTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = DefaultTerminalTTL
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "redis":
		return NewRedisStore(cfg.Redis, ttl)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
