package data

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"rec-lem-prices/internal/equilibrium"
	"rec-lem-prices/internal/ledger"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"
)

const (
	DefaultRunTTL          = 1 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// Run is a completed price discovery run kept for later retrieval.
type Run struct {
	ID        string
	CreatedAt time.Time
	Community model.Community
	Timeframe schedule.Timeframe
	Params    pricing.Params
	Outcome   *equilibrium.Outcome
	Ledger    *ledger.Result
}

type runEntry struct {
	run       *Run
	expiresAt time.Time
}

// RunStore keeps completed runs in memory for a limited time.
// Entries are not persisted; a restart drops them.
type RunStore struct {
	mu    sync.RWMutex
	store map[string]*runEntry
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRunStore starts a store whose entries live for ttl. Expired entries are
// swept every cleanupInterval until Close is called. Non-positive values fall
// back to the defaults.
func NewRunStore(ttl, cleanupInterval time.Duration) *RunStore {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	s := &RunStore{
		store: make(map[string]*runEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go s.cleanup(cleanupInterval)
	return s
}

// Put stores run under a fresh id and returns it. CreatedAt is set when zero.
func (s *RunStore) Put(run *Run) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	run.ID = uuid.NewString()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	s.store[run.ID] = &runEntry{
		run:       run,
		expiresAt: now.Add(s.ttl),
	}
	return run.ID
}

// Get retrieves a run if present and not expired.
func (s *RunStore) Get(id string) (*Run, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.store[id]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.run, true
}

func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *RunStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *RunStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired entries.
func (s *RunStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.store {
		if now.After(entry.expiresAt) {
			delete(s.store, id)
		}
	}
}
