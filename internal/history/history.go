// Package history records which villages are searched and how often.
package history

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/twpayne/go-lowlying/internal/config"
)

// An Entry is the search history of a single village.
type Entry struct {
	Village string `json:"village"`
	Count   int64  `json:"count"`
	Last    bool   `json:"last"`
}

// A Store records searches. Exactly one village, the most recently searched,
// has Last set.
type Store interface {
	Persist(ctx context.Context, village string) error
	Fetch(ctx context.Context) ([]Entry, error)
	LastSearched(ctx context.Context) (string, bool, error)
	Close() error
}

// Open returns the Store selected by cfg.HistoryBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.HistoryBackend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return OpenRedisStore(ctx, cfg.Redis)
	case "postgres":
		return OpenPostgresStore(ctx, cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("%s: unknown history backend", cfg.HistoryBackend)
	}
}

// A MemoryStore is a Store that keeps the history in memory.
type MemoryStore struct {
	mutex  sync.Mutex
	counts map[string]int64
	last   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts: make(map[string]int64),
	}
}

func (s *MemoryStore) Persist(ctx context.Context, village string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counts[village]++
	s.last = village
	return nil
}

func (s *MemoryStore) Fetch(ctx context.Context) ([]Entry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := make([]Entry, 0, len(s.counts))
	for village, count := range s.counts {
		entries = append(entries, Entry{
			Village: village,
			Count:   count,
			Last:    village == s.last,
		})
	}
	sortEntries(entries)
	return entries, nil
}

func (s *MemoryStore) LastSearched(ctx context.Context) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.last, s.last != "", nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Village, b.Village)
	})
}
