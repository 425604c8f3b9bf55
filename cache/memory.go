package cache

import (
	"context"
	"sync"
	"time"

	smap "github.com/go-auxiliaries/shrinking-map/pkg/shrinking-map"
	"github.com/rs/zerolog/log"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Memory is an in-process Adapter. Expired entries are dropped when read, or in
// bulk by PurgeExpired and Janitor.
type Memory struct {
	mu   sync.Mutex
	data *smap.Map[string, memoryEntry]
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data: smap.New[string, memoryEntry](1000), // shrink map after every 1k deletions
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data.Get2(key)
	if !ok {
		return nil, false, nil
	}
	if entry.expired(m.now()) {
		m.data.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.data.Set(key, entry)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.Delete(key)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.data.Values())
}

func (m *Memory) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var deleted int64
	for key, entry := range m.data.Values() {
		if entry.expired(now) {
			m.data.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// Janitor purges expired entries every period until ctx is done.
func (m *Memory) Janitor(ctx context.Context, period time.Duration) {
	log.Debug().
		Dur("period", period).
		Msg("Starting cache janitor")

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Cache janitor stopped")
			return
		case <-ticker.C:
			deleted, _ := m.PurgeExpired(ctx)
			if deleted > 0 {
				log.Debug().
					Int64("deleted", deleted).
					Msg("Cache janitor purged expired entries")
			}
		}
	}
}
