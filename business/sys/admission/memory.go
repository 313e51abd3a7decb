package admission

import (
	"context"
	"sync"
	"time"
)

// FallbackName labels decisions made by the in process store.
const FallbackName = "memory"

// sweepThreshold is the number of tracked keys above which expired windows
// are removed.
const sweepThreshold = 10_000

type window struct {
	count int64
	start time.Time
}

// Memory is a fixed window counter kept in process. Counts are lost on
// restart and are never shared with the primary store.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemory constructs an empty in process store.
func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Incr implements the Store interface. An expired window restarts at one.
func (m *Memory) Incr(ctx context.Context, key string, win time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	w, exists := m.windows[key]
	if !exists || now.Sub(w.start) >= win {
		if len(m.windows) >= sweepThreshold {
			m.sweep(now, win)
		}

		m.windows[key] = &window{count: 1, start: now}
		return 1, nil
	}

	w.count++
	return w.count, nil
}

func (m *Memory) sweep(now time.Time, win time.Duration) {
	for key, w := range m.windows {
		if now.Sub(w.start) >= win {
			delete(m.windows, key)
		}
	}
}
