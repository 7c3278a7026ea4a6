package poller

import (
	"sync"
	"time"
)

// ManualScheduler fires tasks only when told to. It drives the controller
// deterministically in tests and in one-shot CLI runs.
type ManualScheduler struct {
	mu      sync.Mutex
	entries map[*manualHandle]time.Duration
}

// NewManualScheduler creates a scheduler with no entries
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[*manualHandle]time.Duration)}
}

type manualHandle struct {
	gate
	owner *ManualScheduler
	task  func()
}

// Every registers task; it runs on each Fire for its interval.
func (s *ManualScheduler) Every(interval time.Duration, task func()) Handle {
	h := &manualHandle{owner: s, task: task}
	s.mu.Lock()
	s.entries[h] = interval
	s.mu.Unlock()
	return h
}

func (h *manualHandle) Cancel() {
	if h.stop() {
		h.owner.mu.Lock()
		delete(h.owner.entries, h)
		h.owner.mu.Unlock()
	}
}

// Fire runs every active task registered with the given interval and
// returns how many ran.
func (s *ManualScheduler) Fire(interval time.Duration) int {
	s.mu.Lock()
	var due []*manualHandle
	for h, d := range s.entries {
		if d == interval {
			due = append(due, h)
		}
	}
	s.mu.Unlock()

	for _, h := range due {
		h.run(h.task)
	}
	return len(due)
}

// Active returns the number of uncancelled entries.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
