// Package poller keeps dashboard data fresh through recurring and on-demand fetches.
package poller

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Handle cancels a recurring task. After Cancel returns no new run of the
// task starts; a run already executing is allowed to finish.
type Handle interface {
	Cancel()
}

// Scheduler runs tasks on a fixed interval.
type Scheduler interface {
	Every(interval time.Duration, task func()) Handle
}

// gate serializes task starts against cancellation.
type gate struct {
	mu      sync.Mutex
	stopped bool
}

func (g *gate) run(task func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	task()
}

func (g *gate) stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	g.stopped = true
	return true
}

// TickerScheduler runs each task on its own time.Ticker goroutine.
type TickerScheduler struct{}

// NewTickerScheduler creates a ticker-backed scheduler
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

type tickerHandle struct {
	gate
	done chan struct{}
}

// Every starts a goroutine that runs task every interval until cancelled.
func (s *TickerScheduler) Every(interval time.Duration, task func()) Handle {
	h := &tickerHandle{done: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.run(task)
			}
		}
	}()
	return h
}

func (h *tickerHandle) Cancel() {
	if h.stop() {
		close(h.done)
	}
}

// CronScheduler schedules tasks as "@every" entries on a shared cron runner.
// Intervals are rounded up to whole seconds by cron.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates a cron-backed scheduler. Call Start before use
// and Stop on shutdown.
func NewCronScheduler() *CronScheduler {
	return &CronScheduler{cron: cron.New()}
}

// Start starts the cron runner.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron runner and waits for running jobs.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries returns the number of scheduled entries.
func (s *CronScheduler) Entries() int {
	return len(s.cron.Entries())
}

type cronHandle struct {
	gate
	cron *cron.Cron
	id   cron.EntryID
}

// Every registers task as a cron entry running every interval.
func (s *CronScheduler) Every(interval time.Duration, task func()) Handle {
	if interval < time.Second {
		interval = time.Second
	}
	h := &cronHandle{cron: s.cron}
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { h.run(task) })
	if err != nil {
		// "@every <duration>" always parses; keep the handle cancellable regardless.
		h.stop()
		return h
	}
	h.id = id
	return h
}

func (h *cronHandle) Cancel() {
	if h.stop() {
		h.cron.Remove(h.id)
	}
}
