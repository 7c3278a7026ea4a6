package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task performs one fetch for a resource and applies its result.
// Tasks handle their own errors.
type Task func(ctx context.Context)

// Tasks are the fetchers the controller drives. Nil tasks are skipped.
type Tasks struct {
	Prices    Task
	Signals   Task
	Summary   Task
	Generated Task
}

// TickObserver is notified on every scheduled tick.
type TickObserver interface {
	ObservePollTick(schedule string)
}

// Config holds polling intervals
type Config struct {
	SignalsInterval     time.Duration
	AutoRefreshInterval time.Duration
	AutoRefresh         bool
}

// DefaultConfig returns the reference intervals.
func DefaultConfig() Config {
	return Config{
		SignalsInterval:     3 * time.Minute,
		AutoRefreshInterval: 60 * time.Second,
		AutoRefresh:         true,
	}
}

// Controller owns the recurring fetch schedules for one dashboard session.
// Overlapping triggers for the same resource are not deduplicated.
type Controller struct {
	cfg      Config
	sched    Scheduler
	tasks    Tasks
	logger   *zap.Logger
	observer TickObserver
	now      func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	signalsTick Handle
	autoTick    Handle
	autoOn      bool
	started     bool
	stopped     bool
	inflight    sync.WaitGroup
}

// NewController creates a controller; nothing runs until Start.
func NewController(cfg Config, sched Scheduler, tasks Tasks, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.SignalsInterval <= 0 {
		cfg.SignalsInterval = def.SignalsInterval
	}
	if cfg.AutoRefreshInterval <= 0 {
		cfg.AutoRefreshInterval = def.AutoRefreshInterval
	}
	return &Controller{
		cfg:    cfg,
		sched:  sched,
		tasks:  tasks,
		logger: logger,
		now:    time.Now,
		autoOn: cfg.AutoRefresh,
	}
}

// SetTickObserver attaches a tick observer, typically the metrics registry.
func (c *Controller) SetTickObserver(o TickObserver) {
	c.observer = o
}

// Start runs every fetch once and installs the recurring schedules.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.goLocked(c.tasks.Prices)
	c.goLocked(c.tasks.Signals)
	c.goLocked(c.tasks.Summary)
	c.goLocked(c.tasks.Generated)

	c.signalsTick = c.sched.Every(c.cfg.SignalsInterval, func() {
		c.tick("signals")
		c.Trigger(c.tasks.Signals)
		c.Trigger(c.tasks.Summary)
	})
	if c.autoOn {
		c.autoTick = c.scheduleAutoLocked()
	}

	c.logger.Debug("polling started",
		zap.Duration("signals_interval", c.cfg.SignalsInterval),
		zap.Duration("auto_refresh_interval", c.cfg.AutoRefreshInterval),
		zap.Bool("auto_refresh", c.autoOn),
	)
}

func (c *Controller) scheduleAutoLocked() Handle {
	return c.sched.Every(c.cfg.AutoRefreshInterval, func() {
		c.tick("auto_refresh")
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.autoOn && !c.stopped {
			c.goLocked(c.tasks.Signals)
		}
	})
}

// SelectionChanged refetches the data that depends on the selected ticker and range.
func (c *Controller) SelectionChanged() {
	c.Trigger(c.tasks.Prices)
	c.Trigger(c.tasks.Generated)
}

// Trigger runs task asynchronously unless the controller is stopped or not started.
func (c *Controller) Trigger(task Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.stopped {
		return
	}
	c.goLocked(task)
}

func (c *Controller) goLocked(task Task) {
	if task == nil {
		return
	}
	ctx := c.ctx
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		task(ctx)
	}()
}

// RefreshAll runs every fetch concurrently, waits for them, and returns the
// completion time. It does not touch filters or schedules.
func (c *Controller) RefreshAll(ctx context.Context) time.Time {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return c.now()
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range []Task{c.tasks.Prices, c.tasks.Signals, c.tasks.Summary, c.tasks.Generated} {
		if task == nil {
			continue
		}
		g.Go(func() error {
			task(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return c.now()
}

// SetAutoRefresh enables or disables the auto-refresh interval. Disabling
// cancels the pending schedule; once it returns no further auto tick starts.
func (c *Controller) SetAutoRefresh(on bool) {
	c.mu.Lock()
	c.autoOn = on
	if c.stopped || !c.started {
		c.mu.Unlock()
		return
	}
	var cancel Handle
	switch {
	case on && c.autoTick == nil:
		c.autoTick = c.scheduleAutoLocked()
	case !on && c.autoTick != nil:
		cancel = c.autoTick
		c.autoTick = nil
	}
	c.mu.Unlock()

	// Cancel outside the lock: a running tick may be waiting on c.mu.
	if cancel != nil {
		cancel.Cancel()
	}
}

// AutoRefresh reports whether auto-refresh is enabled.
func (c *Controller) AutoRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoOn
}

// Stop cancels every schedule and in-flight request context. It is safe to
// call more than once; later triggers are ignored.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	handles := []Handle{c.signalsTick, c.autoTick}
	c.signalsTick, c.autoTick = nil, nil
	cancel := c.cancel
	c.mu.Unlock()

	for _, h := range handles {
		if h != nil {
			h.Cancel()
		}
	}
	if cancel != nil {
		cancel()
	}
	c.logger.Debug("polling stopped")
}

// Wait blocks until every fetch started by the controller has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) tick(schedule string) {
	if c.observer != nil {
		c.observer.ObservePollTick(schedule)
	}
}
