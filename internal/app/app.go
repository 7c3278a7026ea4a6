package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/tradeboard/internal/backend"
	"github.com/newthinker/tradeboard/internal/config"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/metrics"
	"github.com/newthinker/tradeboard/internal/poller"
	"github.com/newthinker/tradeboard/internal/storage/prefs"
	"github.com/newthinker/tradeboard/internal/view"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	sessionCfg SessionConfig
	fetcher    Fetcher
	sched      poller.Scheduler
	cron       *poller.CronScheduler
	prefs      *prefs.Store
	metrics    *metrics.Registry
	registry   *Registry

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
}

// New creates a new App instance from cfg. The backend client, scheduler and
// preference backend are built from the configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	since, err := filter.ParseWindow(cfg.View.DefaultSince, filter.TableWindows)
	if err != nil {
		return nil, fmt.Errorf("default since: %w", err)
	}
	rng, err := filter.ParseWindow(cfg.View.DefaultRange, filter.RangeWindows)
	if err != nil {
		return nil, fmt.Errorf("default range: %w", err)
	}

	prefBackend, err := prefs.NewBackend(prefs.Config{
		Type: cfg.Preferences.Type,
		Path: cfg.Preferences.Path,
		S3: prefs.S3Config{
			Bucket:    cfg.Preferences.S3.Bucket,
			Endpoint:  cfg.Preferences.S3.Endpoint,
			Region:    cfg.Preferences.S3.Region,
			AccessKey: cfg.Preferences.S3.AccessKey,
			SecretKey: cfg.Preferences.S3.SecretKey,
			Prefix:    cfg.Preferences.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("preferences backend: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		sessionCfg: SessionConfig{
			SignalsLimit:   cfg.Backend.TableLimit,
			GeneratedLimit: cfg.Backend.GeneratedLimit,
			GroupBy:        cfg.Backend.SummaryGroupBy,
			Polling: poller.Config{
				SignalsInterval:     cfg.Polling.SignalsInterval,
				AutoRefreshInterval: cfg.Polling.AutoRefreshInterval,
			},
			View: view.Defaults{
				PageSize:    cfg.View.PageSize,
				Since:       since,
				Ticker:      cfg.View.DefaultTicker,
				Range:       rng,
				AutoRefresh: cfg.View.AutoRefresh,
			},
		},
		fetcher: backend.New(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		}, logger.Named("backend")),
		prefs: prefs.NewStore(prefBackend),
	}

	if cfg.Polling.Scheduler == "cron" {
		a.cron = poller.NewCronScheduler()
		a.cron.Start()
		a.sched = a.cron
	} else {
		a.sched = poller.NewTickerScheduler()
	}

	a.baseCtx, a.baseCancel = context.WithCancel(context.Background())
	a.registry = NewRegistry(a.baseCtx, cfg.Sessions.Max, cfg.Sessions.TTL, a.newSession, logger)

	return a, nil
}

// SetFetcher replaces the backend fetcher. Sessions opened afterwards use it.
func (a *App) SetFetcher(f Fetcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetcher = f
}

// SetScheduler replaces the polling scheduler for sessions opened afterwards.
func (a *App) SetScheduler(s poller.Scheduler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sched = s
}

// SetMetrics wires the metrics registry into the backend client, sessions
// and the session registry.
func (a *App) SetMetrics(reg *metrics.Registry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = reg
	if c, ok := a.fetcher.(*backend.Client); ok {
		c.SetObserver(reg)
	}
	a.registry.SetObserver(reg)
}

// SetPreferences replaces the preference store.
func (a *App) SetPreferences(s *prefs.Store) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefs = s
}

func (a *App) newSession(id string) *Session {
	a.mu.RLock()
	fetcher, sched, reg, store := a.fetcher, a.sched, a.metrics, a.prefs
	a.mu.RUnlock()

	s := NewSession(id, a.sessionCfg, fetcher, sched, a.logger)
	if reg != nil {
		s.SetObserver(reg, reg)
	}

	ctx, cancel := context.WithTimeout(a.baseCtx, 5*time.Second)
	defer cancel()
	p, err := store.Load(ctx, id)
	if err != nil {
		a.logger.Warn("loading preferences failed", zap.String("session", id), zap.Error(err))
	}
	s.Store().SetDarkMode(p.DarkMode)
	return s
}

// Open returns the session for id, creating it if needed.
func (a *App) Open(id string) (*Session, bool, error) {
	return a.registry.Open(id)
}

// Lookup returns an existing session.
func (a *App) Lookup(id string) (*Session, error) {
	return a.registry.Get(id)
}

// SetDarkMode updates and persists the session's dark mode preference.
func (a *App) SetDarkMode(ctx context.Context, s *Session, on bool) error {
	s.Store().SetDarkMode(on)
	a.mu.RLock()
	store := a.prefs
	a.mu.RUnlock()
	return store.Save(ctx, s.ID(), prefs.Preferences{DarkMode: on})
}

// Tickers returns the configured chart ticker choices.
func (a *App) Tickers() []string {
	return a.cfg.Tickers()
}

// StockTickers returns the configured stock choices.
func (a *App) StockTickers() []string {
	return append([]string(nil), a.cfg.View.StockTickers...)
}

// CryptoTickers returns the configured crypto choices.
func (a *App) CryptoTickers() []string {
	return append([]string(nil), a.cfg.View.CryptoTickers...)
}

// BackendEnabled reports whether a backend base URL is configured.
func (a *App) BackendEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fetcher.Enabled()
}

// Start runs the session janitor until ctx is cancelled or Stop is called,
// then tears down every session.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("tradeboard starting",
		zap.Bool("backend_enabled", a.BackendEnabled()),
		zap.Duration("session_ttl", a.cfg.Sessions.TTL),
		zap.Int("max_sessions", a.cfg.Sessions.Max),
	)

	ticker := time.NewTicker(a.cfg.Sessions.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("tradeboard shutting down")
			a.shutdown()
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			return ctx.Err()
		case now := <-ticker.C:
			if n := a.registry.Sweep(now); n > 0 {
				a.logger.Debug("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

// Stop stops the janitor loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Close tears down sessions and schedulers without a running janitor.
func (a *App) Close() {
	a.shutdown()
}

func (a *App) shutdown() {
	a.registry.Close()
	a.baseCancel()
	if a.cron != nil {
		a.cron.Stop()
	}
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"running":         a.running,
		"sessions":        a.registry.Len(),
		"backend_enabled": a.fetcher.Enabled(),
		"scheduler":       a.cfg.Polling.Scheduler,
	}
}
