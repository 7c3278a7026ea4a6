package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newthinker/tradeboard/internal/backend"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/poller"
	"github.com/newthinker/tradeboard/internal/view"
	"go.uber.org/zap"
)

// GenerationFailed is shown when the generation request could not complete.
const GenerationFailed = "Failed to generate signals."

// Fetcher is the backend surface a session reads from. *backend.Client implements it.
type Fetcher interface {
	Enabled() bool
	Prices(ctx context.Context, ticker, rng string) ([]core.PricePoint, error)
	RecentSignals(ctx context.Context, limit int) ([]core.SignalRecord, error)
	Summary(ctx context.Context, groupBy string) ([]core.SummaryEntry, error)
	GeneratedSignals(ctx context.Context, ticker string, limit int) ([]core.SignalRecord, error)
	Generate(ctx context.Context, ticker string) (backend.GenerateResult, error)
}

// Observer is told what happened to each fetch result and generation request.
type Observer interface {
	ObserveSlotResult(slot, result string)
	ObserveGeneration(outcome string)
}

// SessionConfig holds the per-session fetch parameters.
type SessionConfig struct {
	SignalsLimit   int
	GeneratedLimit int
	GroupBy        string
	Polling        poller.Config
	View           view.Defaults
}

// DefaultSessionConfig returns the reference fetch parameters.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SignalsLimit:   500,
		GeneratedLimit: 20,
		GroupBy:        "signal_type",
		Polling:        poller.DefaultConfig(),
		View: view.Defaults{
			PageSize:    filter.DefaultPageSize,
			Since:       filter.Window24h,
			Ticker:      "AAPL",
			Range:       filter.Window24h,
			AutoRefresh: true,
		},
	}
}

// Session is one dashboard view: a view store fed by a polling controller.
type Session struct {
	id       string
	cfg      SessionConfig
	store    *view.Store
	ctrl     *poller.Controller
	fetcher  Fetcher
	logger   *zap.Logger
	observer Observer
	created  time.Time

	filtersMu  sync.Mutex
	generating atomic.Bool
	lastSeen   atomic.Int64
	closeOnce  sync.Once
}

// NewSession wires a store and controller for id. Nothing is fetched until Start.
func NewSession(id string, cfg SessionConfig, fetcher Fetcher, sched poller.Scheduler, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Polling.AutoRefresh = cfg.View.AutoRefresh

	s := &Session{
		id:      id,
		cfg:     cfg,
		store:   view.NewStore(cfg.View),
		fetcher: fetcher,
		logger:  logger.With(zap.String("session", id)),
		created: time.Now(),
	}
	s.ctrl = poller.NewController(cfg.Polling, sched, poller.Tasks{
		Prices:    s.fetchPrices,
		Signals:   s.fetchSignals,
		Summary:   s.fetchSummary,
		Generated: s.fetchGenerated,
	}, s.logger)
	s.Touch()
	return s
}

// SetObserver attaches metrics observers to the session and its controller.
func (s *Session) SetObserver(o Observer, ticks poller.TickObserver) {
	s.observer = o
	if ticks != nil {
		s.ctrl.SetTickObserver(ticks)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Store returns the session's view store.
func (s *Session) Store() *view.Store { return s.store }

// Created returns when the session was created.
func (s *Session) Created() time.Time { return s.created }

// Touch marks the session as used now.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Start performs the initial fetch and installs the schedules. With no
// backend configured the session stays inert.
func (s *Session) Start(ctx context.Context) {
	if !s.fetcher.Enabled() {
		s.logger.Debug("backend not configured, session inert")
		return
	}
	s.ctrl.Start(ctx)
}

// Close stops polling and detaches the store. Late results are dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.ctrl.Stop()
		s.store.Close()
		s.logger.Debug("session closed")
	})
}

// Wait blocks until in-flight fetches return.
func (s *Session) Wait() { s.ctrl.Wait() }

// UpdateFilters patches the table filters. Toggling auto-refresh updates the
// controller's schedule; concurrent updates are serialized so the two agree.
func (s *Session) UpdateFilters(fn func(*view.Filters)) (view.Filters, error) {
	s.filtersMu.Lock()
	defer s.filtersMu.Unlock()

	f, err := s.store.UpdateFilters(fn)
	if err != nil {
		return f, err
	}
	if f.AutoRefresh != s.ctrl.AutoRefresh() {
		s.ctrl.SetAutoRefresh(f.AutoRefresh)
	}
	return f, nil
}

// Select changes the chart selection and refetches dependent data on change.
func (s *Session) Select(sel view.Selection) (bool, error) {
	changed, err := s.store.SetSelection(sel)
	if err != nil || !changed {
		return changed, err
	}
	s.ctrl.SelectionChanged()
	return true, nil
}

// RefreshAll refetches everything and records the completion time.
func (s *Session) RefreshAll(ctx context.Context) time.Time {
	if !s.fetcher.Enabled() {
		at := time.Now()
		s.store.SetLastUpdated(at)
		return at
	}
	at := s.ctrl.RefreshAll(ctx)
	s.store.SetLastUpdated(at)
	return at
}

// Generate asks the backend to generate signals for the selected ticker and
// returns the outcome shown to the user. A generation already running is
// not repeated. The loading flag is always cleared before returning.
func (s *Session) Generate(ctx context.Context) view.Generation {
	if !s.generating.CompareAndSwap(false, true) {
		return s.store.Generation()
	}
	defer s.generating.Store(false)

	ticker := s.store.Selection().Ticker
	s.store.SetGeneration(view.Generation{Loading: true})

	var result view.Generation
	defer func() { s.store.SetGeneration(result) }()

	res, err := s.fetcher.Generate(ctx, ticker)
	if err != nil {
		s.logger.Warn("signal generation failed", zap.String("ticker", ticker), zap.Error(err))
		result.Message = GenerationFailed
		s.observeGeneration("failed")
		return result
	}
	result.Message = res.Message()
	s.observeGeneration("ok")
	s.ctrl.Trigger(s.fetchSummary)
	return result
}

func (s *Session) fetchPrices(ctx context.Context) {
	sel, seq := s.store.BeginSelection(view.SlotPrices)
	points, err := s.fetcher.Prices(ctx, sel.Ticker, string(sel.Range))
	s.settle(ctx, view.SlotPrices, err, func() bool { return s.store.ApplyPrices(seq, points, err) })
}

func (s *Session) fetchSignals(ctx context.Context) {
	seq := s.store.Begin(view.SlotSignals)
	rows, err := s.fetcher.RecentSignals(ctx, s.cfg.SignalsLimit)
	s.settle(ctx, view.SlotSignals, err, func() bool { return s.store.ApplySignals(seq, rows, err) })
}

func (s *Session) fetchSummary(ctx context.Context) {
	seq := s.store.Begin(view.SlotSummary)
	entries, err := s.fetcher.Summary(ctx, s.cfg.GroupBy)
	s.settle(ctx, view.SlotSummary, err, func() bool { return s.store.ApplySummary(seq, entries, err) })
}

func (s *Session) fetchGenerated(ctx context.Context) {
	sel, seq := s.store.BeginSelection(view.SlotGenerated)
	rows, err := s.fetcher.GeneratedSignals(ctx, sel.Ticker, s.cfg.GeneratedLimit)
	s.settle(ctx, view.SlotGenerated, err, func() bool { return s.store.ApplyGenerated(seq, rows, err) })
}

// settle applies a fetch result. Errors degrade the slot to empty; results
// for a cancelled request or a closed store are dropped.
func (s *Session) settle(ctx context.Context, slot view.Slot, err error, apply func() bool) {
	if ctx.Err() != nil {
		s.observe(slot, "cancelled")
		return
	}
	if !apply() {
		s.observe(slot, "stale")
		return
	}
	if err != nil {
		s.logger.Warn("fetch failed, slot cleared",
			zap.String("slot", string(slot)),
			zap.String("code", core.CodeOf(err)),
			zap.Error(err),
		)
		s.observe(slot, "error")
		return
	}
	s.observe(slot, "applied")
}

func (s *Session) observeGeneration(outcome string) {
	if s.observer != nil {
		s.observer.ObserveGeneration(outcome)
	}
}

func (s *Session) observe(slot view.Slot, result string) {
	if s.observer != nil {
		s.observer.ObserveSlotResult(string(slot), result)
	}
}
