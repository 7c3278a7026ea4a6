// Package view holds the state of one dashboard view: filter selections, the
// raw fetched collections, and the filtered, paginated view derived from them.
package view

import (
	"sync"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
)

// Slot names one raw data collection.
type Slot string

const (
	SlotPrices    Slot = "prices"
	SlotSignals   Slot = "signals"
	SlotSummary   Slot = "summary"
	SlotGenerated Slot = "generated"
)

// Slots lists every slot.
var Slots = []Slot{SlotPrices, SlotSignals, SlotSummary, SlotGenerated}

// Filters is the table filter state. Page is 1-based.
type Filters struct {
	Ticker      string           `json:"ticker"`
	Actions     filter.ActionSet `json:"actions"`
	Since       filter.Window    `json:"since"`
	Query       string           `json:"q"`
	AutoRefresh bool             `json:"auto"`
	Page        int              `json:"page"`
}

func (f Filters) clone() Filters {
	f.Actions = f.Actions.Clone()
	return f
}

// sameExceptPage reports whether f and g differ only in Page.
func (f Filters) sameExceptPage(g Filters) bool {
	if f.Ticker != g.Ticker || f.Since != g.Since || f.Query != g.Query || f.AutoRefresh != g.AutoRefresh {
		return false
	}
	for _, a := range core.Actions {
		if f.Actions[a] != g.Actions[a] {
			return false
		}
	}
	return true
}

// Criteria returns the filter engine criteria for f.
func (f Filters) Criteria() filter.Criteria {
	return filter.Criteria{Ticker: f.Ticker, Actions: f.Actions, Since: f.Since, Query: f.Query}
}

// Selection is the chart's ticker and range, which drive the price fetch.
type Selection struct {
	Ticker string        `json:"ticker"`
	Range  filter.Window `json:"range"`
}

// SlotStatus describes the last applied result for a slot.
type SlotStatus struct {
	Loaded    bool      `json:"loaded"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Generation describes the state of the generation trigger.
type Generation struct {
	Loading bool   `json:"loading"`
	Message string `json:"message,omitempty"`
}

// Defaults configures a new store.
type Defaults struct {
	PageSize    int
	Since       filter.Window
	Ticker      string
	Range       filter.Window
	AutoRefresh bool
	DarkMode    bool
}

type slotState struct {
	issued  uint64
	applied uint64
	status  SlotStatus
}

// Store is safe for concurrent use. Every mutation is visible to the next read.
type Store struct {
	mu       sync.RWMutex
	pageSize int

	filters          Filters
	selection        Selection
	generatedActions filter.ActionSet
	darkMode         bool
	lastUpdated      time.Time
	generation       Generation

	prices    []core.PricePoint
	signals   []core.SignalRecord
	summary   []core.SummaryEntry
	generated []core.SignalRecord
	slots     map[Slot]*slotState

	version      uint64
	memo         *tableMemo
	computations int

	subs   map[int]chan struct{}
	nextID int
	closed bool
}

// NewStore creates a store with empty raw slots.
func NewStore(d Defaults) *Store {
	if d.PageSize <= 0 {
		d.PageSize = filter.DefaultPageSize
	}
	if !d.Since.Valid() {
		d.Since = filter.Window24h
	}
	if !d.Range.Valid() {
		d.Range = filter.Window24h
	}

	slots := make(map[Slot]*slotState, len(Slots))
	for _, s := range Slots {
		slots[s] = &slotState{}
	}

	return &Store{
		pageSize: d.PageSize,
		filters: Filters{
			Ticker:      filter.AllTickers,
			Actions:     filter.AllActions(),
			Since:       d.Since,
			AutoRefresh: d.AutoRefresh,
			Page:        1,
		},
		selection:        Selection{Ticker: d.Ticker, Range: d.Range},
		generatedActions: filter.AllActions(),
		darkMode:         d.DarkMode,
		slots:            slots,
		subs:             make(map[int]chan struct{}),
	}
}

// Filters returns a copy of the current filters.
func (s *Store) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.clone()
}

// UpdateFilters applies fn to a copy of the filters. Unless only Page changed,
// the page resets to 1. The since window must be a known table window.
func (s *Store) UpdateFilters(fn func(*Filters)) (Filters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.filters.clone()
	fn(&next)

	if next.Actions == nil {
		next.Actions = filter.ActionSet{}
	}
	if next.Ticker == "" {
		next.Ticker = filter.AllTickers
	}
	if _, err := filter.ParseWindow(string(next.Since), filter.TableWindows); err != nil {
		return s.filters.clone(), err
	}
	if !next.sameExceptPage(s.filters) {
		next.Page = 1
	}
	if next.Page < 1 {
		next.Page = 1
	}

	s.filters = next
	s.changedLocked()
	return next.clone(), nil
}

// SetPage moves to page n. The derived view clamps it to the valid range.
func (s *Store) SetPage(n int) Filters {
	f, _ := s.UpdateFilters(func(f *Filters) { f.Page = n })
	return f
}

// NextPage advances one page, stopping at the last page.
func (s *Store) NextPage(now time.Time) Filters {
	t := s.Table(now)
	return s.SetPage(filter.ClampPage(t.Page+1, t.PageCount))
}

// PrevPage goes back one page, stopping at the first page.
func (s *Store) PrevPage(now time.Time) Filters {
	t := s.Table(now)
	return s.SetPage(filter.ClampPage(t.Page-1, t.PageCount))
}

// Selection returns the chart selection.
func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// SetSelection changes the chart ticker and range. It reports whether
// anything changed so callers refetch only on a real change.
func (s *Store) SetSelection(sel Selection) (bool, error) {
	if _, err := filter.ParseWindow(string(sel.Range), filter.RangeWindows); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel == s.selection {
		return false, nil
	}
	s.selection = sel
	s.changedLocked()
	return true, nil
}

// GeneratedActions returns the action toggles of the generated-signals panel.
func (s *Store) GeneratedActions() filter.ActionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generatedActions.Clone()
}

// SetGeneratedActions replaces the generated-signals panel toggles.
func (s *Store) SetGeneratedActions(a filter.ActionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generatedActions = a.Clone()
	s.changedLocked()
}

// DarkMode returns the dark mode preference.
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// SetDarkMode sets the dark mode preference.
func (s *Store) SetDarkMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.darkMode == on {
		return
	}
	s.darkMode = on
	s.changedLocked()
}

// SetLastUpdated records the time of the last manual refresh.
func (s *Store) SetLastUpdated(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdated = t
	s.changedLocked()
}

// LastUpdated returns the time of the last manual refresh, zero if none.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// SetGeneration records the generation trigger state.
func (s *Store) SetGeneration(g Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation = g
	s.changedLocked()
}

// Generation returns the generation trigger state.
func (s *Store) Generation() Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// changedLocked bumps the version and wakes subscribers. Callers hold s.mu.
func (s *Store) changedLocked() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel signalled after changes. Notifications
// coalesce; readers should take a fresh snapshot on each receive. The
// channel is closed when the store closes or cancel is called.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close drops all subscribers. Results applied after Close are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed reports whether the store has been closed.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
