package view

import (
	"time"

	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
)

// Table is the filtered, sorted, paginated signals view.
type Table struct {
	Rows      []core.SignalRecord `json:"rows"`
	Total     int                 `json:"total"`
	Page      int                 `json:"page"`
	PageCount int                 `json:"page_count"`
	PageSize  int                 `json:"page_size"`
	HasPrev   bool                `json:"has_prev"`
	HasNext   bool                `json:"has_next"`
	Tickers   []string            `json:"tickers"`
}

type tableMemo struct {
	version uint64
	at      time.Time
	table   Table
}

// Table derives the current page of signals. The result is memoized on the
// store version and on now truncated to the second.
func (s *Store) Table(now time.Time) Table {
	at := now.Truncate(time.Second)

	s.mu.RLock()
	if m := s.memo; m != nil && m.version == s.version && m.at.Equal(at) {
		t := m.table
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.memo; m != nil && m.version == s.version && m.at.Equal(at) {
		return m.table
	}

	filtered := filter.Signals(s.signals, s.filters.Criteria(), now)
	page := filter.Paginate(filtered, s.filters.Page, s.pageSize)
	t := Table{
		Rows:      page.Rows,
		Total:     page.Total,
		Page:      page.Number,
		PageCount: page.Count,
		PageSize:  page.Size,
		HasPrev:   page.HasPrev,
		HasNext:   page.HasNext,
		Tickers:   filter.Tickers(s.signals),
	}
	s.memo = &tableMemo{version: s.version, at: at, table: t}
	s.computations++
	return t
}

// GeneratedRows returns the generated signals that pass the panel's action
// toggles, in backend order.
func (s *Store) GeneratedRows() []core.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter.Apply(s.generated, filter.ByAction(s.generatedActions))
}

// Snapshot is a consistent read of the whole view.
type Snapshot struct {
	Version          uint64              `json:"version"`
	Filters          Filters             `json:"filters"`
	Selection        Selection           `json:"selection"`
	GeneratedActions filter.ActionSet    `json:"generated_actions"`
	DarkMode         bool                `json:"dark_mode"`
	LastUpdated      time.Time           `json:"last_updated,omitempty"`
	Generation       Generation          `json:"generation"`
	Table            Table               `json:"table"`
	Prices           []core.PricePoint   `json:"prices"`
	Summary          []core.SummaryEntry `json:"summary"`
	Generated        []core.SignalRecord `json:"generated"`
	Status           map[Slot]SlotStatus `json:"status"`
}

// Snapshot returns the derived table together with the raw collections it
// was computed from.
func (s *Store) Snapshot(now time.Time) Snapshot {
	for {
		table := s.Table(now)

		s.mu.RLock()
		if s.memo == nil || s.memo.version != s.version {
			// changed between the two reads
			s.mu.RUnlock()
			continue
		}
		snap := Snapshot{
			Version:          s.version,
			Filters:          s.filters.clone(),
			Selection:        s.selection,
			GeneratedActions: s.generatedActions.Clone(),
			DarkMode:         s.darkMode,
			LastUpdated:      s.lastUpdated,
			Generation:       s.generation,
			Table:            table,
			Prices:           append([]core.PricePoint(nil), s.prices...),
			Summary:          append([]core.SummaryEntry(nil), s.summary...),
			Generated:        filter.Apply(s.generated, filter.ByAction(s.generatedActions)),
			Status:           make(map[Slot]SlotStatus, len(s.slots)),
		}
		// report the page the table actually shows
		snap.Filters.Page = table.Page
		for slot, st := range s.slots {
			snap.Status[slot] = st.status
		}
		s.mu.RUnlock()
		return snap
	}
}
