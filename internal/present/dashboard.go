package present

import (
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/view"
)

// TablePage is the display form of the paginated signals table.
type TablePage struct {
	Rows      []Row    `json:"rows"`
	Total     int      `json:"total"`
	Page      int      `json:"page"`
	PageCount int      `json:"page_count"`
	PageSize  int      `json:"page_size"`
	HasPrev   bool     `json:"has_prev"`
	HasNext   bool     `json:"has_next"`
	Tickers   []string `json:"tickers"`
}

// Dashboard is everything the dashboard page renders for one snapshot.
type Dashboard struct {
	Version          uint64                        `json:"version"`
	Filters          view.Filters                  `json:"filters"`
	Selection        view.Selection                `json:"selection"`
	GeneratedActions filter.ActionSet              `json:"generated_actions"`
	DarkMode         bool                          `json:"dark_mode"`
	LastUpdated      string                        `json:"last_updated"`
	Generation       view.Generation               `json:"generation"`
	Table            TablePage                     `json:"table"`
	Prices           LineChart                     `json:"prices"`
	Summary          BarChart                      `json:"summary"`
	Generated        []Row                         `json:"generated"`
	Status           map[view.Slot]view.SlotStatus `json:"status"`
}

// BuildDashboard adapts a store snapshot for display. The price series is not
// cut to a lookback: the selected range already bounds what was fetched.
func BuildDashboard(snap view.Snapshot) Dashboard {
	t := snap.Table
	return Dashboard{
		Version:          snap.Version,
		Filters:          snap.Filters,
		Selection:        snap.Selection,
		GeneratedActions: snap.GeneratedActions,
		DarkMode:         snap.DarkMode,
		LastUpdated:      FormatTime(snap.LastUpdated),
		Generation:       snap.Generation,
		Table: TablePage{
			Rows:      TableRows(t.Rows),
			Total:     t.Total,
			Page:      t.Page,
			PageCount: t.PageCount,
			PageSize:  t.PageSize,
			HasPrev:   t.HasPrev,
			HasNext:   t.HasNext,
			Tickers:   nonNil(t.Tickers),
		},
		Prices:    PriceSeries(snap.Selection.Ticker, snap.Prices, 0, snap.LastUpdated),
		Summary:   SummaryBars(snap.Summary),
		Generated: TableRows(snap.Generated),
		Status:    snap.Status,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
