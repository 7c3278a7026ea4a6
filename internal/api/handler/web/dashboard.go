// internal/api/handler/web/dashboard.go
package web

import (
	"net/http"
	"time"

	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/present"
)

// DashboardData holds data for the dashboard template
type DashboardData struct {
	Title          string
	BackendEnabled bool
	StockTickers   []string
	CryptoTickers  []string
	TableWindows   []filter.Window
	RangeWindows   []filter.Window
	Actions        []core.Action
	View           present.Dashboard
}

// Dashboard renders the dashboard page for the request's session
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s, err := middleware.SessionFrom(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := DashboardData{
		Title:        "Trading Dashboard",
		TableWindows: filter.TableWindows,
		RangeWindows: filter.RangeWindows,
		Actions:      core.Actions,
		View:         present.BuildDashboard(s.Store().Snapshot(time.Now())),
	}
	if h.tickers != nil {
		data.BackendEnabled = h.tickers.BackendEnabled()
		data.StockTickers = h.tickers.StockTickers()
		data.CryptoTickers = h.tickers.CryptoTickers()
	}

	h.render(w, "dashboard.html", data)
}
