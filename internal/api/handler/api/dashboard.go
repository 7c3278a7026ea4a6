// internal/api/handler/api/dashboard.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/api/response"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/present"
	"github.com/newthinker/tradeboard/internal/view"
)

// PreferenceSaver persists a session's dark mode. *app.App implements it.
type PreferenceSaver interface {
	SetDarkMode(ctx context.Context, s *app.Session, on bool) error
}

// DashboardHandler serves the JSON dashboard API for the request's session.
type DashboardHandler struct {
	prefs PreferenceSaver
	now   func() time.Time
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(prefs PreferenceSaver) *DashboardHandler {
	return &DashboardHandler{prefs: prefs, now: time.Now}
}

// FiltersRequest patches the table filters. Absent fields are left alone.
// Step is "next" or "prev" and is applied after the other fields.
type FiltersRequest struct {
	Ticker           *string         `json:"ticker"`
	Actions          map[string]bool `json:"actions"`
	Since            *string         `json:"since"`
	Query            *string         `json:"q"`
	AutoRefresh      *bool           `json:"auto"`
	Page             *int            `json:"page"`
	Step             string          `json:"step"`
	GeneratedActions map[string]bool `json:"generated_actions"`
}

// SelectionRequest changes the chart selection. Absent fields are left alone.
type SelectionRequest struct {
	Ticker string `json:"ticker"`
	Range  string `json:"range"`
}

// PreferencesBody is the preferences payload.
type PreferencesBody struct {
	DarkMode bool `json:"dark_mode"`
}

// View returns the session's current dashboard.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, h.dashboard(s))
}

// Filters patches the table filters. Any change other than the page moves
// the table back to page 1. The request is validated as a whole first, so a
// rejected request changes nothing.
func (h *DashboardHandler) Filters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req FiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidFilter, err))
		return
	}

	actions, err := parseActions(req.Actions)
	if err != nil {
		response.Fail(w, err)
		return
	}
	generated, err := parseActions(req.GeneratedActions)
	if err != nil {
		response.Fail(w, err)
		return
	}
	switch req.Step {
	case "", "next", "prev":
	default:
		response.Fail(w, core.WrapError(core.ErrInvalidFilter, fmt.Errorf("unknown step %q", req.Step)))
		return
	}
	var since filter.Window
	if req.Since != nil {
		if since, err = filter.ParseWindow(*req.Since, filter.TableWindows); err != nil {
			response.Fail(w, err)
			return
		}
	}

	if _, err := s.UpdateFilters(func(f *view.Filters) {
		if req.Ticker != nil {
			f.Ticker = strings.TrimSpace(*req.Ticker)
		}
		for a, on := range actions {
			f.Actions[a] = on
		}
		if req.Since != nil {
			f.Since = since
		}
		if req.Query != nil {
			f.Query = *req.Query
		}
		if req.AutoRefresh != nil {
			f.AutoRefresh = *req.AutoRefresh
		}
		if req.Page != nil {
			f.Page = *req.Page
		}
	}); err != nil {
		response.Fail(w, err)
		return
	}

	switch req.Step {
	case "next":
		s.Store().NextPage(h.now())
	case "prev":
		s.Store().PrevPage(h.now())
	}

	if len(generated) > 0 {
		set := s.Store().GeneratedActions()
		for a, on := range generated {
			set[a] = on
		}
		s.Store().SetGeneratedActions(set)
	}

	response.JSON(w, http.StatusOK, h.dashboard(s))
}

// Selection changes the chart ticker and range and refetches the data that
// depends on them.
func (h *DashboardHandler) Selection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidFilter, err))
		return
	}

	sel := s.Store().Selection()
	if t := strings.TrimSpace(req.Ticker); t != "" {
		sel.Ticker = t
	}
	if req.Range != "" {
		rng, err := filter.ParseWindow(req.Range, filter.RangeWindows)
		if err != nil {
			response.Fail(w, err)
			return
		}
		sel.Range = rng
	}

	if _, err := s.Select(sel); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.dashboard(s))
}

// Refresh refetches every resource and waits for the results.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RefreshAll(r.Context())
	response.JSON(w, http.StatusOK, h.dashboard(s))
}

// Generate asks the backend to generate signals for the selected ticker.
func (h *DashboardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, s.Generate(r.Context()))
}

// GetPreferences returns the session's preferences.
func (h *DashboardHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, PreferencesBody{DarkMode: s.Store().DarkMode()})
}

// PutPreferences stores the session's preferences.
func (h *DashboardHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req PreferencesBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if err := h.prefs.SetDarkMode(r.Context(), s, req.DarkMode); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

func (h *DashboardHandler) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	s, err := middleware.SessionFrom(r.Context())
	if err != nil {
		response.Fail(w, err)
		return nil, false
	}
	return s, true
}

func (h *DashboardHandler) dashboard(s *app.Session) present.Dashboard {
	return present.BuildDashboard(s.Store().Snapshot(h.now()))
}

// parseActions validates action toggle keys. Unlike record labels, a toggle
// for an unknown action is an error rather than NEUTRAL.
func parseActions(raw map[string]bool) (map[core.Action]bool, error) {
	out := make(map[core.Action]bool, len(raw))
	for k, on := range raw {
		a := core.Action(strings.ToUpper(strings.TrimSpace(k)))
		valid := false
		for _, known := range core.Actions {
			if a == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, core.WrapError(core.ErrInvalidFilter, fmt.Errorf("unknown action %q", k))
		}
		out[a] = on
	}
	return out, nil
}
