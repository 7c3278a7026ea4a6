package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/api/response"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/backend"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/poller"
	"github.com/newthinker/tradeboard/internal/present"
)

type stubFetcher struct {
	mu      sync.Mutex
	tickers []string
	rows    []core.SignalRecord
}

func newStubFetcher(n int) *stubFetcher {
	now := time.Now()
	f := &stubFetcher{}
	for i := 0; i < n; i++ {
		ticker, action := "AAPL", core.ActionBuy
		if i%2 == 1 {
			ticker, action = "MSFT", core.ActionSell
		}
		f.rows = append(f.rows, core.SignalRecord{
			ID:         fmt.Sprintf("sig-%d", i),
			Ticker:     ticker,
			Timestamp:  now.Add(-time.Duration(i) * time.Minute),
			SignalType: "RSI",
			Action:     action,
		})
	}
	return f
}

func (f *stubFetcher) Enabled() bool { return true }

func (f *stubFetcher) Prices(_ context.Context, ticker, _ string) ([]core.PricePoint, error) {
	f.mu.Lock()
	f.tickers = append(f.tickers, ticker)
	f.mu.Unlock()
	return []core.PricePoint{{Timestamp: time.Now(), Price: 10}}, nil
}

func (f *stubFetcher) RecentSignals(context.Context, int) ([]core.SignalRecord, error) {
	return f.rows, nil
}

func (f *stubFetcher) Summary(context.Context, string) ([]core.SummaryEntry, error) {
	return []core.SummaryEntry{{Key: "RSI", Count: len(f.rows)}}, nil
}

func (f *stubFetcher) GeneratedSignals(_ context.Context, ticker string, _ int) ([]core.SignalRecord, error) {
	return []core.SignalRecord{
		{Ticker: ticker, Action: core.ActionBuy},
		{Ticker: ticker, Action: core.ActionNeutral},
	}, nil
}

func (f *stubFetcher) Generate(_ context.Context, ticker string) (backend.GenerateResult, error) {
	return backend.GenerateResult{Status: "Signals generated for " + ticker}, nil
}

func (f *stubFetcher) lastTicker() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

type stubSaver struct {
	saved []bool
	err   error
}

func (s *stubSaver) SetDarkMode(_ context.Context, sess *app.Session, on bool) error {
	if s.err != nil {
		return s.err
	}
	sess.Store().SetDarkMode(on)
	s.saved = append(s.saved, on)
	return nil
}

func startSession(t *testing.T, f app.Fetcher) *app.Session {
	t.Helper()
	s := app.NewSession("test-session", app.DefaultSessionConfig(), f, poller.NewManualScheduler(), nil)
	s.Start(context.Background())
	s.Wait()
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.HandlerFunc, s *app.Session, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	if s != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), s))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeDashboard(t *testing.T, w *httptest.ResponseRecorder) present.Dashboard {
	t.Helper()
	var env struct {
		Data present.Dashboard `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var env response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func TestDashboardHandler_View(t *testing.T) {
	s := startSession(t, newStubFetcher(30))
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.View, s, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)

	d := decodeDashboard(t, w)
	assert.Equal(t, 30, d.Table.Total)
	assert.Len(t, d.Table.Rows, 25)
	assert.Equal(t, 2, d.Table.PageCount)
	assert.True(t, d.Table.HasNext)
	assert.Equal(t, []string{"AAPL", "MSFT"}, d.Table.Tickers)
	assert.Equal(t, "AAPL Price", d.Prices.Datasets[0].Label)
	assert.Equal(t, []string{"RSI"}, d.Summary.Labels)
	assert.Len(t, d.Generated, 2)
	assert.True(t, d.Status["signals"].Loaded)
}

func TestDashboardHandler_NoSession(t *testing.T) {
	h := NewDashboardHandler(&stubSaver{})
	w := do(t, h.View, nil, http.MethodGet, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)
}

func TestDashboardHandler_Filters(t *testing.T) {
	s := startSession(t, newStubFetcher(30))
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.Filters, s, http.MethodPost, `{"step":"next"}`)
	require.Equal(t, http.StatusOK, w.Code)
	d := decodeDashboard(t, w)
	assert.Equal(t, 2, d.Table.Page)
	assert.Len(t, d.Table.Rows, 5)

	// another filter change resets to page 1
	w = do(t, h.Filters, s, http.MethodPost, `{"ticker":"MSFT","actions":{"buy":false}}`)
	require.Equal(t, http.StatusOK, w.Code)
	d = decodeDashboard(t, w)
	assert.Equal(t, 1, d.Table.Page)
	assert.Equal(t, 15, d.Table.Total)
	assert.False(t, d.Filters.Actions[core.ActionBuy])
	assert.True(t, d.Filters.Actions[core.ActionSell])

	w = do(t, h.Filters, s, http.MethodPost, `{"q":"no such thing"}`)
	require.Equal(t, http.StatusOK, w.Code)
	d = decodeDashboard(t, w)
	assert.Equal(t, 0, d.Table.Total)
	assert.Equal(t, 1, d.Table.PageCount)
	assert.Empty(t, d.Table.Rows)
}

func TestDashboardHandler_FiltersRejectsBadInput(t *testing.T) {
	s := startSession(t, newStubFetcher(3))
	h := NewDashboardHandler(&stubSaver{})

	for _, body := range []string{
		`{"since":"90d"}`,
		`{"actions":{"HOLD":true}}`,
		`{"step":"last"}`,
		`not json`,
	} {
		w := do(t, h.Filters, s, http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "INVALID_FILTER", decodeError(t, w).Code, body)
	}
	assert.Equal(t, "24h", string(s.Store().Filters().Since))
}

func TestDashboardHandler_RejectedFiltersChangeNothing(t *testing.T) {
	s := startSession(t, newStubFetcher(30))
	h := NewDashboardHandler(&stubSaver{})

	require.Equal(t, http.StatusOK, do(t, h.Filters, s, http.MethodPost, `{"page":2}`).Code)
	before := s.Store().Filters()
	version := s.Store().Version()

	for _, body := range []string{
		`{"ticker":"MSFT","q":"rsi","step":"bogus"}`,
		`{"ticker":"MSFT","since":"2y"}`,
		`{"q":"rsi","generated_actions":{"HOLD":false}}`,
	} {
		w := do(t, h.Filters, s, http.MethodPost, body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)

		after := s.Store().Filters()
		assert.Equal(t, before.Ticker, after.Ticker, body)
		assert.Equal(t, before.Query, after.Query, body)
		assert.Equal(t, 2, after.Page, body)
	}
	assert.Equal(t, version, s.Store().Version())
	assert.True(t, s.Store().GeneratedActions()[core.ActionNeutral])
}

func TestDashboardHandler_PageBeyondLastIsClamped(t *testing.T) {
	s := startSession(t, newStubFetcher(30))
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.Filters, s, http.MethodPost, `{"page":99}`)
	require.Equal(t, http.StatusOK, w.Code)
	d := decodeDashboard(t, w)
	assert.Equal(t, 2, d.Table.Page)
	assert.Equal(t, 2, d.Filters.Page)
}

func TestDashboardHandler_GeneratedActions(t *testing.T) {
	s := startSession(t, newStubFetcher(3))
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.Filters, s, http.MethodPost, `{"generated_actions":{"NEUTRAL":false}}`)
	require.Equal(t, http.StatusOK, w.Code)
	d := decodeDashboard(t, w)
	require.Len(t, d.Generated, 1)
	assert.Equal(t, "BUY", d.Generated[0].Badge.Label)
}

func TestDashboardHandler_Selection(t *testing.T) {
	f := newStubFetcher(3)
	s := startSession(t, f)
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.Selection, s, http.MethodPost, `{"ticker":"ETH-USD","range":"90d"}`)
	require.Equal(t, http.StatusOK, w.Code)
	s.Wait()

	assert.Equal(t, "ETH-USD", f.lastTicker())
	assert.Equal(t, "90d", string(s.Store().Selection().Range))

	w = do(t, h.Selection, s, http.MethodPost, `{"range":"6h"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardHandler_RefreshAndGenerate(t *testing.T) {
	s := startSession(t, newStubFetcher(3))
	h := NewDashboardHandler(&stubSaver{})

	w := do(t, h.Refresh, s, http.MethodPost, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeDashboard(t, w).LastUpdated)

	w = do(t, h.Generate, s, http.MethodPost, "")
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Loading bool   `json:"loading"`
			Message string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Data.Loading)
	assert.Equal(t, "Signals generated for AAPL", env.Data.Message)
}

func TestDashboardHandler_Preferences(t *testing.T) {
	s := startSession(t, newStubFetcher(0))
	saver := &stubSaver{}
	h := NewDashboardHandler(saver)

	w := do(t, h.PutPreferences, s, http.MethodPut, `{"dark_mode":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []bool{true}, saver.saved)

	w = do(t, h.GetPreferences, s, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dark_mode":true`)

	saver.err = core.WrapError(core.ErrPreferenceStore, errors.New("disk full"))
	w = do(t, h.PutPreferences, s, http.MethodPut, `{"dark_mode":false}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PREFERENCE_STORE_FAILED", decodeError(t, w).Code)
}
