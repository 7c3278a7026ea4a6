package filter

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(ticker string, action core.Action, ts time.Time) core.SignalRecord {
	return core.SignalRecord{Ticker: ticker, Action: action, Timestamp: ts, SignalType: "RSI"}
}

func sampleRows() []core.SignalRecord {
	rows := []core.SignalRecord{
		{Ticker: "AAPL", SignalType: "MA_CROSS", Action: core.ActionBuy, Timestamp: t0.Add(-1 * time.Hour), Message: "Golden cross"},
		{Ticker: "AAPL", SignalType: "RSI", Action: core.ActionSell, Timestamp: t0.Add(-5 * time.Hour)},
		{Ticker: "BTC-USD", SignalType: "MACD", Action: core.ActionBuy, Timestamp: t0.Add(-30 * time.Minute)},
		{Ticker: "ETH-USD", SignalType: "BOLLINGER", Timestamp: t0.Add(-48 * time.Hour), Message: "band squeeze"},
		{Ticker: "MSFT", SignalType: "VOLUME", Action: core.ActionNeutral, Timestamp: t0.Add(-10 * 24 * time.Hour)},
		{Ticker: "TSLA", SignalType: "RSI", Action: "HOLD", Timestamp: t0.Add(-2 * time.Hour)},
	}
	return rows
}

func TestScenario_TickerAndActionFilter(t *testing.T) {
	rows := []core.SignalRecord{
		rec("AAPL", core.ActionBuy, t0),
		rec("AAPL", core.ActionSell, t0.Add(time.Second)),
		rec("BTC-USD", core.ActionBuy, t0.Add(2*time.Second)),
	}
	c := Criteria{
		Ticker:  "AAPL",
		Actions: ActionSet{core.ActionBuy: true, core.ActionSell: false, core.ActionNeutral: true},
		Since:   WindowAll,
	}

	got := Signals(rows, c, t0.Add(time.Minute))

	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, core.ActionBuy, got[0].Action)
	assert.True(t, got[0].Timestamp.Equal(t0))
}

func TestSignals_PredicateOrderIndependent(t *testing.T) {
	rows := sampleRows()
	criteria := []Criteria{
		{Ticker: AllTickers, Actions: AllActions(), Since: Window24h},
		{Ticker: "AAPL", Actions: ActionSet{core.ActionBuy: true}, Since: WindowAll},
		{Ticker: AllTickers, Actions: ActionSet{core.ActionNeutral: true}, Since: Window7d, Query: "band"},
		{Ticker: AllTickers, Actions: AllActions(), Since: Window6h, Query: "rsi"},
	}

	rnd := rand.New(rand.NewSource(7))
	for i, c := range criteria {
		t.Run(fmt.Sprintf("criteria_%d", i), func(t *testing.T) {
			preds := Predicates(c, t0)
			want := Apply(rows, preds...)

			for n := 0; n < 10; n++ {
				shuffled := append([]Predicate(nil), preds...)
				rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
				assert.Equal(t, want, Apply(rows, shuffled...))
			}
		})
	}
}

func TestSignals_SortedNewestFirst(t *testing.T) {
	rows := sampleRows()
	got := Signals(rows, Criteria{Ticker: AllTickers, Actions: AllActions(), Since: WindowAll}, t0)

	require.Len(t, got, len(rows))
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.After(got[i].Timestamp),
			"row %d (%s) should be newer than row %d (%s)", i-1, got[i-1].Timestamp, i, got[i].Timestamp)
	}
}

func TestSignals_DoesNotMutateInput(t *testing.T) {
	rows := sampleRows()
	before := append([]core.SignalRecord(nil), rows...)

	Signals(rows, Criteria{Ticker: AllTickers, Actions: AllActions(), Since: WindowAll}, t0)

	assert.Equal(t, before, rows)
}

func TestByAction_MissingActionFollowsNeutralToggle(t *testing.T) {
	row := core.SignalRecord{Ticker: "AAPL", Timestamp: t0}

	assert.True(t, ByAction(ActionSet{core.ActionNeutral: true})(row))
	assert.False(t, ByAction(ActionSet{core.ActionBuy: true, core.ActionSell: true})(row))

	unknown := core.SignalRecord{Ticker: "AAPL", Action: "HOLD", Timestamp: t0}
	assert.True(t, ByAction(ActionSet{core.ActionNeutral: true})(unknown))
	assert.False(t, ByAction(ActionSet{core.ActionBuy: true})(unknown))
}

func TestBySince(t *testing.T) {
	old := rec("AAPL", core.ActionBuy, t0.Add(-365*24*time.Hour))
	edge := rec("AAPL", core.ActionBuy, t0.Add(-24*time.Hour))
	recent := rec("AAPL", core.ActionBuy, t0.Add(-time.Minute))

	assert.True(t, BySince(WindowAll, t0)(old), "All never excludes on recency")
	assert.False(t, BySince(Window24h, t0)(old))
	assert.True(t, BySince(Window24h, t0)(edge), "window bound is inclusive")
	assert.True(t, BySince(Window6h, t0)(recent))
}

func TestBySince_UnknownWindowExcludesEverything(t *testing.T) {
	recent := rec("AAPL", core.ActionBuy, t0.Add(-time.Second))

	assert.False(t, BySince(Window("2y"), t0)(recent))
	assert.Zero(t, Window("2y").Duration())
	assert.False(t, Window("2y").Valid())
}

func TestByQuery_CaseInsensitiveSubstring(t *testing.T) {
	row := core.SignalRecord{Ticker: "BTC-USD", SignalType: "MACD", Action: core.ActionBuy, Message: "Histogram flip"}

	for _, q := range []string{"btc", "BTC-usd", "macd", "  buy ", "histogram FLIP", "usd macd"} {
		assert.True(t, ByQuery(q)(row), "query %q should match", q)
	}
	for _, q := range []string{"eth", "sell", "rsi"} {
		assert.False(t, ByQuery(q)(row), "query %q should not match", q)
	}
	assert.True(t, ByQuery("   ")(row), "blank query keeps everything")
}

func TestByQuery_MissingActionSearchesAsNeutral(t *testing.T) {
	row := core.SignalRecord{Ticker: "ETH-USD", SignalType: "RSI"}
	assert.True(t, ByQuery("neutral")(row))
}

func TestByTicker(t *testing.T) {
	row := rec("AAPL", core.ActionBuy, t0)
	assert.True(t, ByTicker(AllTickers)(row))
	assert.True(t, ByTicker("AAPL")(row))
	assert.False(t, ByTicker("aapl")(row), "ticker match is exact")
	assert.False(t, ByTicker("MSFT")(row))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("7d", TableWindows)
	require.NoError(t, err)
	assert.Equal(t, Window7d, w)

	_, err = ParseWindow("90d", TableWindows)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidFilter)

	w, err = ParseWindow("90d", RangeWindows)
	require.NoError(t, err)
	assert.Equal(t, Window90d, w)
}

func TestActionSet_Clone(t *testing.T) {
	a := AllActions()
	b := a.Clone()
	b[core.ActionBuy] = false

	assert.True(t, a[core.ActionBuy])
	assert.False(t, b[core.ActionBuy])
}

func TestTickers(t *testing.T) {
	rows := sampleRows()
	rows = append(rows, core.SignalRecord{Ticker: ""}, rec("AAPL", core.ActionBuy, t0))

	assert.Equal(t, []string{"AAPL", "BTC-USD", "ETH-USD", "MSFT", "TSLA"}, Tickers(rows))
}
