package present

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradeboard/internal/core"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPriceSeries_SortsAscending(t *testing.T) {
	points := []core.PricePoint{
		{Timestamp: now.Add(-1 * time.Hour), Price: 3},
		{Timestamp: now.Add(-3 * time.Hour), Price: 1},
		{Timestamp: now.Add(-2 * time.Hour), Price: 2},
	}

	chart := PriceSeries("AAPL", points, 0, now)

	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "AAPL Price", chart.Datasets[0].Label)
	assert.Equal(t, []float64{1, 2, 3}, chart.Datasets[0].Data)
	assert.True(t, chart.Labels[0].Before(chart.Labels[2]))
	assert.Equal(t, now.Add(-1*time.Hour), points[0].Timestamp, "input untouched")
}

func TestPriceSeries_ZeroLookbackKeepsWholeRange(t *testing.T) {
	points := []core.PricePoint{
		{Timestamp: now.Add(-30 * 24 * time.Hour), Price: 1},
		{Timestamp: now.Add(-time.Hour), Price: 2},
	}
	chart := PriceSeries("BTC-USD", points, 0, now)
	assert.Len(t, chart.Labels, 2)
}

func TestPriceSeries_Lookback(t *testing.T) {
	points := []core.PricePoint{
		{Timestamp: now.Add(-8 * time.Hour), Price: 1},
		{Timestamp: now.Add(-6 * time.Hour), Price: 2},
		{Timestamp: now.Add(-time.Hour), Price: 3},
	}
	chart := PriceSeries("AAPL", points, 6*time.Hour, now)
	assert.Equal(t, []float64{2, 3}, chart.Datasets[0].Data)
}

func TestPriceSeries_Empty(t *testing.T) {
	chart := PriceSeries("AAPL", nil, 0, now)
	assert.True(t, chart.Empty())
	assert.NotNil(t, chart.Datasets[0].Data)
}

func TestSummaryBars(t *testing.T) {
	chart := SummaryBars([]core.SummaryEntry{{Key: "RSI", Count: 4}, {Key: "MA_CROSS", Count: 2}})

	assert.Equal(t, []string{"RSI", "MA_CROSS"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "Signal Counts", chart.Datasets[0].Label)
	assert.Equal(t, []float64{4, 2}, chart.Datasets[0].Data)
	assert.False(t, chart.Empty())
	assert.True(t, SummaryBars(nil).Empty())
}

func TestBadgeFor(t *testing.T) {
	tests := []struct {
		action core.Action
		color  string
		label  string
	}{
		{core.ActionBuy, "green", "BUY"},
		{core.ActionSell, "red", "SELL"},
		{core.ActionNeutral, "gray", "NEUTRAL"},
		{"", "gray", "NEUTRAL"},
		{"hold", "gray", "NEUTRAL"},
		{"buy", "gray", "NEUTRAL"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			b := BadgeFor(tt.action)
			assert.Equal(t, tt.color, b.Color)
			assert.Equal(t, tt.label, b.Label)
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 600_000_000, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2025-01-02 08:04:05.600", FormatTime(ts))
	assert.Equal(t, "", FormatTime(time.Time{}))
}

func TestFormatValue(t *testing.T) {
	v := 1.23456789
	assert.Equal(t, "1.2346", FormatValue(&v))
	whole := 2.0
	assert.Equal(t, "2.0000", FormatValue(&whole))
	assert.Equal(t, "", FormatValue(nil))
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "{}", FormatParams(nil))
	assert.Equal(t, "{}", FormatParams(map[string]any{}))
	assert.Equal(t, `{"fast":10,"slow":50}`, FormatParams(map[string]any{"slow": 50, "fast": 10}))

	long := FormatParams(map[string]any{"note": strings.Repeat("x", 200)})
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.Equal(t, ParamsMaxLen+1, utf8.RuneCountInString(long))
}

func TestTableRows(t *testing.T) {
	v := 0.5
	rows := TableRows([]core.SignalRecord{
		{ID: "1", Ticker: "AAPL", Timestamp: now, SignalType: "RSI", SignalValue: &v, Action: core.ActionSell, Message: "overbought"},
		{Ticker: "MSFT", Timestamp: now},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-10 12:00:00.000", rows[0].Time)
	assert.Equal(t, "0.5000", rows[0].Value)
	assert.Equal(t, "red", rows[0].Badge.Color)
	assert.Equal(t, "{}", rows[0].Params)
	assert.Equal(t, "overbought", rows[0].Message)

	assert.Equal(t, "", rows[1].Value)
	assert.Equal(t, "gray", rows[1].Badge.Color)
}
