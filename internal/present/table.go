package present

import (
	"encoding/json"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/newthinker/tradeboard/internal/core"
)

// TimeLayout renders timestamps as ISO-8601 UTC without the T and Z markers.
const TimeLayout = "2006-01-02 15:04:05.000"

// ParamsMaxLen is the number of characters of params JSON shown before truncation.
const ParamsMaxLen = 80

// Badge is the colored label for an action.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Class string `json:"class"`
}

var badges = map[core.Action]Badge{
	core.ActionBuy:     {Label: "BUY", Color: "green", Class: "bg-green-100 text-green-800 border-green-300"},
	core.ActionSell:    {Label: "SELL", Color: "red", Class: "bg-red-100 text-red-800 border-red-300"},
	core.ActionNeutral: {Label: "NEUTRAL", Color: "gray", Class: "bg-gray-100 text-gray-700 border-gray-300"},
}

// BadgeFor returns the badge for an action. Anything other than BUY or SELL
// gets the neutral gray badge.
func BadgeFor(a core.Action) Badge {
	return badges[core.NormalizeAction(string(a))]
}

// Row is a display row of the signals table.
type Row struct {
	ID          string `json:"id,omitempty"`
	Time        string `json:"time"`
	Ticker      string `json:"ticker"`
	SignalType  string `json:"signal_type"`
	Value       string `json:"value"`
	Badge       Badge  `json:"badge"`
	TriggeredBy string `json:"triggered_by"`
	Params      string `json:"params"`
	Message     string `json:"message"`
}

// FormatTime formats t in UTC with TimeLayout. The zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// FormatValue renders a signal value to four decimal places, or empty when absent.
func FormatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

// FormatParams renders params as compact JSON, truncated to ParamsMaxLen
// characters with a trailing ellipsis. Absent params render as "{}".
func FormatParams(params map[string]any) string {
	if params == nil {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	s := string(b)
	if utf8.RuneCountInString(s) <= ParamsMaxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:ParamsMaxLen]) + "…"
}

// TableRow maps one record to its display row.
func TableRow(r core.SignalRecord) Row {
	return Row{
		ID:          r.ID,
		Time:        FormatTime(r.Timestamp),
		Ticker:      r.Ticker,
		SignalType:  r.SignalType,
		Value:       FormatValue(r.SignalValue),
		Badge:       BadgeFor(r.Action),
		TriggeredBy: r.TriggeredBy,
		Params:      FormatParams(r.Params),
		Message:     r.Message,
	}
}

// TableRows maps records to display rows, preserving order.
func TableRows(records []core.SignalRecord) []Row {
	out := make([]Row, len(records))
	for i, r := range records {
		out[i] = TableRow(r)
	}
	return out
}
