// Package filter implements the signal filter engine: the predicates deciding which
// rows are shown, their ordering, and pagination. It performs no I/O.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
)

// AllTickers is the ticker sentinel that disables ticker filtering.
const AllTickers = "ALL"

// Window is a recency filter label such as "24h" or "All".
type Window string

const (
	Window6h  Window = "6h"
	Window12h Window = "12h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
	WindowAll Window = "All"
)

var windowDurations = map[Window]time.Duration{
	Window6h:  6 * time.Hour,
	Window12h: 12 * time.Hour,
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
	Window90d: 90 * 24 * time.Hour,
}

// TableWindows are the windows offered by the signals table.
var TableWindows = []Window{Window6h, Window12h, Window24h, Window7d, Window30d, WindowAll}

// RangeWindows are the windows offered by the price chart range selector.
var RangeWindows = []Window{Window24h, Window7d, Window30d, Window90d, WindowAll}

// Duration returns the window length. Unrecognized windows yield zero,
// which excludes every row; use ParseWindow to guard inputs.
func (w Window) Duration() time.Duration {
	return windowDurations[w]
}

// Valid reports whether w is a known window.
func (w Window) Valid() bool {
	if w == WindowAll {
		return true
	}
	_, ok := windowDurations[w]
	return ok
}

// ParseWindow validates a window label against the allowed set.
func ParseWindow(raw string, allowed []Window) (Window, error) {
	for _, w := range allowed {
		if string(w) == raw {
			return w, nil
		}
	}
	return "", core.WrapError(core.ErrInvalidFilter, fmt.Errorf("unknown window %q", raw))
}

// ActionSet holds the inclusion toggle for each action.
type ActionSet map[core.Action]bool

// AllActions returns a set with every action enabled.
func AllActions() ActionSet {
	return ActionSet{core.ActionBuy: true, core.ActionSell: true, core.ActionNeutral: true}
}

// Clone returns a copy safe to mutate.
func (a ActionSet) Clone() ActionSet {
	out := make(ActionSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Includes reports whether rows with the given action pass.
func (a ActionSet) Includes(action core.Action) bool {
	return a[core.NormalizeAction(string(action))]
}

// Criteria is the part of the filter state the engine consumes.
type Criteria struct {
	Ticker  string
	Actions ActionSet
	Since   Window
	Query   string
}

// Predicate decides whether a single row is kept.
type Predicate func(row core.SignalRecord) bool

// Predicates returns the independent predicates for c evaluated at now.
// All must pass; their order does not affect the result.
func Predicates(c Criteria, now time.Time) []Predicate {
	return []Predicate{
		ByAction(c.Actions),
		ByTicker(c.Ticker),
		BySince(c.Since, now),
		ByQuery(c.Query),
	}
}

// ByAction keeps rows whose action toggle is on. Missing actions count as NEUTRAL.
func ByAction(actions ActionSet) Predicate {
	return func(row core.SignalRecord) bool {
		return actions.Includes(row.Action)
	}
}

// ByTicker keeps rows for one ticker, or all rows for AllTickers.
func ByTicker(ticker string) Predicate {
	return func(row core.SignalRecord) bool {
		return ticker == AllTickers || ticker == "" || row.Ticker == ticker
	}
}

// BySince keeps rows no older than the window at now.
func BySince(since Window, now time.Time) Predicate {
	if since == WindowAll {
		return func(core.SignalRecord) bool { return true }
	}
	limit := since.Duration()
	return func(row core.SignalRecord) bool {
		return now.Sub(row.Timestamp) <= limit
	}
}

// ByQuery keeps rows whose ticker, signal type, action and message contain q,
// case-insensitively. An empty query keeps everything.
func ByQuery(q string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return func(core.SignalRecord) bool { return true }
	}
	return func(row core.SignalRecord) bool {
		hay := strings.ToLower(strings.Join([]string{
			row.Ticker, row.SignalType, string(row.EffectiveAction()), row.Message,
		}, " "))
		return strings.Contains(hay, needle)
	}
}

// Apply keeps the rows passing every predicate, preserving input order.
func Apply(rows []core.SignalRecord, preds ...Predicate) []core.SignalRecord {
	out := make([]core.SignalRecord, 0, len(rows))
next:
	for _, row := range rows {
		for _, p := range preds {
			if !p(row) {
				continue next
			}
		}
		out = append(out, row)
	}
	return out
}

// SortNewestFirst orders rows by descending timestamp. Equal timestamps keep input order.
func SortNewestFirst(rows []core.SignalRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})
}

// Signals filters rows against c at now and returns them newest first.
// The input slice is not modified.
func Signals(rows []core.SignalRecord, c Criteria, now time.Time) []core.SignalRecord {
	out := Apply(rows, Predicates(c, now)...)
	SortNewestFirst(out)
	return out
}

// Tickers returns the sorted distinct non-empty tickers present in rows.
func Tickers(rows []core.SignalRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r.Ticker != "" {
			seen[r.Ticker] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
