package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action represents the directional classification of a signal
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionNeutral Action = "NEUTRAL"
)

// Actions lists every valid action in display order.
var Actions = []Action{ActionBuy, ActionSell, ActionNeutral}

// NormalizeAction maps a raw label to one of the three actions. Labels must
// match exactly; missing, unknown and differently cased labels become NEUTRAL.
func NormalizeAction(raw string) Action {
	switch Action(raw) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionNeutral
	}
}

// SignalRecord is one observed or generated trading signal.
// Records are immutable once fetched; views only filter and reorder them.
type SignalRecord struct {
	ID          string         `json:"id,omitempty"`
	Ticker      string         `json:"ticker"`
	Timestamp   time.Time      `json:"timestamp"`
	SignalType  string         `json:"signal_type"`
	SignalValue *float64       `json:"signal_value,omitempty"`
	Action      Action         `json:"action"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// EffectiveAction returns the record's action, treating anything invalid as NEUTRAL.
func (s SignalRecord) EffectiveAction() Action {
	return NormalizeAction(string(s.Action))
}

// PricePoint is a single (timestamp, price) observation
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// SummaryEntry is an aggregate count for one group (signal type or action)
type SummaryEntry struct {
	Key   string `json:"group_key"`
	Count int    `json:"count"`
}

// timestampLayouts covers ISO-8601, Python str(datetime) and RFC 1123 (Flask jsonify).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 style string or an epoch value.
// Epoch values above 1e12 are treated as milliseconds. Zone-less strings are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func fromEpoch(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
