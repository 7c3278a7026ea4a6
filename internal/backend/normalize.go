package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
)

// rawSignal accepts both the canonical schema and the legacy field names
// (type, price, signal_strength) some backend endpoints still emit.
type rawSignal struct {
	ID             json.RawMessage `json:"id"`
	Ticker         string          `json:"ticker"`
	Timestamp      json.RawMessage `json:"timestamp"`
	SignalType     string          `json:"signal_type"`
	Type           string          `json:"type"`
	SignalValue    json.RawMessage `json:"signal_value"`
	Price          json.RawMessage `json:"price"`
	Action         string          `json:"action"`
	SignalStrength string          `json:"signal_strength"`
	TriggeredBy    string          `json:"triggered_by"`
	Params         json.RawMessage `json:"params"`
	Message        string          `json:"message"`
}

type rawPrice struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Price     json.RawMessage `json:"price"`
}

// normalizeSignals maps raw rows into the canonical schema. Rows without a
// parseable timestamp are dropped and counted. defaultTicker fills rows that
// omit the ticker (per-ticker endpoints).
func normalizeSignals(raw []rawSignal, defaultTicker string) ([]core.SignalRecord, int) {
	out := make([]core.SignalRecord, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		ts, ok := parseRawTime(r.Timestamp)
		if !ok {
			dropped++
			continue
		}

		rec := core.SignalRecord{
			ID:          rawString(r.ID),
			Ticker:      firstNonEmpty(r.Ticker, defaultTicker),
			Timestamp:   ts,
			SignalType:  firstNonEmpty(r.SignalType, r.Type),
			Action:      core.NormalizeAction(firstNonEmpty(r.Action, r.SignalStrength)),
			TriggeredBy: r.TriggeredBy,
			Params:      rawParams(r.Params),
			Message:     r.Message,
		}
		if v, ok := rawFloat(r.SignalValue); ok {
			rec.SignalValue = &v
		} else if v, ok := rawFloat(r.Price); ok {
			rec.SignalValue = &v
		}
		out = append(out, rec)
	}
	return out, dropped
}

// normalizePrices drops points with no timestamp or a non-finite price and
// sorts the remainder by time; longer ranges are not guaranteed sorted.
func normalizePrices(raw []rawPrice) []core.PricePoint {
	out := make([]core.PricePoint, 0, len(raw))
	for _, r := range raw {
		ts, ok := parseRawTime(r.Timestamp)
		if !ok {
			continue
		}
		p, ok := rawFloat(r.Price)
		if !ok {
			continue
		}
		out = append(out, core.PricePoint{Timestamp: ts, Price: p})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

var summaryKeyFields = []string{"group_key", "type", "signal_type", "action", "key", "label"}

// normalizeSummary reads {<key>, count} rows. The key is taken from
// group_key, the grouped field itself, or a legacy name.
func normalizeSummary(raw []map[string]any, groupBy string) []core.SummaryEntry {
	fields := summaryKeyFields
	if groupBy != "" {
		fields = append([]string{"group_key", groupBy}, summaryKeyFields[1:]...)
	}

	out := make([]core.SummaryEntry, 0, len(raw))
	for _, row := range raw {
		entry := core.SummaryEntry{Key: "unknown"}
		for _, f := range fields {
			if v, ok := row[f]; ok && v != nil {
				entry.Key = toString(v)
				break
			}
		}
		if c, ok := row["count"].(float64); ok && !math.IsNaN(c) {
			entry.Count = int(c)
		}
		out = append(out, entry)
	}
	return out
}

func parseRawTime(raw json.RawMessage) (time.Time, bool) {
	s := rawString(raw)
	if s == "" {
		return time.Time{}, false
	}
	t, err := core.ParseTimestamp(s)
	return t, err == nil
}

// rawString returns a JSON string's contents or a number's literal text.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func rawFloat(raw json.RawMessage) (float64, bool) {
	s := rawString(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// rawParams accepts an object, or a string holding a JSON object.
func rawParams(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		raw = []byte(rawString(raw))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
