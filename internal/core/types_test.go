package core

import (
	"testing"
	"time"
)

func TestAction_Constants(t *testing.T) {
	expected := []string{"BUY", "SELL", "NEUTRAL"}

	for i, a := range Actions {
		if string(a) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], a)
		}
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		input    string
		expected Action
	}{
		{"BUY", ActionBuy},
		{"SELL", ActionSell},
		{"buy", ActionNeutral},
		{" SELL ", ActionNeutral},
		{"NEUTRAL", ActionNeutral},
		{"", ActionNeutral},
		{"HOLD", ActionNeutral},
		{"strong_buy", ActionNeutral},
	}

	for _, tc := range tests {
		if got := NormalizeAction(tc.input); got != tc.expected {
			t.Errorf("NormalizeAction(%q) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestSignalRecord_EffectiveAction(t *testing.T) {
	if (SignalRecord{}).EffectiveAction() != ActionNeutral {
		t.Error("missing action should be NEUTRAL")
	}
	if (SignalRecord{Action: "bogus"}).EffectiveAction() != ActionNeutral {
		t.Error("unknown action should be NEUTRAL")
	}
	if (SignalRecord{Action: ActionSell}).EffectiveAction() != ActionSell {
		t.Error("SELL should be preserved")
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"rfc3339", "2025-03-04T15:30:00Z"},
		{"rfc3339 offset", "2025-03-04T10:30:00-05:00"},
		{"python str with zone", "2025-03-04 15:30:00+00:00"},
		{"python str naive", "2025-03-04 15:30:00"},
		{"iso naive", "2025-03-04T15:30:00"},
		{"rfc1123", "Tue, 04 Mar 2025 15:30:00 GMT"},
		{"epoch seconds", "1741102200"},
		{"epoch millis", "1741102200000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "yesterday", "2025-13-45"} {
		if _, err := ParseTimestamp(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}
