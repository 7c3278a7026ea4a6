package view

import (
	"time"

	"github.com/newthinker/tradeboard/internal/core"
)

// Begin issues a sequence number for a new request on slot. Pass it to the
// matching Apply call: a response is applied only if no newer one has been.
func (s *Store) Begin(slot Slot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.slots[slot]
	st.issued++
	return st.issued
}

// BeginSelection issues a sequence number for slot together with the chart
// selection the request is for. Both are read under one lock, so a request
// for an older selection never outranks one for a newer selection.
func (s *Store) BeginSelection(slot Slot) (Selection, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.slots[slot]
	st.issued++
	return s.selection, st.issued
}

// acceptLocked reports whether a response with seq may replace the slot's
// contents, and records it if so. Callers hold s.mu.
func (s *Store) acceptLocked(slot Slot, seq uint64, err error, at time.Time) bool {
	if s.closed {
		return false
	}
	st := s.slots[slot]
	if seq != 0 && seq <= st.applied {
		return false
	}
	if seq > st.applied {
		st.applied = seq
	}
	st.status = SlotStatus{Loaded: err == nil, UpdatedAt: at}
	if err != nil {
		st.status.Error = err.Error()
	}
	return true
}

// ApplyPrices replaces the price series. A failed fetch empties it.
// It reports whether the result was applied.
func (s *Store) ApplyPrices(seq uint64, points []core.PricePoint, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(SlotPrices, seq, err, time.Now()) {
		return false
	}
	if err != nil {
		points = nil
	}
	s.prices = points
	s.changedLocked()
	return true
}

// ApplySignals replaces the recent signals collection.
func (s *Store) ApplySignals(seq uint64, rows []core.SignalRecord, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(SlotSignals, seq, err, time.Now()) {
		return false
	}
	if err != nil {
		rows = nil
	}
	s.signals = rows
	s.changedLocked()
	return true
}

// ApplySummary replaces the summary counts.
func (s *Store) ApplySummary(seq uint64, entries []core.SummaryEntry, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(SlotSummary, seq, err, time.Now()) {
		return false
	}
	if err != nil {
		entries = nil
	}
	s.summary = entries
	s.changedLocked()
	return true
}

// ApplyGenerated replaces the generated signals for the selected ticker.
func (s *Store) ApplyGenerated(seq uint64, rows []core.SignalRecord, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(SlotGenerated, seq, err, time.Now()) {
		return false
	}
	if err != nil {
		rows = nil
	}
	s.generated = rows
	s.changedLocked()
	return true
}

// Status returns the status of one slot.
func (s *Store) Status(slot Slot) SlotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.slots[slot]; ok {
		return st.status
	}
	return SlotStatus{}
}

// Prices returns the raw price series.
func (s *Store) Prices() []core.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.PricePoint(nil), s.prices...)
}

// Signals returns the raw recent signals.
func (s *Store) Signals() []core.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.SignalRecord(nil), s.signals...)
}

// Summary returns the raw summary counts.
func (s *Store) Summary() []core.SummaryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.SummaryEntry(nil), s.summary...)
}

// Generated returns the raw generated signals.
func (s *Store) Generated() []core.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.SignalRecord(nil), s.generated...)
}
