// internal/storage/prefs/store.go
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"

	"github.com/newthinker/tradeboard/internal/core"
)

// Preferences are the persisted UI preferences of one browser.
type Preferences struct {
	DarkMode bool `json:"dark_mode"`
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store reads and writes Preferences for an owner through a Backend.
type Store struct {
	backend Backend
}

// NewStore creates a preference store over backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func key(owner string) string {
	return "preferences/" + owner + ".json"
}

// Load returns the owner's preferences. Missing documents yield the zero value.
func (s *Store) Load(ctx context.Context, owner string) (Preferences, error) {
	if !ownerPattern.MatchString(owner) {
		return Preferences{}, core.WrapError(core.ErrPreferenceStore, errors.New("invalid owner"))
	}
	data, err := s.backend.Read(ctx, key(owner))
	if errors.Is(err, ErrNotFound) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, core.WrapError(core.ErrPreferenceStore, err)
	}

	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, core.WrapError(core.ErrPreferenceStore, err)
	}
	return p, nil
}

// Save persists the owner's preferences.
func (s *Store) Save(ctx context.Context, owner string, p Preferences) error {
	if !ownerPattern.MatchString(owner) {
		return core.WrapError(core.ErrPreferenceStore, errors.New("invalid owner"))
	}
	data, err := json.Marshal(p)
	if err != nil {
		return core.WrapError(core.ErrPreferenceStore, err)
	}
	if err := s.backend.Write(ctx, key(owner), data); err != nil {
		return core.WrapError(core.ErrPreferenceStore, err)
	}
	return nil
}
