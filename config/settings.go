package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/chris/nudge/internal/atomicfile"
)

// Settings are the runtime-tunable options. They are mutated by the
// command surface and persisted to settings.json on every change.
type Settings struct {
	Enable          bool     `json:"enable"`
	Timezone        string   `json:"timezone"`
	SubscribeMode   string   `json:"subscribe_mode"` // "manual" or "auto"
	AfterLastMsgMin int      `json:"after_last_msg_minutes"`
	Daily           Daily    `json:"daily"`
	QuietHours      string   `json:"quiet_hours"` // "HH:MM-HH:MM" or empty
	HistoryDepth    int      `json:"history_depth"`
	CustomPrompts   []string `json:"custom_prompts"`
	PersonaOverride string   `json:"persona_override"`
	MaxNoReplyDays  int      `json:"max_no_reply_days"`
	AppendTimeField bool     `json:"append_time_field"`
	TimeFormat      string   `json:"time_format"` // strftime-style
	DebugMode       bool     `json:"debug_mode"`
	Special         Special  `json:"_special"`
}

// Daily holds the two optional fixed fire times.
type Daily struct {
	Time1 string `json:"time1"`
	Time2 string `json:"time2"`
}

// Special holds fixed overrides normally left empty.
type Special struct {
	Provider string `json:"provider"`
	Persona  string `json:"persona"`
}

func DefaultSettings() Settings {
	return Settings{
		Enable:        true,
		SubscribeMode: "manual",
		HistoryDepth:  8,
		TimeFormat:    "%Y-%m-%d %H:%M",
	}
}

// SettingsStore serializes reads and mutations of Settings and persists
// every mutation to its backing document.
type SettingsStore struct {
	mu   sync.Mutex
	path string
	s    Settings
}

// OpenSettings loads settings from path, falling back to defaults when
// the document is missing or malformed. Loading never fails.
func OpenSettings(path string) *SettingsStore {
	st := &SettingsStore{path: path, s: DefaultSettings()}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: load %s: %v", path, err)
		}
		return st
	}
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("config: parse %s: %v", path, err)
		return st
	}
	st.s = s
	return st
}

// Get returns a copy of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.s
	s.CustomPrompts = append([]string(nil), st.s.CustomPrompts...)
	return s
}

// Update applies fn to the settings and persists the result.
func (st *SettingsStore) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
	return st.save()
}

// Reset restores defaults and persists them (purge teardown).
func (st *SettingsStore) Reset() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = DefaultSettings()
	return st.save()
}

func (st *SettingsStore) save() error {
	data, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return atomicfile.WriteFile(st.path, data, 0644)
}
