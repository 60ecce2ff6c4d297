// Package remind holds user-created reminders and their persistence to
// the reminders.json document.
package remind

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chris/nudge/internal/atomicfile"
)

// Reminder is a single user reminder. At is either "YYYY-MM-DD HH:MM"
// for a one-shot reminder or "HH:MM|daily" for a recurring one.
type Reminder struct {
	ID        string  `json:"id"`
	UMO       string  `json:"umo"`
	Content   string  `json:"content"`
	At        string  `json:"at"`
	CreatedAt float64 `json:"created_at"`
}

// Daily reports whether the reminder recurs daily, and if so at which
// wall-clock time.
func (r Reminder) Daily() (hhmm string, ok bool) {
	return strings.CutSuffix(r.At, "|daily")
}

// Store owns the reminder set.
type Store struct {
	mu        sync.Mutex
	path      string
	reminders map[string]Reminder
}

// Open loads the store from path. A missing or malformed document is an
// empty reminder set; loading never fails.
func Open(path string) *Store {
	s := &Store{path: path, reminders: make(map[string]Reminder)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("remind: load %s: %v", path, err)
		}
		return s
	}
	var arr []Reminder
	if err := json.Unmarshal(data, &arr); err != nil {
		log.Printf("remind: parse %s: %v", path, err)
		return s
	}
	for _, r := range arr {
		if r.ID == "" {
			continue
		}
		s.reminders[r.ID] = r
	}
	return s
}

// Save writes the reminder set to disk as an ordered array.
func (s *Store) Save() error {
	arr := s.All()
	data, err := json.MarshalIndent(arr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling reminders: %w", err)
	}
	return atomicfile.WriteFile(s.path, data, 0644)
}

// Purge deletes the persisted document and resets the in-memory set.
func (s *Store) Purge() error {
	s.mu.Lock()
	s.reminders = make(map[string]Reminder)
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing reminders file: %w", err)
	}
	return nil
}

// Add creates a reminder owned by umo. The id is derived from the
// current second; a same-second collision gets a random suffix.
func (s *Store) Add(umo, content, at string, now time.Time) Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("R%d", now.Unix())
	if _, taken := s.reminders[id]; taken {
		id = fmt.Sprintf("%s-%s", id, uuid.NewString()[:8])
	}
	r := Reminder{
		ID:        id,
		UMO:       umo,
		Content:   content,
		At:        at,
		CreatedAt: float64(now.UnixNano()) / float64(time.Second),
	}
	s.reminders[id] = r
	return r
}

// ListFor returns umo's reminders sorted by creation time ascending.
func (s *Store) ListFor(umo string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reminder
	for _, r := range s.reminders {
		if r.UMO == umo {
			out = append(out, r)
		}
	}
	sortByCreation(out)
	return out
}

// All returns every reminder sorted by creation time ascending.
func (s *Store) All() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	sortByCreation(out)
	return out
}

// Delete removes a reminder if it exists and is owned by umo.
func (s *Store) Delete(id, umo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.UMO != umo {
		return false
	}
	delete(s.reminders, id)
	return true
}

// Remove removes a reminder unconditionally (used after a one-shot fires).
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, id)
}

func sortByCreation(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt != rs[j].CreatedAt {
			return rs[i].CreatedAt < rs[j].CreatedAt
		}
		return rs[i].ID < rs[j].ID
	})
}
