// Package state holds the per-session scheduling state and its
// persistence to the state.json document.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/chris/nudge/internal/atomicfile"
	"github.com/chris/nudge/internal/history"
)

// HistoryCap bounds the per-session fallback history. Oldest entries are
// evicted first.
const HistoryCap = 32

// Session is the mutable scheduling state for one conversation endpoint.
type Session struct {
	LastTS          float64           `json:"last_ts"`
	History         []history.Message `json:"history"`
	Subscribed      bool              `json:"subscribed"`
	LastFiredTag    string            `json:"last_fired_tag"`
	LastUserReplyTS float64           `json:"last_user_reply_ts"`
	NoReplyCount    int               `json:"consecutive_no_reply_count"`
}

type document struct {
	States map[string]*Session `json:"states"`
}

// Store owns all session state. Mutations go through its methods; callers
// only ever see copies.
type Store struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session
}

// Open loads the store from path. A missing, unreadable or malformed
// document is treated as empty state; loading never fails.
func Open(path string) *Store {
	s := &Store{path: path, sessions: make(map[string]*Session)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("state: load %s: %v", path, err)
		}
		return s
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("state: parse %s: %v", path, err)
		return s
	}
	for umo, sess := range doc.States {
		if sess == nil {
			sess = &Session{}
		}
		if len(sess.History) > HistoryCap {
			sess.History = sess.History[len(sess.History)-HistoryCap:]
		}
		s.sessions[umo] = sess
	}
	return s
}

// Save writes the full document to disk atomically (temp file + rename).
func (s *Store) Save() error {
	s.mu.Lock()
	doc := document{States: s.sessions}
	data, err := json.MarshalIndent(doc, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return atomicfile.WriteFile(s.path, data, 0644)
}

// Purge deletes the persisted document and resets in-memory state.
func (s *Store) Purge() error {
	s.mu.Lock()
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// Get returns a copy of the session state, if the session exists.
func (s *Store) Get(umo string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[umo]
	if !ok {
		return Session{}, false
	}
	return snapshot(sess), true
}

// GetOrCreate returns a copy of the session state, creating a fresh
// session on first sight.
func (s *Store) GetOrCreate(umo string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.ensure(umo))
}

// TouchInbound records an inbound user message: activity and user-reply
// timestamps advance, the no-reply counter resets, non-empty content is
// appended to the fallback history, and the session auto-subscribes when
// requested.
func (s *Store) TouchInbound(umo, content string, nowTS float64, autoSubscribe bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(umo)
	sess.LastTS = nowTS
	sess.LastUserReplyTS = nowTS
	sess.NoReplyCount = 0
	if autoSubscribe {
		sess.Subscribed = true
	}
	if content != "" {
		appendBounded(sess, history.Message{Role: "user", Content: content})
	}
}

// RecordOutbound records a delivered proactive reply: activity advances
// and the text lands in the fallback history as an assistant turn.
func (s *Store) RecordOutbound(umo, text string, nowTS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(umo)
	sess.LastTS = nowTS
	appendBounded(sess, history.Message{Role: "assistant", Content: text})
}

// SetSubscribed flips the subscription for a session, creating it if needed.
func (s *Store) SetSubscribed(umo string, subscribed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(umo).Subscribed = subscribed
}

// SetFiredTag marks a firing event as handled for the session.
func (s *Store) SetFiredTag(umo, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(umo).LastFiredTag = tag
}

// BumpNoReply increments the consecutive failed-attempt counter.
func (s *Store) BumpNoReply(umo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(umo).NoReplyCount++
}

// Subscribed returns the ids of all subscribed sessions, sorted for
// deterministic iteration.
func (s *Store) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for umo, sess := range s.sessions {
		if sess.Subscribed {
			out = append(out, umo)
		}
	}
	sort.Strings(out)
	return out
}

// SubscribedCount returns how many sessions are currently subscribed.
func (s *Store) SubscribedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Subscribed {
			n++
		}
	}
	return n
}

func (s *Store) ensure(umo string) *Session {
	sess, ok := s.sessions[umo]
	if !ok {
		sess = &Session{}
		s.sessions[umo] = sess
	}
	return sess
}

func snapshot(sess *Session) Session {
	cp := *sess
	cp.History = append([]history.Message(nil), sess.History...)
	return cp
}

func appendBounded(sess *Session, m history.Message) {
	sess.History = append(sess.History, m)
	if len(sess.History) > HistoryCap {
		sess.History = sess.History[len(sess.History)-HistoryCap:]
	}
}
