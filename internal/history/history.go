// Package history converts the many shapes of externally stored
// conversation history into a flat, ordered list of role-tagged messages.
//
// Hosts persist history in whatever form their provider handed them: a
// JSON-encoded string, a slice of items, or a single map, with role and
// content hiding under a handful of alias keys. Each shape gets its own
// Source variant; Normalize walks the candidates in priority order and
// the first one that yields anything wins.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Message is one normalized conversation entry. Role is always one of
// "user", "assistant" or "system".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is one candidate supplier of raw conversation history.
type Source interface {
	messages() []Message
}

// JSONText is a JSON-encoded history blob: an array of items, a single
// object, or an object wrapping its items under a "messages" key.
type JSONText string

// Items is an already-structured sequence of history entries.
type Items []any

// Item is a single structured history entry.
type Item map[string]any

// FromValue wraps an arbitrary host-provided value in the matching
// Source variant, or returns nil when the value carries no history.
func FromValue(v any) Source {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return JSONText(x)
	case json.RawMessage:
		return JSONText(x)
	case []any:
		return Items(x)
	case []Message:
		items := make(Items, len(x))
		for i, m := range x {
			items[i] = m
		}
		return items
	case map[string]any:
		return Item(x)
	default:
		return nil
	}
}

// Normalize evaluates sources in order and returns the first non-empty
// normalized sequence, limited to its last n entries when n > 0. Nil and
// malformed sources are skipped; Normalize never fails.
func Normalize(n int, sources ...Source) []Message {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if msgs := src.messages(); len(msgs) > 0 {
			return tail(msgs, n)
		}
	}
	return nil
}

func tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

var (
	roleKeys     = []string{"role", "speaker", "type", "sender"}
	contentKeys  = []string{"content", "text", "message", "value"}
	fragmentKeys = []string{"text", "content", "value"}
)

// canonicalRole maps the role aliases hosts use onto the three canonical
// roles. Anything unrecognized is treated as a user turn.
func canonicalRole(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "assistant", "bot", "ai", "model":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}

func (t JSONText) messages() []Message {
	s := strings.TrimSpace(string(t))
	if s == "" || !gjson.Valid(s) {
		return nil
	}
	root := gjson.Parse(s)
	switch {
	case root.IsArray():
		return resultList(root)
	case root.IsObject():
		if wrapped := root.Get("messages"); wrapped.IsArray() {
			return resultList(wrapped)
		}
		if m, ok := resultMessage(root); ok {
			return []Message{m}
		}
	}
	return nil
}

func resultList(arr gjson.Result) []Message {
	var out []Message
	for _, item := range arr.Array() {
		if m, ok := resultMessage(item); ok {
			out = append(out, m)
		}
	}
	return out
}

// resultMessage normalizes one JSON history item. Plain strings are user
// messages verbatim; objects go through the alias tables. Items that end
// up with empty content are dropped.
func resultMessage(v gjson.Result) (Message, bool) {
	if v.Type == gjson.String {
		c := strings.TrimSpace(v.String())
		if c == "" {
			return Message{}, false
		}
		return Message{Role: "user", Content: c}, true
	}
	if !v.IsObject() {
		return Message{}, false
	}
	var role string
	for _, k := range roleKeys {
		if r := v.Get(k); r.Type == gjson.String && r.String() != "" {
			role = r.String()
			break
		}
	}
	var content string
	for _, k := range contentKeys {
		if content = resultContent(v.Get(k)); content != "" {
			break
		}
	}
	if content == "" {
		return Message{}, false
	}
	return Message{Role: canonicalRole(role), Content: content}, true
}

// resultContent extracts text from a content value that may be a plain
// string, a list of fragments, or a fragment map. List fragments are
// joined with newlines.
func resultContent(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.Type == gjson.String:
		return strings.TrimSpace(v.String())
	case v.IsArray():
		var parts []string
		for _, seg := range v.Array() {
			switch {
			case seg.Type == gjson.String:
				if p := strings.TrimSpace(seg.String()); p != "" {
					parts = append(parts, p)
				}
			case seg.IsObject():
				if p := fragmentText(seg); p != "" {
					parts = append(parts, p)
				}
			}
		}
		return strings.Join(parts, "\n")
	case v.IsObject():
		return fragmentText(v)
	default:
		// Scalars (numbers, booleans) stringify.
		return strings.TrimSpace(v.String())
	}
}

func fragmentText(obj gjson.Result) string {
	for _, k := range fragmentKeys {
		if f := obj.Get(k); f.Type == gjson.String {
			if p := strings.TrimSpace(f.String()); p != "" {
				return p
			}
		}
	}
	return ""
}

func (items Items) messages() []Message {
	var out []Message
	for _, it := range items {
		switch x := it.(type) {
		case string:
			if c := strings.TrimSpace(x); c != "" {
				out = append(out, Message{Role: "user", Content: c})
			}
		case map[string]any:
			if m, ok := Item(x).message(); ok {
				out = append(out, m)
			}
		case Message:
			if c := strings.TrimSpace(x.Content); c != "" {
				out = append(out, Message{Role: canonicalRole(x.Role), Content: c})
			}
		}
	}
	return out
}

func (it Item) messages() []Message {
	if wrapped, ok := it["messages"].([]any); ok {
		return Items(wrapped).messages()
	}
	if m, ok := it.message(); ok {
		return []Message{m}
	}
	return nil
}

func (it Item) message() (Message, bool) {
	var role string
	for _, k := range roleKeys {
		if s, ok := it[k].(string); ok && s != "" {
			role = s
			break
		}
	}
	var content string
	for _, k := range contentKeys {
		if content = valueContent(it[k]); content != "" {
			break
		}
	}
	if content == "" {
		return Message{}, false
	}
	return Message{Role: canonicalRole(role), Content: content}, true
}

func valueContent(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		var parts []string
		for _, seg := range x {
			switch s := seg.(type) {
			case string:
				if p := strings.TrimSpace(s); p != "" {
					parts = append(parts, p)
				}
			case map[string]any:
				if p := mapFragmentText(s); p != "" {
					parts = append(parts, p)
				}
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		return mapFragmentText(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func mapFragmentText(m map[string]any) string {
	for _, k := range fragmentKeys {
		if s, ok := m[k].(string); ok {
			if p := strings.TrimSpace(s); p != "" {
				return p
			}
		}
	}
	return ""
}
