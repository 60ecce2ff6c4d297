// Package proactive assembles and delivers unprompted follow-up
// messages: it resolves a provider and persona, gathers conversation
// context, builds the outbound prompt and records the outcome.
package proactive

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/clock"
	"github.com/chris/nudge/internal/history"
	"github.com/chris/nudge/internal/host"
	"github.com/chris/nudge/internal/llm"
	"github.com/chris/nudge/internal/state"
)

// defaultPrompt is the generic continuation instruction used when no
// custom templates are configured.
const defaultPrompt = "Pick up the conversation naturally and keep chatting with the user."

// Assembler builds proactive replies. All collaborator fields must be
// set; Now defaults to the real clock when nil.
type Assembler struct {
	Providers host.ProviderRegistry
	Convs     host.ConversationManager
	Personas  host.PersonaManager
	Sender    host.Sender
	States    *state.Store
	Settings  *config.SettingsStore

	// MaxContextTokens bounds the context sent to the provider;
	// 0 disables trimming.
	MaxContextTokens int

	// Now returns the current time in the named zone.
	Now func(tzName string) time.Time
}

// Reply attempts one proactive reply to umo using up to histN context
// entries. It reports success; every failure is logged and absorbed so
// the scheduler loop never sees an error from here.
func (a *Assembler) Reply(ctx context.Context, umo string, histN int, tzName string) bool {
	cfg := a.Settings.Get()

	client := a.resolveClient(umo, cfg)
	if client == nil {
		log.Printf("proactive[%s]: no provider available", umo)
		return false
	}

	var conv *host.Conversation
	if a.Convs != nil {
		c, err := a.Convs.Current(umo)
		if err != nil {
			log.Printf("proactive[%s]: resolving conversation: %v", umo, err)
		} else {
			conv = c
		}
	}

	system := a.resolveSystemPrompt(umo, conv, cfg)
	contexts := a.collectContexts(umo, conv, histN)
	prompt := a.buildPrompt(umo, contexts, cfg, tzName)

	if cfg.DebugMode {
		log.Printf("proactive[%s]: system prompt: %s", umo, truncate(system, 200))
		log.Printf("proactive[%s]: user prompt: %s", umo, truncate(prompt, 200))
		for i, m := range contexts {
			log.Printf("proactive[%s]: context[%d] %s: %s", umo, i, m.Role, truncate(m.Content, 100))
		}
	}

	msgs := toLLM(contexts)
	if a.MaxContextTokens > 0 {
		budget := a.MaxContextTokens - llm.EstimateTokens(system) - llm.EstimateTokens(prompt)
		if budget < 1000 {
			budget = 1000 // floor so the freshest context always fits
		}
		msgs = llm.TrimMessages(msgs, budget)
	}

	resp, err := client.Chat(ctx, system, msgs, prompt)
	if err != nil {
		log.Printf("proactive[%s]: provider: %v", umo, err)
		return false
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return false
	}

	if cfg.AppendTimeField {
		text = "[" + a.formatNow(cfg.TimeFormat, tzName) + "] " + text
	}

	if err := a.Sender.SendText(umo, text); err != nil {
		log.Printf("proactive[%s]: send: %v", umo, err)
		return false
	}

	nowTS := float64(a.now(tzName).UnixNano()) / float64(time.Second)
	a.States.RecordOutbound(umo, text, nowTS)
	if err := a.States.Save(); err != nil {
		log.Printf("proactive[%s]: persisting state: %v", umo, err)
	}
	return true
}

// resolveClient prefers the fixed provider override, then the client
// currently active for the session.
func (a *Assembler) resolveClient(umo string, cfg config.Settings) llm.Client {
	if id := strings.TrimSpace(cfg.Special.Provider); id != "" {
		if c := a.Providers.ByID(id); c != nil {
			return c
		}
	}
	return a.Providers.Using(umo)
}

// resolveSystemPrompt walks the fallback chain: explicit override, fixed
// persona id, the conversation's persona, the host default persona, and
// finally empty. Lookup failures degrade, never abort.
func (a *Assembler) resolveSystemPrompt(umo string, conv *host.Conversation, cfg config.Settings) string {
	if p := strings.TrimSpace(cfg.PersonaOverride); p != "" {
		return p
	}
	personaID := strings.TrimSpace(cfg.Special.Persona)
	if personaID == "" && conv != nil {
		personaID = conv.PersonaID
	}
	if personaID == "" || a.Personas == nil {
		return ""
	}
	persona, err := a.Personas.Persona(personaID)
	if err == nil && persona != nil && persona.SystemPrompt != "" {
		return persona.SystemPrompt
	}
	if err != nil {
		log.Printf("proactive[%s]: persona %q: %v", umo, personaID, err)
	}
	if def, derr := a.Personas.Default(umo); derr == nil && def != nil {
		return def.SystemPrompt
	}
	return ""
}

// collectContexts tries the host conversation's history fields in
// priority order, then falls back to the plugin's own bounded history.
func (a *Assembler) collectContexts(umo string, conv *host.Conversation, histN int) []history.Message {
	var sources []history.Source
	if conv != nil {
		sources = append(sources,
			history.FromValue(conv.History),
			history.FromValue(conv.Messages),
		)
	}
	if msgs := history.Normalize(histN, sources...); len(msgs) > 0 {
		return msgs
	}
	if histN > 0 {
		if sess, ok := a.States.Get(umo); ok {
			return history.Normalize(histN, history.FromValue(sess.History))
		}
	}
	return nil
}

// buildPrompt picks a custom template at random and substitutes the
// named placeholders, or returns the fixed continuation instruction.
func (a *Assembler) buildPrompt(umo string, contexts []history.Message, cfg config.Settings, tzName string) string {
	if len(cfg.CustomPrompts) == 0 {
		return defaultPrompt
	}
	templ := strings.TrimSpace(cfg.CustomPrompts[rand.Intn(len(cfg.CustomPrompts))])

	var lastUser, lastAI string
	for i := len(contexts) - 1; i >= 0; i-- {
		m := contexts[i]
		if lastUser == "" && m.Role == "user" {
			lastUser = m.Content
		}
		if lastAI == "" && m.Role == "assistant" {
			lastAI = m.Content
		}
		if lastUser != "" && lastAI != "" {
			break
		}
	}

	return strings.NewReplacer(
		"{now}", a.formatNow(cfg.TimeFormat, tzName),
		"{last_user}", lastUser,
		"{last_ai}", lastAI,
		"{umo}", umo,
	).Replace(templ)
}

func (a *Assembler) formatNow(timeFormat, tzName string) string {
	if timeFormat == "" {
		timeFormat = "%Y-%m-%d %H:%M"
	}
	return strftime.Format(timeFormat, a.now(tzName))
}

func (a *Assembler) now(tzName string) time.Time {
	if a.Now != nil {
		return a.Now(tzName)
	}
	return clock.Now(tzName)
}

func toLLM(msgs []history.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
