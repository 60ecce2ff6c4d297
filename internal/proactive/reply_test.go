package proactive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/history"
	"github.com/chris/nudge/internal/host"
	"github.com/chris/nudge/internal/llm"
	"github.com/chris/nudge/internal/state"
)

type stubClient struct {
	reply   string
	err     error
	system  string
	prompt  string
	context []llm.Message
}

func (c *stubClient) Chat(_ context.Context, system string, msgs []llm.Message, prompt string) (*llm.Response, error) {
	c.system = system
	c.prompt = prompt
	c.context = msgs
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: c.reply}, nil
}

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) SendText(_, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

type fixedConvs struct{ conv *host.Conversation }

func (f fixedConvs) Current(string) (*host.Conversation, error) { return f.conv, nil }

func fixedNow(string) time.Time {
	return time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
}

func newAssembler(t *testing.T, client *stubClient, sender *stubSender) (*Assembler, *state.Store, *config.SettingsStore) {
	t.Helper()
	dir := t.TempDir()
	states := state.Open(filepath.Join(dir, "states.json"))
	settings := config.OpenSettings(filepath.Join(dir, "settings.json"))
	reg := llm.NewRegistry()
	if client != nil {
		reg.Register("stub", client)
	}
	a := &Assembler{
		Providers: reg,
		Convs:     host.NullConversations{},
		Personas:  host.StaticPersonas{},
		Sender:    sender,
		States:    states,
		Settings:  settings,
		Now:       fixedNow,
	}
	return a, states, settings
}

func TestReply_SendsAndRecordsOutbound(t *testing.T) {
	client := &stubClient{reply: "hello again"}
	sender := &stubSender{}
	a, states, _ := newAssembler(t, client, sender)

	if !a.Reply(context.Background(), "chan1", 8, "UTC") {
		t.Fatal("Reply returned false, want true")
	}
	if len(sender.sent) != 1 || sender.sent[0] != "hello again" {
		t.Fatalf("sent = %v, want [hello again]", sender.sent)
	}

	sess, ok := states.Get("chan1")
	if !ok {
		t.Fatal("session not created")
	}
	if sess.LastTS == 0 {
		t.Error("LastTS not advanced after outbound")
	}
	last := sess.History[len(sess.History)-1]
	if last.Role != "assistant" || last.Content != "hello again" {
		t.Errorf("last history entry = %+v, want assistant turn", last)
	}
}

func TestReply_EmptyCompletionFails(t *testing.T) {
	client := &stubClient{reply: "   "}
	sender := &stubSender{}
	a, _, _ := newAssembler(t, client, sender)

	if a.Reply(context.Background(), "chan1", 8, "UTC") {
		t.Error("Reply returned true on empty completion")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want nothing", sender.sent)
	}
}

func TestReply_ProviderErrorFails(t *testing.T) {
	client := &stubClient{err: errors.New("rate limited")}
	sender := &stubSender{}
	a, _, _ := newAssembler(t, client, sender)

	if a.Reply(context.Background(), "chan1", 8, "UTC") {
		t.Error("Reply returned true on provider error")
	}
}

func TestReply_NoProviderFails(t *testing.T) {
	sender := &stubSender{}
	a, _, _ := newAssembler(t, nil, sender)

	if a.Reply(context.Background(), "chan1", 8, "UTC") {
		t.Error("Reply returned true with no registered provider")
	}
}

func TestReply_SendFailureFails(t *testing.T) {
	client := &stubClient{reply: "hi"}
	sender := &stubSender{err: errors.New("gateway closed")}
	a, states, _ := newAssembler(t, client, sender)

	if a.Reply(context.Background(), "chan1", 8, "UTC") {
		t.Error("Reply returned true when delivery failed")
	}
	if sess, ok := states.Get("chan1"); ok && len(sess.History) > 0 {
		t.Error("outbound recorded despite failed delivery")
	}
}

func TestReply_DefaultPromptWithoutTemplates(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, _, _ := newAssembler(t, client, &stubSender{})

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if client.prompt != defaultPrompt {
		t.Errorf("prompt = %q, want the generic continuation prompt", client.prompt)
	}
}

func TestReply_TemplatePlaceholders(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, states, settings := newAssembler(t, client, &stubSender{})
	settings.Update(func(s *config.Settings) {
		s.CustomPrompts = []string{"At {now} continue with {umo}: they said {last_user}, you said {last_ai}"}
	})
	states.TouchInbound("chan1", "where were we?", 100, false)
	states.RecordOutbound("chan1", "we were talking about boats", 200)

	a.Reply(context.Background(), "chan1", 8, "UTC")

	want := "At 2025-03-14 15:30 continue with chan1: they said where were we?, you said we were talking about boats"
	if client.prompt != want {
		t.Errorf("prompt = %q\nwant %q", client.prompt, want)
	}
}

func TestReply_AppendTimePrefix(t *testing.T) {
	client := &stubClient{reply: "still here"}
	sender := &stubSender{}
	a, _, settings := newAssembler(t, client, sender)
	settings.Update(func(s *config.Settings) { s.AppendTimeField = true })

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want one message", sender.sent)
	}
	want := "[2025-03-14 15:30] still here"
	if sender.sent[0] != want {
		t.Errorf("sent %q, want %q", sender.sent[0], want)
	}
}

func TestReply_ProviderOverridePreferred(t *testing.T) {
	def := &stubClient{reply: "from default"}
	special := &stubClient{reply: "from special"}
	sender := &stubSender{}
	a, _, settings := newAssembler(t, def, sender)
	a.Providers.(*llm.Registry).Register("special", special)
	settings.Update(func(s *config.Settings) { s.Special.Provider = "special" })

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if len(sender.sent) != 1 || sender.sent[0] != "from special" {
		t.Errorf("sent = %v, want the override provider's reply", sender.sent)
	}
}

func TestReply_PersonaOverrideWins(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, _, settings := newAssembler(t, client, &stubSender{})
	a.Personas = host.StaticPersonas{"cheerful": "Be cheerful."}
	settings.Update(func(s *config.Settings) {
		s.PersonaOverride = "You are a pirate."
		s.Special.Persona = "cheerful"
	})

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if client.system != "You are a pirate." {
		t.Errorf("system = %q, want the explicit override", client.system)
	}
}

func TestReply_PersonaLookup(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, _, settings := newAssembler(t, client, &stubSender{})
	a.Personas = host.StaticPersonas{"cheerful": "Be cheerful."}
	settings.Update(func(s *config.Settings) { s.Special.Persona = "cheerful" })

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if client.system != "Be cheerful." {
		t.Errorf("system = %q, want persona prompt", client.system)
	}
}

func TestReply_ConversationHistoryPreferred(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, states, _ := newAssembler(t, client, &stubSender{})
	states.TouchInbound("chan1", "from plugin store", 100, false)
	a.Convs = fixedConvs{conv: &host.Conversation{
		History: `[{"role":"user","content":"from the host"}]`,
	}}

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if len(client.context) != 1 || client.context[0].Content != "from the host" {
		t.Errorf("context = %v, want the host conversation history", client.context)
	}
}

func TestReply_FallsBackToPluginHistory(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, states, _ := newAssembler(t, client, &stubSender{})
	for i := 0; i < 12; i++ {
		states.TouchInbound("chan1", "msg", float64(i), false)
	}

	a.Reply(context.Background(), "chan1", 8, "UTC")

	if len(client.context) != 8 {
		t.Errorf("context length = %d, want the last 8 plugin-history turns", len(client.context))
	}
}

func TestReply_TrimsToTokenBudget(t *testing.T) {
	client := &stubClient{reply: "ok"}
	a, _, _ := newAssembler(t, client, &stubSender{})
	a.MaxContextTokens = 100000
	big := strings.Repeat("x", 5000)
	a.Convs = fixedConvs{conv: &host.Conversation{
		History: []history.Message{
			{Role: "user", Content: big},
			{Role: "user", Content: "latest"},
		},
	}}

	a.Reply(context.Background(), "chan1", 0, "UTC")

	if len(client.context) == 0 {
		t.Fatal("expected context to reach the provider")
	}
	if client.context[len(client.context)-1].Content != "latest" {
		t.Error("newest message did not survive trimming")
	}
}
