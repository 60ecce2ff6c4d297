package discord

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/clock"
)

const helpText = "Nudge commands:\n" +
	commandPrefix + " on|off\n" +
	commandPrefix + " watch|unwatch\n" +
	commandPrefix + " show\n" +
	commandPrefix + " debug\n" +
	commandPrefix + " set after <minutes>\n" +
	commandPrefix + " set daily1 <HH:MM>\n" +
	commandPrefix + " set daily2 <HH:MM>\n" +
	commandPrefix + " set quiet <HH:MM-HH:MM>\n" +
	commandPrefix + " set history <N>\n" +
	commandPrefix + " prompt list|add <text>|del <index>|clear\n" +
	commandPrefix + " remind add <YYYY-MM-DD HH:MM> <text>\n" +
	commandPrefix + " remind add <HH:MM> <text> daily\n" +
	commandPrefix + " remind list | " + commandPrefix + " remind del <ID>"

const (
	setUsage    = "Usage: " + commandPrefix + " set after <minutes> | daily1 <HH:MM> | daily2 <HH:MM> | quiet <HH:MM-HH:MM> | history <N>"
	promptUsage = "Usage: " + commandPrefix + " prompt list|add <text>|del <index>|clear"
	remindUsage = "Usage: " + commandPrefix + " remind add <YYYY-MM-DD HH:MM> <text>  or  " + commandPrefix + " remind add <HH:MM> <text> daily"
)

var (
	reSetAfter   = regexp.MustCompile(`(?i)^after\s+(\d+)$`)
	reSetDaily   = regexp.MustCompile(`(?i)^daily([12])\s+(\d{1,2}:\d{2})$`)
	reSetQuiet   = regexp.MustCompile(`(?i)^quiet\s+(\d{1,2}:\d{2})-(\d{1,2}:\d{2})$`)
	reSetHistory = regexp.MustCompile(`(?i)^history\s+(\d+)$`)

	reRemindOneShot = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})\s+(.+)$`)
	reRemindDaily   = regexp.MustCompile(`(?i)^(\d{1,2}:\d{2})\s+(.+?)\s+daily$`)
)

// dispatch routes one command invocation and returns the reply text.
// Every mutation persists before the confirmation goes out.
func (b *Bot) dispatch(umo, input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return helpText
	}
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch strings.ToLower(fields[0]) {
	case "help":
		return helpText
	case "debug":
		return b.debugText(umo)
	case "on":
		b.updateSettings(func(s *config.Settings) { s.Enable = true })
		return "✅ Proactive replies enabled"
	case "off":
		b.updateSettings(func(s *config.Settings) { s.Enable = false })
		return "🛑 Proactive replies disabled"
	case "watch":
		b.states.GetOrCreate(umo)
		b.states.SetSubscribed(umo, true)
		b.saveStates()
		return "📌 Watching this conversation: " + umo
	case "unwatch":
		b.states.GetOrCreate(umo)
		b.states.SetSubscribed(umo, false)
		b.saveStates()
		return "📭 Stopped watching this conversation: " + umo
	case "show":
		return b.showText(umo)
	case "set":
		return b.setCommand(rest)
	case "prompt":
		return b.promptCommand(rest)
	case "remind":
		return b.remindCommand(umo, rest)
	}
	return helpText
}

func (b *Bot) setCommand(rest string) string {
	if m := reSetAfter.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		b.updateSettings(func(s *config.Settings) { s.AfterLastMsgMin = n })
		return fmt.Sprintf("⏱️ Idle trigger set to %d minute(s) after the last message", n)
	}
	if m := reSetDaily.FindStringSubmatch(rest); m != nil {
		hhmm, ok := canonHHMM(m[2])
		if !ok {
			return "❌ Invalid time, expected HH:MM"
		}
		slot := m[1]
		b.updateSettings(func(s *config.Settings) {
			if slot == "1" {
				s.Daily.Time1 = hhmm
			} else {
				s.Daily.Time2 = hhmm
			}
		})
		return fmt.Sprintf("🗓️ Daily slot %s set to %s", slot, hhmm)
	}
	if m := reSetQuiet.FindStringSubmatch(rest); m != nil {
		start, ok1 := canonHHMM(m[1])
		end, ok2 := canonHHMM(m[2])
		if !ok1 || !ok2 {
			return "❌ Invalid quiet window, expected HH:MM-HH:MM"
		}
		window := start + "-" + end
		b.updateSettings(func(s *config.Settings) { s.QuietHours = window })
		return "🔕 Quiet hours set to " + window
	}
	if m := reSetHistory.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		b.updateSettings(func(s *config.Settings) { s.HistoryDepth = n })
		return fmt.Sprintf("🧵 History depth set to %d", n)
	}
	return setUsage
}

func (b *Bot) promptCommand(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return promptUsage
	}

	switch strings.ToLower(fields[0]) {
	case "list":
		prompts := b.settings.Get().CustomPrompts
		if len(prompts) == 0 {
			return "📝 No custom prompts configured"
		}
		var sb strings.Builder
		sb.WriteString("📝 Custom prompts:\n")
		for i, p := range prompts {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, ellipsize(p, 50)))
		}
		return strings.TrimRight(sb.String(), "\n")
	case "add":
		text := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		if text == "" {
			return "❌ Prompt text must not be empty"
		}
		var n int
		b.updateSettings(func(s *config.Settings) {
			s.CustomPrompts = append(s.CustomPrompts, text)
			n = len(s.CustomPrompts)
		})
		return fmt.Sprintf("✏️ Prompt added (%d total)", n)
	case "del":
		if len(fields) < 2 {
			return promptUsage
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return "❌ Index must be a number"
		}
		removed := false
		var n int
		b.updateSettings(func(s *config.Settings) {
			i := idx - 1
			if i >= 0 && i < len(s.CustomPrompts) {
				s.CustomPrompts = append(s.CustomPrompts[:i], s.CustomPrompts[i+1:]...)
				removed = true
			}
			n = len(s.CustomPrompts)
		})
		if !removed {
			return "❌ Prompt index out of range"
		}
		return fmt.Sprintf("🗑️ Prompt removed (%d left)", n)
	case "clear":
		b.updateSettings(func(s *config.Settings) { s.CustomPrompts = nil })
		return "🗑️ All prompts cleared"
	}
	return promptUsage
}

func (b *Bot) remindCommand(umo, rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return remindUsage
	}
	now := clock.Now(b.settings.Get().Timezone)

	switch strings.ToLower(fields[0]) {
	case "list":
		rs := b.reminders.ListFor(umo)
		if len(rs) == 0 {
			return "No reminders"
		}
		var sb strings.Builder
		sb.WriteString("Reminders:\n")
		for _, r := range rs {
			created := humanize.Time(time.Unix(int64(r.CreatedAt), 0))
			sb.WriteString(fmt.Sprintf("%s | %s | %s (added %s)\n", r.ID, r.At, r.Content, created))
		}
		return strings.TrimRight(sb.String(), "\n")
	case "del":
		if len(fields) < 2 {
			return remindUsage
		}
		id := fields[1]
		if !b.reminders.Delete(id, umo) {
			return "Reminder ID not found"
		}
		b.saveReminders()
		return "🗑️ Deleted reminder " + id
	case "add":
		text := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		if m := reRemindOneShot.FindStringSubmatch(text); m != nil {
			at, ok := normalizeOneShot(m[1])
			if !ok {
				return "❌ Invalid date or time"
			}
			r := b.reminders.Add(umo, strings.TrimSpace(m[2]), at, now)
			b.saveReminders()
			return "⏰ One-shot reminder added: " + r.ID
		}
		if m := reRemindDaily.FindStringSubmatch(text); m != nil {
			hhmm, ok := canonHHMM(m[1])
			if !ok {
				return "❌ Invalid time, expected HH:MM"
			}
			r := b.reminders.Add(umo, strings.TrimSpace(m[2]), hhmm+"|daily", now)
			b.saveReminders()
			return "⏰ Daily reminder added: " + r.ID
		}
		return remindUsage
	}
	return remindUsage
}

func (b *Bot) debugText(umo string) string {
	cfg := b.settings.Get()
	sess := b.states.GetOrCreate(umo)
	lines := []string{
		fmt.Sprintf("Enabled: %v", cfg.Enable),
		fmt.Sprintf("Subscribe mode: %s", cfg.SubscribeMode),
		fmt.Sprintf("Subscribed sessions: %d", b.states.SubscribedCount()),
		fmt.Sprintf("This session: %s", umo),
		fmt.Sprintf("Subscribed here: %v", sess.Subscribed),
		fmt.Sprintf("Idle trigger: %d minute(s)", cfg.AfterLastMsgMin),
		fmt.Sprintf("Quiet hours: %s", cfg.QuietHours),
		fmt.Sprintf("Max no-reply days: %d", cfg.MaxNoReplyDays),
	}
	return "🔍 Debug info:\n" + strings.Join(lines, "\n")
}

func (b *Bot) showText(umo string) string {
	cfg := b.settings.Get()
	sess, _ := b.states.Get(umo)
	info := struct {
		Enable       bool         `json:"enable"`
		Timezone     string       `json:"timezone"`
		AfterLastMsg int          `json:"after_last_msg_minutes"`
		Daily        config.Daily `json:"daily"`
		QuietHours   string       `json:"quiet_hours"`
		HistoryDepth int          `json:"history_depth"`
		Subscribed   bool         `json:"subscribed"`
	}{cfg.Enable, cfg.Timezone, cfg.AfterLastMsgMin, cfg.Daily, cfg.QuietHours, cfg.HistoryDepth, sess.Subscribed}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "❌ " + err.Error()
	}
	return "Current configuration:\n" + string(data)
}

// normalizeOneShot validates a "YYYY-MM-DD H:MM" input and reformats it
// to the exact minute form the scheduler compares against.
func normalizeOneShot(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02 15:04"), true
}

func (b *Bot) updateSettings(fn func(*config.Settings)) {
	if err := b.settings.Update(fn); err != nil {
		log.Printf("discord: persisting settings: %v", err)
	}
}

func (b *Bot) saveStates() {
	if err := b.states.Save(); err != nil {
		log.Printf("discord: persisting state: %v", err)
	}
}

func (b *Bot) saveReminders() {
	if err := b.reminders.Save(); err != nil {
		log.Printf("discord: persisting reminders: %v", err)
	}
}

func canonHHMM(s string) (string, bool) {
	h, m, ok := clock.ParseHHMM(s)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func ellipsize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
