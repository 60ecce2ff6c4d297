package discord

import (
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/nudge/internal/clock"
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	umo := m.ChannelID

	if isCommand(content) {
		rest := strings.TrimSpace(content[len(commandPrefix):])
		for _, chunk := range splitMessage(b.dispatch(umo, rest), 2000) {
			s.ChannelMessageSend(m.ChannelID, chunk)
		}
		return
	}

	b.recordInbound(umo, content)
}

func isCommand(content string) bool {
	if len(content) < len(commandPrefix) {
		return false
	}
	if !strings.EqualFold(content[:len(commandPrefix)], commandPrefix) {
		return false
	}
	return len(content) == len(commandPrefix) || content[len(commandPrefix)] == ' '
}

// recordInbound refreshes the session's activity state on ordinary
// conversation. In auto mode this also subscribes the session.
func (b *Bot) recordInbound(umo, content string) {
	cfg := b.settings.Get()
	now := clock.Now(cfg.Timezone)
	nowTS := float64(now.UnixNano()) / float64(time.Second)
	b.states.TouchInbound(umo, content, nowTS, cfg.SubscribeMode == "auto")
	if err := b.states.Save(); err != nil {
		log.Printf("discord: persisting state: %v", err)
	}
}

func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := maxLen
		if end > len(s) {
			end = len(s)
		}
		// Try to split at a newline
		if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
			end = idx + 1
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
