// Package discord is the transport and command surface. Each Discord
// channel is one session; the channel id is the session key everywhere
// else in the program.
package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/remind"
	"github.com/chris/nudge/internal/state"
)

// commandPrefix invokes the command surface; any other message is
// treated as conversation.
const commandPrefix = "!nudge"

type Bot struct {
	session   *discordgo.Session
	states    *state.Store
	reminders *remind.Store
	settings  *config.SettingsStore
}

func NewBot(token string, states *state.Store, reminders *remind.Store, settings *config.SettingsStore) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := &Bot{session: s, states: states, reminders: reminders, settings: settings}
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	log.Printf("Discord bot connected as %s", s.State.User.Username)
	return bot, nil
}

func (b *Bot) Close() {
	b.session.Close()
}

// SendText delivers text to a channel, splitting at Discord's 2000
// character limit.
func (b *Bot) SendText(umo, text string) error {
	for _, chunk := range splitMessage(text, 2000) {
		if _, err := b.session.ChannelMessageSend(umo, chunk); err != nil {
			return fmt.Errorf("sending to %s: %w", umo, err)
		}
	}
	return nil
}
