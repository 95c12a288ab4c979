// Package discord adapts Discord to the core's uniform chat callback:
// guild messages are pushed into the thought buffer's chat queue, and
// spoken replies can be broadcast back to the configured channels.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/animus-ai/animus/internal/observability"
)

// PushFunc delivers one inbound chat message to the core.
type PushFunc func(platform, username, message string, hasBotMention bool)

// Adapter bridges a Discord session to the core.
type Adapter struct {
	session  *discordgo.Session
	channels map[string]bool // empty means all channels
	push     PushFunc
	log      *observability.Logger

	botID string
}

// New creates an adapter. channels restricts which channel IDs are
// listened to; empty means every channel the bot can read.
func New(token string, channels []string, push PushFunc, log *observability.Logger) (*Adapter, error) {
	if log == nil {
		log = observability.NewNopLogger()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	allowed := make(map[string]bool, len(channels))
	for _, ch := range channels {
		allowed[ch] = true
	}
	return &Adapter{
		session:  session,
		channels: allowed,
		push:     push,
		log:      log,
	}, nil
}

// Start opens the gateway connection and begins pushing messages.
func (a *Adapter) Start(ctx context.Context) error {
	a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(ctx, m)
	})
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	if a.session.State != nil && a.session.State.User != nil {
		a.botID = a.session.State.User.ID
	}
	a.log.Info(ctx, "discord adapter connected", "channels", len(a.channels))
	return nil
}

// Stop closes the gateway connection.
func (a *Adapter) Stop() error {
	return a.session.Close()
}

func (a *Adapter) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if len(a.channels) > 0 && !a.channels[m.ChannelID] {
		return
	}

	content := m.ContentWithMentionsReplaced()
	if strings.TrimSpace(content) == "" {
		return
	}
	a.push("discord", m.Author.Username, content, a.isMentioned(m))
	a.log.Debug(ctx, "discord message pushed", "user", m.Author.Username, "channel", m.ChannelID)
}

func (a *Adapter) isMentioned(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == a.botID {
			return true
		}
	}
	return false
}

// Broadcast sends a spoken reply to every configured channel.
func (a *Adapter) Broadcast(ctx context.Context, text string) {
	for ch := range a.channels {
		if _, err := a.session.ChannelMessageSend(ch, text); err != nil {
			a.log.Warn(ctx, "discord send failed", "channel", ch, "error", err)
		}
	}
}
