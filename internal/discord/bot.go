package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coffer/internal/economy"

	"github.com/bwmarrin/discordgo"
)

const interactionTimeout = 10 * time.Second

// Bot owns the gateway session and routes slash commands to a Handler.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	log     *slog.Logger
	guildID string
	jobs    []economy.JobDefinition
}

// New prepares a session. guildID scopes command registration to one guild; empty registers globally.
func New(token, guildID string, handler *Handler, jobs []economy.JobDefinition, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	b := &Bot{session: session, handler: handler, log: logger, guildID: guildID, jobs: jobs}
	session.AddHandler(b.onInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	return b, nil
}

// Open connects to the gateway and overwrites the registered commands.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	cmds, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.guildID, Commands(b.jobs))
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}
	b.log.Info("discord commands registered", "count", len(cmds), "guild", b.guildID)
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	userID := ""
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	}

	var reply Reply
	inv, err := ParseInvocation(i.ApplicationCommandData(), userID)
	if err != nil {
		reply = errorReply(err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		reply = b.handler.Handle(ctx, inv)
		cancel()
	}

	data := &discordgo.InteractionResponseData{
		Content:         reply.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		b.log.Warn("interaction respond failed", "command", inv.Command, "err", err)
	}
}
