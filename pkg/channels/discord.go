package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/rahulyyadav/Evara/pkg/bus"
	"github.com/rahulyyadav/Evara/pkg/config"
)

const sendTimeout = 10 * time.Second

// DiscordChannel sends reminder and confirmation messages over a
// Discord bot session. ChatID is the target Discord channel id.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
	log     zerolog.Logger
}

func NewDiscordChannel(cfg config.DiscordConfig, log zerolog.Logger) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord"),
		session:     session,
		config:      cfg,
		log:         log,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.log.Info().Msg("starting discord bot")

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	c.log.Info().Str("username", botUser.Username).Str("user_id", botUser.ID).Msg("discord bot connected")

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	c.log.Info().Msg("stopping discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("chat id is empty")
	}
	if msg.Content == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := c.session.ChannelMessageSendComplex(msg.ChatID, &discordgo.MessageSend{
		Content: msg.Content,
	}, discordgo.WithContext(sendCtx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}
