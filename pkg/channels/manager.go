package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rahulyyadav/Evara/pkg/bus"
	"github.com/rahulyyadav/Evara/pkg/config"
)

// Manager owns the channel adapters, dispatches bus outbound traffic
// and provides the synchronous delivery path used by the scheduler.
type Manager struct {
	channels     map[string]Channel
	defaultName  string
	bus          *bus.MessageBus
	dispatchTask context.CancelFunc
	log          zerolog.Logger
	mu           sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		log:      log,
	}

	if strings.TrimSpace(cfg.Channels.Discord.Token) != "" {
		discord, err := NewDiscordChannel(cfg.Channels.Discord, log.With().Str("channel", "discord").Logger())
		if err != nil {
			return nil, fmt.Errorf("initialize discord channel: %w", err)
		}
		m.channels["discord"] = discord
		m.defaultName = "discord"
	}

	m.log.Info().Int("enabled_channels", len(m.channels)).Msg("channel manager initialized")
	return m, nil
}

// Register adds a channel adapter. The first registered channel
// becomes the default delivery target.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	if m.defaultName == "" {
		m.defaultName = ch.Name()
	}
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channelsCopy[name] = ch
	}
	m.mu.RUnlock()

	if len(channelsCopy) == 0 {
		m.log.Warn().Msg("no channels enabled")
		return nil
	}

	var started []string
	for name, ch := range channelsCopy {
		if err := ch.Start(ctx); err != nil {
			for _, s := range started {
				_ = channelsCopy[s].Stop(ctx)
			}
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		started = append(started, name)
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.dispatchTask != nil {
		m.dispatchTask()
	}
	m.dispatchTask = cancel
	m.mu.Unlock()

	go m.dispatchOutbound(dispatchCtx)

	m.log.Info().Int("count", len(started)).Msg("all channels started")
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchTask != nil {
		m.dispatchTask()
		m.dispatchTask = nil
	}

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			m.log.Error().Err(err).Str("channel", name).Msg("error stopping channel")
		}
	}
	return nil
}

// dispatchOutbound drains the bus into the channel adapters. Errors
// are logged; bus traffic is fire-and-forget by design.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	m.log.Info().Msg("outbound dispatcher started")
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			// Either ctx is done or the bus is closed; in both cases
			// there is nothing left to drain.
			m.log.Info().Msg("outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		ch, exists := m.channels[msg.Channel]
		m.mu.RUnlock()

		if !exists {
			m.log.Warn().Str("channel", msg.Channel).Msg("unknown channel for outbound message")
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			m.log.Error().Err(err).Str("channel", msg.Channel).Msg("error sending outbound message")
		}
	}
}

// Deliver implements the scheduler's Notifier: a synchronous send so
// the error reaches the retry logic. The user id doubles as the chat
// id on the default channel.
func (m *Manager) Deliver(ctx context.Context, userID, task string) error {
	m.mu.RLock()
	name := m.defaultName
	ch, exists := m.channels[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no delivery channel configured")
	}

	content := fmt.Sprintf("⏰ REMINDER:\n📝 %s", task)
	return ch.Send(ctx, bus.OutboundMessage{Channel: name, ChatID: userID, Content: content})
}

// GetChannel returns a channel adapter by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Status reports running state per channel.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		out[name] = ch.IsRunning()
	}
	return out
}
