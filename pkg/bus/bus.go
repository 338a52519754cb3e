// Package bus decouples producers of outbound user messages (the chat
// console, the reminder service) from the channel adapters that send
// them. Delivery of due notifications does not go through the bus: the
// scheduler needs the send error synchronously for its retry contract.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// OutboundMessage is a message destined for a user on a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

const publishTimeout = 100 * time.Millisecond

// MessageBus is a bounded outbound queue with drop accounting. A full
// buffer blocks the publisher briefly, then drops rather than wedging
// request handling on a slow channel.
type MessageBus struct {
	outbound chan OutboundMessage
	closed   bool
	dropped  atomic.Uint64
	mu       sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		outbound: make(chan OutboundMessage, 100),
	}
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.outbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.outbound <- msg:
		case <-timer.C:
			mb.dropped.Add(1)
		}
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-mb.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.outbound)
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.Load()
}
