package channels

import (
	"context"

	"github.com/rahulyyadav/Evara/pkg/bus"
)

// Channel is a transport adapter that can push messages to a user.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// BaseChannel carries the shared channel bookkeeping.
type BaseChannel struct {
	name    string
	running bool
}

func NewBaseChannel(name string) *BaseChannel {
	return &BaseChannel{name: name}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running
}

func (c *BaseChannel) setRunning(running bool) {
	c.running = running
}
