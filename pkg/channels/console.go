package channels

import (
	"context"
	"fmt"
	"io"

	"github.com/rahulyyadav/Evara/pkg/bus"
)

// ConsoleChannel prints outbound messages to a local writer. Used by
// the chat command so the full bus -> manager -> channel path runs
// without any network transport.
type ConsoleChannel struct {
	*BaseChannel
	out io.Writer
}

func NewConsoleChannel(out io.Writer) *ConsoleChannel {
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console"),
		out:         out,
	}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("console channel not running")
	}
	_, err := fmt.Fprintln(c.out, msg.Content)
	return err
}
