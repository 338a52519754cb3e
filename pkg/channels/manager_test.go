package channels

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rahulyyadav/Evara/pkg/bus"
	"github.com/rahulyyadav/Evara/pkg/config"
)

func TestManager_DeliverSendsThroughDefaultChannel(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	m, err := NewManager(&config.Config{}, mb, zerolog.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	var buf bytes.Buffer
	ch := NewConsoleChannel(&buf)
	m.Register(ch)
	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Deliver(context.Background(), "u1", "stretch your legs"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.Contains(buf.String(), "stretch your legs") {
		t.Fatalf("expected task in output, got %q", buf.String())
	}
}

func TestManager_DeliverWithoutChannelsFails(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	m, err := NewManager(&config.Config{}, mb, zerolog.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := m.Deliver(context.Background(), "u1", "t"); err == nil {
		t.Fatal("expected delivery without channels to fail")
	}
}

func TestManager_DispatcherStopsWhenBusCloses(t *testing.T) {
	mb := bus.NewMessageBus()
	m, err := NewManager(&config.Config{}, mb, zerolog.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	// Context stays live; only the bus closes underneath the dispatcher.
	done := make(chan struct{})
	go func() {
		m.dispatchOutbound(context.Background())
		close(done)
	}()

	mb.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher kept running after bus close")
	}
}
