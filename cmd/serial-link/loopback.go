package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bluetuith-org/serial-link/api/config"
	"github.com/bluetuith-org/serial-link/link"
	"github.com/bluetuith-org/serial-link/loopback"
	"go.uber.org/multierr"
)

// collector gathers received chunks until want bytes arrived.
type collector struct {
	mu   sync.Mutex
	sb   strings.Builder
	want int
	done chan struct{}
	once sync.Once
}

func (c *collector) OnChunk(text string) {
	fmt.Printf("RECEIVED: %q\n", text)

	c.mu.Lock()
	c.sb.WriteString(text)
	full := c.sb.Len() >= c.want
	c.mu.Unlock()

	if full {
		c.once.Do(func() { close(c.done) })
	}
}

func (c *collector) OnStopped(error) {
	c.once.Do(func() { close(c.done) })
}

// runLoopback connects a client and a server over an in-process network
// and drives the robot commands through the link.
func runLoopback(ctx context.Context, cfg config.Configuration) error {
	network := loopback.NewNetwork()
	robot := network.NewTransport("00:11:22:33:44:55", "Robot")
	phone := network.NewTransport("66:77:88:99:AA:BB", "Phone")
	phone.Pair(robot)

	server, err := link.New(robot, cfg)
	if err != nil {
		return err
	}
	defer server.Release()

	client, err := link.New(phone, cfg)
	if err != nil {
		return err
	}
	defer client.Release()

	commands := []string{CommandForward, CommandLeft, CommandRight, CommandBackward, CommandStop}
	received := &collector{want: len(commands), done: make(chan struct{})}

	if err := server.CreateServer(received); err != nil {
		return err
	}

	if err := client.ConnectToPeer(ctx, "Robot"); err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := client.SendString(cmd); err != nil {
			return err
		}
	}

	select {
	case <-received.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return multierr.Combine(client.Close(), server.Close())
}
