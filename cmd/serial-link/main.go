// Command serial-link opens a Bluetooth serial link, as a client that sends
// commands to a paired device, or as a server that prints what it receives.
//
// Modes
//
//	serial-link -mode=connect -name RobotY           send robot commands read from stdin
//	serial-link -mode=connect -name RobotY -send hi  send one message and exit
//	serial-link -mode=server -timeout=60s            print received data
//	serial-link -mode=loopback                       client and server in one process
//
// The adapter must be powered and the device paired beforehand, for example
// with `bluetoothctl power on` and `bluetoothctl pair`. Registering profiles
// usually requires root.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/config"
	"github.com/bluetuith-org/serial-link/api/eventbus"
	"github.com/bluetuith-org/serial-link/internal/serde"
	"github.com/bluetuith-org/serial-link/link"
	"github.com/bluetuith-org/serial-link/platform"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "connect", "mode: connect|server|loopback")
	name := flag.String("name", "", "name of the paired device to connect to (connect mode); empty selects the first one")
	send := flag.String("send", "", "message to send (connect mode); if empty, commands are read from stdin")
	service := flag.String("service", config.DefaultServiceName, "advertised service name (server mode)")
	timeout := flag.Duration("timeout", 2*time.Minute, "operation timeout")
	debug := flag.Bool("debug", false, "enable debug logging")
	events := flag.Bool("events", false, "print link events as JSON")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	logger := newLogger(*debug)
	defer logger.Sync()

	cfg := config.New()
	cfg.ServiceName = *service
	cfg.Logger = logger

	if *events {
		cfg.Events = eventbus.New(eventbus.DefaultCapacity)
		defer cfg.Events.Shutdown()

		go printEvents(cfg.Events.Subscribe(bluetooth.EventLinkState))
	}

	var err error
	switch strings.ToLower(*mode) {
	case "connect":
		err = runConnect(ctx, cfg, *name, *send)
	case "server":
		err = runServer(ctx, cfg)
	case "loopback":
		err = runLoopback(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}

	if err != nil {
		logger.Error("serial-link failed", zap.String("mode", *mode), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// newManager returns a manager on the platform transport, and a function
// that releases both.
func newManager(cfg config.Configuration) (*link.Manager, func(), error) {
	transport, info := platform.Transport()
	cfg.Logger.Info("using bluetooth stack",
		zap.String("os", info.OS),
		zap.Stringer("stack", info.Stack),
	)

	closeTransport := func() {
		if c, ok := transport.(io.Closer); ok {
			if err := c.Close(); err != nil {
				cfg.Logger.Warn("closing bluetooth transport failed", zap.Error(err))
			}
		}
	}

	m, err := link.New(transport, cfg)
	if err != nil {
		closeTransport()
		return nil, nil, err
	}

	return m, func() {
		m.Release()
		closeTransport()
	}, nil
}

func runConnect(ctx context.Context, cfg config.Configuration, name, send string) error {
	m, release, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer release()

	if err := m.ConnectToPeer(ctx, name); err != nil {
		return err
	}

	peer, _ := m.Peer()
	fmt.Printf("CONNECTED: name=%s address=%s\n", peer.Name, peer.Address)

	if send != "" {
		return m.SendString(send)
	}

	return sendCommands(ctx, m, os.Stdin)
}

func runServer(ctx context.Context, cfg config.Configuration) error {
	m, release, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer release()

	stopped := make(chan error, 1)
	if err := m.CreateServer(printer{stopped}); err != nil {
		return err
	}

	fmt.Printf("LISTENING: service=%s uuid=%s\n", cfg.ServiceName, bluetooth.SerialPortProfile)

	select {
	case <-ctx.Done():
		return m.Close()

	case err := <-stopped:
		if cerr := m.Close(); err == nil {
			err = cerr
		}

		return err
	}
}

// printer prints received chunks to stdout.
type printer struct {
	stopped chan<- error
}

func (p printer) OnChunk(text string) {
	fmt.Printf("RECEIVED: %q\n", text)
}

func (p printer) OnStopped(err error) {
	p.stopped <- err
}

func printEvents(sub eventbus.SubscriberID) {
	for ev := range sub.C {
		data, err := serde.MarshalJson(ev)
		if err != nil {
			continue
		}

		fmt.Printf("EVENT: %s\n", data)
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return zap.NewNop()
	}

	return logger
}

func readLines(ctx context.Context, r *bufio.Scanner) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		for r.Scan() {
			select {
			case lines <- r.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
