package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bluetuith-org/serial-link/link"
)

// Robot drive commands, one byte each.
const (
	CommandBackward = "r"
	CommandForward  = "a"
	CommandLeft     = "g"
	CommandRight    = "d"
	CommandStop     = "s"
)

var commandNames = map[string]string{
	"backward": CommandBackward,
	"forward":  CommandForward,
	"left":     CommandLeft,
	"right":    CommandRight,
	"stop":     CommandStop,
}

// parseCommand returns the payload for a line typed by the user: either a
// command name, a command letter, or any other text sent as is.
func parseCommand(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	if cmd, ok := commandNames[strings.ToLower(line)]; ok {
		return cmd, true
	}

	return line, true
}

// sendCommands sends every line read from r until r ends or ctx is done.
func sendCommands(ctx context.Context, m *link.Manager, r io.Reader) error {
	fmt.Println("Enter commands (forward, backward, left, right, stop, or raw text):")

	for line := range readLines(ctx, bufio.NewScanner(r)) {
		payload, ok := parseCommand(line)
		if !ok {
			continue
		}

		if err := m.SendString(payload); err != nil {
			return err
		}
	}

	return ctx.Err()
}
