// internal/channel/bus.go
package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gantry-control/internal/interfaces"
)

// Bus serializes command/response exchanges on one physical channel. The motion
// path and the safety poller share a bus, so a Query must never interleave with
// another caller's Send/Read pair.
type Bus struct {
	name string
	mu   sync.Mutex
	ch   interfaces.CommandChannel
}

// NewBus wraps a channel with an exchange lock.
func NewBus(name string, ch interfaces.CommandChannel) *Bus {
	return &Bus{name: name, ch: ch}
}

// Name returns the bus label used in logs.
func (b *Bus) Name() string {
	return b.name
}

// Exec sends a command that has no response.
func (b *Bus) Exec(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ch.Send(command); err != nil {
		return fmt.Errorf("%s bus: send %q: %w", b.name, command, err)
	}
	return nil
}

// Query sends a command and reads its response as one exchange.
func (b *Bus) Query(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ch.Send(command); err != nil {
		return "", fmt.Errorf("%s bus: send %q: %w", b.name, command, err)
	}
	resp, err := b.ch.Read()
	if err != nil {
		return "", fmt.Errorf("%s bus: read response to %q: %w", b.name, command, err)
	}
	return strings.TrimSpace(resp), nil
}

// Close closes the underlying channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch.Close()
}

// Command formats a wire command as VERB:arg1:arg2...
func Command(verb string, args ...interface{}) string {
	if len(args) == 0 {
		return verb
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, verb)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ":")
}

// Verb returns the verb part of a wire command.
func Verb(command string) string {
	if i := strings.IndexByte(command, ':'); i >= 0 {
		return command[:i]
	}
	return command
}

// ParseBool parses a boolean device response, ignoring case and surrounding
// whitespace. Controllers disagree on "TRUE" versus "true".
func ParseBool(resp string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(resp)))
}
