// internal/channel/tcp.go
package channel

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// TCP newline-framed ASCII command channel to a networked IO block.
type TCP struct {
	conn    net.Conn
	reader  *bufio.Reader
	address string
	timeout time.Duration
}

// DialTCP connects to the IO block; timeout bounds the dial and every read.
func DialTCP(address string, timeout time.Duration) (*TCP, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return &TCP{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		address: address,
		timeout: timeout,
	}, nil
}

func (t *TCP) Send(command string) error {
	if t.timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	if _, err := t.conn.Write([]byte(command + "\n")); err != nil {
		return fmt.Errorf("write to %s: %w", t.address, err)
	}
	return nil
}

func (t *TCP) Read() (string, error) {
	if t.timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read from %s: %w", t.address, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}
