// internal/channel/serial.go
package channel

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig servo bus serial port settings
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Serial newline-framed ASCII command channel on a serial port.
type Serial struct {
	port   *serial.Port
	reader *bufio.Reader
	device string
}

// OpenSerial opens the servo bus port (8N1, no handshake).
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device cannot be empty")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &Serial{
		port:   port,
		reader: bufio.NewReader(port),
		device: cfg.Device,
	}, nil
}

func (s *Serial) Send(command string) error {
	if _, err := s.port.Write([]byte(command + "\n")); err != nil {
		return fmt.Errorf("write to %s: %w", s.device, err)
	}
	return nil
}

func (s *Serial) Read() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read from %s: %w", s.device, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Serial) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}
