// Package repl runs code on a uzigbee device through the MicroPython raw REPL
// and reads back the Basic cluster identity it would present at interview.
package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"

	"uzigbee-devices/internal/interview"
)

const DefaultBaud = 115200

// Control bytes and prompts of the MicroPython raw REPL.
const (
	ctrlA = "\x01" // enter raw REPL
	ctrlB = "\x02" // leave raw REPL
	ctrlC = "\x03" // interrupt
	ctrlD = "\x04" // execute, and end of output

	rawBanner = "raw REPL; CTRL-B to exit\r\n>"
)

// readTimeout bounds a single read so a silent port still sees ctx.
const readTimeout = 200 * time.Millisecond

var ErrTimeout = errors.New("repl: device did not answer")

// OpenPort opens a serial port to the device. DTR and RTS are held low so
// boards that wire them to reset keep running.
func OpenPort(name string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("repl: open %s: %w", name, err)
	}
	_ = port.SetDTR(false)
	_ = port.SetRTS(false)
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("repl: %s: %w", name, err)
	}
	return port, nil
}

// Session talks to one device. Reads on rw may return (0, nil) when nothing
// arrived within the port's read timeout.
type Session struct {
	rw     io.ReadWriter
	logger *slog.Logger
	buf    []byte
}

func NewSession(rw io.ReadWriter, logger *slog.Logger) *Session {
	return &Session{rw: rw, logger: logger.With("component", "repl")}
}

// Exec interrupts whatever the device is running, executes code in the raw
// REPL and returns its standard output. Anything the code wrote to standard
// error is returned as the error.
func (s *Session) Exec(ctx context.Context, code string) (string, error) {
	if err := s.write(ctrlC + ctrlC + "\r" + ctrlA); err != nil {
		return "", err
	}
	if _, err := s.readUntil(ctx, rawBanner); err != nil {
		return "", fmt.Errorf("enter raw REPL: %w", err)
	}
	defer s.write(ctrlB)

	if err := s.write(code + ctrlD); err != nil {
		return "", err
	}
	if _, err := s.readUntil(ctx, "OK"); err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	stdout, err := s.readUntil(ctx, ctrlD)
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	stderr, err := s.readUntil(ctx, ctrlD)
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	if _, err := s.readUntil(ctx, ">"); err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	if msg := strings.TrimSpace(stderr); msg != "" {
		lines := strings.Split(msg, "\n")
		s.logger.Debug("device traceback", "stderr", msg)
		return stdout, fmt.Errorf("device: %s", strings.TrimSpace(lines[len(lines)-1]))
	}
	return stdout, nil
}

// identityCode prints the identity from uzigbee.z2m as one JSON line.
const identityCode = `import json
from uzigbee import z2m
print(json.dumps(z2m.get_interview_attrs(endpoint_id=%d)))
`

// Identity reads the Basic cluster identity of endpoint.
func (s *Session) Identity(ctx context.Context, endpoint int) (interview.Identity, error) {
	var id interview.Identity
	out, err := s.Exec(ctx, fmt.Sprintf(identityCode, endpoint))
	if err != nil {
		return id, err
	}
	out = strings.TrimSpace(out)
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	if err := json.Unmarshal([]byte(out), &id); err != nil {
		return id, fmt.Errorf("decode identity %q: %w", out, err)
	}
	s.logger.Info("identity read", "manufacturer", id.ManufacturerName, "model", id.ModelIdentifier)
	return id, nil
}

func (s *Session) write(data string) error {
	if _, err := io.WriteString(s.rw, data); err != nil {
		return fmt.Errorf("repl: write: %w", err)
	}
	return nil
}

// readUntil returns what arrived before marker and drops the marker.
func (s *Session) readUntil(ctx context.Context, marker string) (string, error) {
	chunk := make([]byte, 256)
	for {
		if i := bytes.Index(s.buf, []byte(marker)); i >= 0 {
			out := string(s.buf[:i])
			s.buf = s.buf[i+len(marker):]
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		n, err := s.rw.Read(chunk)
		s.buf = append(s.buf, chunk[:n]...)
		if err != nil {
			return "", fmt.Errorf("repl: read: %w", err)
		}
	}
}
