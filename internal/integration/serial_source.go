package integration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/abelzeko/flood-bot/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"
)

// PortOpener opens a serial port for reading.
type PortOpener func(name string, baud int) (io.ReadCloser, error)

// OpenSerialPort opens a real serial port and discards anything buffered
// before the station started listening.
func OpenSerialPort(name string, baud int) (io.ReadCloser, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset input buffer: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset output buffer: %w", err)
	}
	return port, nil
}

// SerialSource reads newline-terminated sensor lines from a serial port and
// reconnects whenever the port fails.
type SerialSource struct {
	portName   string
	baud       int
	open       PortOpener
	newBackOff func() backoff.BackOff
}

// NewSerialSource creates a source for the given port
func NewSerialSource(portName string, baud int) *SerialSource {
	return &SerialSource{
		portName:   portName,
		baud:       baud,
		open:       OpenSerialPort,
		newBackOff: reconnectBackOff,
	}
}

// Run blocks until ctx is cancelled, handing every non-blank line to handle.
// Reconnects after a lost connection back off until a session delivers a line.
func (s *SerialSource) Run(ctx context.Context, handle LineHandler) error {
	reconnect := s.newBackOff()
	for {
		port, err := s.connect(ctx)
		if err != nil {
			return err
		}

		delivered, err := s.readLines(ctx, port, handle)
		port.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if delivered > 0 {
			reconnect.Reset()
		}
		wait := reconnect.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("serial connection to %s lost: %w", s.portName, err)
		}
		log.Printf("Serial connection to %s lost: %v, reconnecting in %s", s.portName, err, wait)
		metrics.SourceReconnects.WithLabelValues("serial").Inc()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *SerialSource) connect(ctx context.Context) (io.ReadCloser, error) {
	var port io.ReadCloser
	operation := func() error {
		p, err := s.open(s.portName, s.baud)
		if err != nil {
			return err
		}
		port = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Printf("Error opening serial port %s: %v, retrying in %s", s.portName, err, next)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	log.Printf("Connected to %s at %d baud", s.portName, s.baud)
	return port, nil
}

func (s *SerialSource) readLines(ctx context.Context, port io.ReadCloser, handle LineHandler) (int, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read.
			port.Close()
		case <-done:
		}
	}()

	delivered := 0
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		handle(ctx, line)
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return delivered, err
	}
	return delivered, io.EOF
}
