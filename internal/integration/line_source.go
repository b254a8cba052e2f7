package integration

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LineHandler receives one raw sensor line. Lines are delivered one at a time.
type LineHandler func(ctx context.Context, line string)

// LineSource delivers sensor lines until the context ends.
type LineSource interface {
	Run(ctx context.Context, handle LineHandler) error
}

// reconnectBackOff retries forever, capped at half a minute between attempts.
func reconnectBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// splitLines returns the non-blank lines of a payload with surrounding whitespace removed.
func splitLines(payload string) []string {
	var lines []string
	for _, l := range strings.Split(payload, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
