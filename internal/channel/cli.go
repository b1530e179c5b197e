package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// CLI is a Channel that reads one user message per line from an io.Reader
// and writes replies to an io.Writer — grounded on
// cmd/nexus/handlers_setup.go's bufio.NewReader(os.Stdin) prompt loop,
// generalized from a fixed onboarding question sequence into an
// open-ended Receive/Send pair.
type CLI struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
}

// NewCLI constructs a CLI channel over the given reader/writer. closer may
// be nil if the underlying streams need no explicit close.
func NewCLI(r io.Reader, w io.Writer, closer io.Closer) *CLI {
	return &CLI{reader: bufio.NewReader(r), writer: w, closer: closer}
}

// Name implements Channel.
func (c *CLI) Name() string { return "cli" }

// Receive implements Channel, blocking for the next newline-terminated
// line of input.
func (c *CLI) Receive(ctx context.Context) (string, bool, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c.mu.Lock()
		line, err := c.reader.ReadString('\n')
		c.mu.Unlock()
		done <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r := <-done:
		trimmed := strings.TrimRight(r.line, "\r\n")
		if r.err != nil {
			if r.err == io.EOF {
				if strings.TrimSpace(trimmed) == "" {
					return "", false, nil
				}
				return trimmed, true, nil
			}
			return "", false, fmt.Errorf("cli channel: %w", r.err)
		}
		return trimmed, true, nil
	}
}

// Send implements Channel.
func (c *CLI) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.writer, text)
	return err
}

// Close implements Channel.
func (c *CLI) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
