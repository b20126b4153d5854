package client

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// Run is the foreground command loop. It is the only reader of the input
// stream and the only cooperative suspension point on the main
// goroutine; dispatched turns run on their own goroutines so the loop
// stays responsive to reset and quit while a turn is in flight.
func (c *Client) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case line, ok := <-lines:
			if !ok {
				c.shutdown()
				return nil
			}
			if quit := c.handleLine(ctx, line); quit {
				c.shutdown()
				return nil
			}
		}
	}
}

// handleLine classifies one line of input. Returns true on quit.
func (c *Client) handleLine(ctx context.Context, line string) bool {
	cmd := strings.TrimSpace(line)
	lower := strings.ToLower(cmd)

	switch lower {
	case "q", "quit", "exit":
		return true
	case "r", "reset":
		// Reset deliberately skips the busy check: it may run concurrently
		// with an in-flight turn, letting the user abandon a hung one. The
		// racing turn may print under the new session id.
		id := c.sess.Reset()
		if err := c.hub.ResetConversation(ctx, id); err != nil {
			c.status("❌", red, fmt.Sprintf("Reset failed: %v", err))
		} else {
			fmt.Fprintf(c.out, "  %s  New session: %s\n", green.Sprint("Conversation reset."), c.sess.Short())
		}
		c.prompt()
		return false
	}

	if c.guard.Busy() {
		yellow.Fprintln(c.out, "  Still processing — please wait…")
		c.prompt()
		return false
	}

	// Turns are detached from the signal context: once accepted they run
	// to completion, and shutdown never aborts the in-flight remote call.
	turnCtx := context.WithoutCancel(ctx)

	// Inline text works in both modes.
	if strings.HasPrefix(lower, "t ") && len(cmd) > 2 {
		if text := strings.TrimSpace(cmd[2:]); text != "" {
			go c.RunTextTurn(turnCtx, text, TriggerInline)
			return false
		}
	}

	if c.textMode {
		if cmd != "" {
			go c.RunTextTurn(turnCtx, cmd, TriggerImplicit)
		} else {
			c.prompt()
		}
		return false
	}

	// Voice mode: plain Enter starts a recording.
	go c.RunVoiceTurn(turnCtx, TriggerManual)
	return false
}
