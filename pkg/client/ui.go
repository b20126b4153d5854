package client

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// syncWriter serializes writes so a turn racing shutdown never
// interleaves bytes with the farewell.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var (
	green  = color.New(color.FgHiGreen, color.Bold)
	cyan   = color.New(color.FgHiCyan, color.Bold)
	yellow = color.New(color.FgHiYellow, color.Bold)
	red    = color.New(color.FgHiRed, color.Bold)
	dim    = color.New(color.Faint)
)

// status overwrites the current line with an icon + coloured message.
func (c *Client) status(icon string, col *color.Color, msg string) {
	fmt.Fprint(c.out, "\r")
	col.Fprintf(c.out, "%s  %s", icon, msg)
	fmt.Fprintln(c.out, "          ")
}

func (c *Client) hr() {
	dim.Fprintln(c.out, strings.Repeat("─", 50))
}

// prompt redraws the input hint for the active mode.
func (c *Client) prompt() {
	switch {
	case c.textMode:
		dim.Fprint(c.out, "  > ")
	case c.wakeEngine() != nil:
		dim.Fprintf(c.out, "  Say '%s' to speak  [Enter] manual  [r] reset  [q] quit\n", c.wakeModel)
	default:
		dim.Fprintln(c.out, "  [Enter] speak  [r] reset  [t <text>] inline text  [q] quit")
	}
}
