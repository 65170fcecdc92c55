package browser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const maxConsoleEntries = 100

// Console collects page console output and uncaught exceptions.
type Console struct {
	mu      sync.Mutex
	entries []string
	dropped int
}

// ListenConsole starts collecting console events for the session tab.
func (s *Session) ListenConsole() *Console {
	c := &Console{}
	chromedp.ListenTarget(s.ctx, c.handle)
	return c
}

func (c *Console) handle(ev any) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		var args []string
		for _, arg := range e.Args {
			switch {
			case arg.Value != nil:
				args = append(args, string(arg.Value))
			case arg.Description != "":
				args = append(args, arg.Description)
			}
		}
		c.add(fmt.Sprintf("[%s] %s", e.Type, strings.Join(args, " ")))
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		text := e.ExceptionDetails.Text
		if ex := e.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
			text = ex.Description
		}
		c.add("[exception] " + text)
	}
}

func (c *Console) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxConsoleEntries {
		c.entries = c.entries[1:]
		c.dropped++
	}
	c.entries = append(c.entries, line)
}

// Entries returns a copy of the collected lines, oldest first.
func (c *Console) Entries() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Dropped reports how many early entries were discarded.
func (c *Console) Dropped() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
