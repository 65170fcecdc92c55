package browser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/runtime"
)

func TestConsoleCollectsMessagesAndExceptions(t *testing.T) {
	c := &Console{}
	c.handle(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeError,
		Args: []*runtime.RemoteObject{{Value: []byte(`"boom"`)}, {Description: "Error: x"}},
	})
	c.handle(&runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught", Exception: &runtime.RemoteObject{Description: "TypeError: nope"}},
	})
	c.handle(&runtime.EventExceptionThrown{})
	c.handle("ignored")

	got := c.Entries()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got[0] != `[error] "boom" Error: x` {
		t.Fatalf("unexpected console line %q", got[0])
	}
	if !strings.Contains(got[1], "TypeError: nope") {
		t.Fatalf("unexpected exception line %q", got[1])
	}
}

func TestConsoleBounded(t *testing.T) {
	c := &Console{}
	for i := 0; i < maxConsoleEntries+5; i++ {
		c.add(fmt.Sprintf("line %d", i))
	}
	got := c.Entries()
	if len(got) != maxConsoleEntries || c.Dropped() != 5 {
		t.Fatalf("expected bounded buffer, got len=%d dropped=%d", len(got), c.Dropped())
	}
	if got[0] != "line 5" {
		t.Fatalf("expected oldest entries dropped, got %q", got[0])
	}
	var nilConsole *Console
	if nilConsole.Entries() != nil || nilConsole.Dropped() != 0 {
		t.Fatalf("nil console should be empty")
	}
}
