package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"pkt.systems/vibaverify/schema"
)

// Report writes the single human-readable result line.
func Report(w io.Writer, o schema.Outcome) error {
	_, err := fmt.Fprintln(w, Line(o))
	return err
}

// Line renders the result line without a trailing newline.
func Line(o schema.Outcome) string {
	if o.Passed {
		return "Verification successful!"
	}
	msg := strings.Join(strings.Fields(o.Message), " ")
	if msg == "" {
		msg = string(o.Kind)
	}
	if msg == "" {
		msg = "unknown error"
	}
	return "Verification failed: " + msg
}

// ReportJSON writes the outcome as an indented JSON document.
func ReportJSON(w io.Writer, o schema.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}
