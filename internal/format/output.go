package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// TextWriter is implemented by payloads with a human-readable rendering.
type TextWriter interface {
	WriteText(w io.Writer) error
}

// Write writes output in the requested format.
//
// Supported formats:
// - text (default)
// - json
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "text":
		return WriteText(w, v)
	case "json":
		return WriteJSON(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteText uses the payload's own rendering, falling back to pretty JSON for payloads
// without one.
func WriteText(w io.Writer, v any) error {
	if tw, ok := v.(TextWriter); ok {
		return tw.WriteText(w)
	}
	return WriteJSON(w, v, true)
}
