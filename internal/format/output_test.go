package format

import (
	"bytes"
	"io"
	"testing"
)

type greeting struct {
	Name string `json:"name"`
}

func (g greeting) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, "hello "+g.Name+"\n")
	return err
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name   string
		v      any
		format string
		pretty bool
		want   string
	}{
		{name: "text uses payload", v: greeting{Name: "ada"}, format: "text", want: "hello ada\n"},
		{name: "default is text", v: greeting{Name: "ada"}, want: "hello ada\n"},
		{name: "json", v: greeting{Name: "ada"}, format: "json", want: "{\"name\":\"ada\"}\n"},
		{name: "pretty json", v: greeting{Name: "ada"}, format: "json", pretty: true, want: "{\n  \"name\": \"ada\"\n}\n"},
		{name: "text fallback", v: map[string]int{"n": 1}, format: "text", want: "{\n  \"n\": 1\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.v, tt.format, tt.pretty); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("got %q want %q", buf.String(), tt.want)
			}
		})
	}

	if err := Write(io.Discard, 1, "edn", false); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
