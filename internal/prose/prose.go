// Package prose converts tracker markup into Org inline markup before records reach
// the reconciliation engine.
package prose

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Converter turns tracker text into Org text.
type Converter interface {
	Convert(text string) (string, error)
}

var ErrInvalidText = errors.New("text is not valid UTF-8")

// Plain passes text through unchanged.
type Plain struct{}

func (Plain) Convert(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", ErrInvalidText
	}
	return text, nil
}

// New returns the converter registered under name ("markdown" or "plain").
func New(name string) (Converter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md", "gfm":
		return NewMarkdown(), nil
	case "plain", "none":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unknown prose converter %q (expected markdown|plain)", name)
	}
}
