package org

import "fmt"

// MalformedDocumentError reports a structural parse error. Line is 1-based.
type MalformedDocumentError struct {
	Path string
	Line int
	Msg  string
}

func (e *MalformedDocumentError) Error() string {
	where := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		where = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("malformed org document at %s: %s", where, e.Msg)
}

func (e *MalformedDocumentError) Hint() string {
	return "fix the outline by hand (every :PROPERTIES: needs a matching :END:) and re-run"
}

// Warning is a non-fatal parse finding.
type Warning struct {
	Line int    `json:"line"`
	Msg  string `json:"msg"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
}
