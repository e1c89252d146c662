package cli

import (
	"errors"
	"fmt"
	"io"

	"orgsync-cli/internal/provider"
)

type hinter interface {
	Hint() string
}

// errorHint returns the remediation attached to err, if any.
func errorHint(err error) string {
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		return fe.Hint
	}
	var h hinter
	if errors.As(err, &h) {
		return h.Hint()
	}
	return ""
}

func writeErr(w io.Writer, err error) error {
	fmt.Fprintln(w, "Error: "+err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, "Hint: "+hint)
	}
	return err
}

type fileNotFoundError struct {
	path string
}

func (e fileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.path)
}

func (e fileNotFoundError) Hint() string {
	return "run `orgsync sync <owner/repo> -o " + e.path + "` to create it"
}
