package publish

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"orgsync-cli/internal/org"
)

type WriteOptions struct {
	RenderOptions
	Overwrite bool
}

type WriteResult struct {
	Written  string `json:"written"`
	Headings int    `json:"headings"`
	Bytes    int    `json:"bytes"`
}

// WriteMarkdown renders doc and writes it to path, creating parent directories.
func WriteMarkdown(doc *org.Document, path string, opt WriteOptions) (WriteResult, error) {
	if doc == nil {
		return WriteResult{}, errors.New("missing document")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	path = filepath.Clean(path)

	md := RenderMarkdown(doc, opt.RenderOptions)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WriteResult{}, err
	}
	if err := writeFile(path, []byte(md), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: path, Headings: doc.Count(), Bytes: len(md)}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return atomic.WriteFile(path, bytes.NewReader(b))
}
