// Package document loads source files (PDF, Word) into page-level text units.
//
// A Source knows how to extract text from one file format. ForFile selects
// the Source for a path by extension, so new formats are added by adding a
// Source implementation, not by branching deeper.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat indicates a file extension outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// LoadError reports a single source file that failed to parse.
// Non-fatal to a batch sync; callers collect it and continue.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Unit is one page (PDF) or section (Word) of raw text.
type Unit struct {
	// Text is the extracted raw text, may be empty for blank pages.
	Text string

	// Page is the 1-based page number (PDF) or section ordinal (Word).
	Page int
}

// Source extracts text units from one file format.
type Source interface {
	// Load reads the file at path and returns its text units in order.
	// Parse failures are reported as *LoadError.
	Load(path string) ([]Unit, error)
}

// ForFile returns the Source for the given path's extension.
// Supported: .pdf, .docx, .doc. Returns ErrUnsupportedFormat otherwise.
func ForFile(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFSource{}, nil
	case ".docx", ".doc":
		return WordSource{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load selects the Source for path and loads it.
func Load(path string) ([]Unit, error) {
	src, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	return src.Load(path)
}

// ListFiles returns the supported source files directly under folder,
// as full paths sorted by lowercase base name for deterministic
// processing order. Subdirectories are not descended into.
func ListFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading folder %s: %w", folder, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := ForFile(entry.Name()); err != nil {
			continue // silently skip unsupported files (README, .gitkeep, ...)
		}
		files = append(files, filepath.Join(folder, entry.Name()))
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, nil
}
