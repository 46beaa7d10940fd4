// Package chunk splits raw document text into overlapping segments
// suitable for embedding and retrieval.
//
// The Splitter prefers semantic boundaries over arbitrary cuts: it tries
// paragraph breaks first, then line breaks, sentence boundaries, spaces,
// and finally hard character cuts. Consecutive chunks share up to
// Overlap characters of trailing context so cross-boundary information
// remains retrievable.
package chunk

import (
	"strings"

	"github.com/iyya/iyya/internal/document"
)

// Chunk is the atomic retrievable unit: a bounded text segment with the
// metadata needed to cite and re-sync its source.
type Chunk struct {
	// Content is the text segment, non-empty.
	Content string

	// ModuleID is the owning module (e.g. "cgi").
	ModuleID string

	// FileName is the source file's base name, the delete/replace key
	// for re-sync.
	FileName string

	// Page is the 1-based page (PDF) or section ordinal (Word).
	Page int

	// Index is the 0-based position of the chunk within its source
	// file's chunk sequence.
	Index int
}

// defaultSeparators orders split boundaries from most to least semantic.
// The empty separator is the hard character cut of last resort.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter produces chunks of at most Size characters with Overlap
// characters of carried-over context. Lengths are counted in runes so
// accented French text is not penalized.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a Splitter with the given size and overlap.
// Overlap must be strictly smaller than size; config validation
// enforces this before a Splitter is ever constructed.
func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{
		size:       size,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split splits raw text into segments of at most the configured size.
// A single atomic token longer than the size is returned as-is rather
// than cut mid-rune. Empty input yields no segments.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// SplitDocument chunks a loaded document's units and stamps each chunk
// with its metadata. The chunk index is sequential across the whole
// file, not per page.
func (s *Splitter) SplitDocument(moduleID, fileName string, units []document.Unit) []Chunk {
	var chunks []Chunk
	index := 0
	for _, u := range units {
		for _, content := range s.Split(u.Text) {
			chunks = append(chunks, Chunk{
				Content:  content,
				ModuleID: moduleID,
				FileName: fileName,
				Page:     u.Page,
				Index:    index,
			})
			index++
		}
	}
	return chunks
}

// split recursively breaks text down the separator hierarchy.
func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text; the empty separator
	// always matches.
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	splits := splitText(text, sep)

	var final []string
	var pending []string
	for _, piece := range splits {
		if runeLen(piece) < s.size {
			pending = append(pending, piece)
			continue
		}
		// Oversized piece: flush what we have, then recurse with the
		// finer separators (or keep as-is at the hard-cut level).
		if len(pending) > 0 {
			final = append(final, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending, sep)...)
	}
	return final
}

// merge greedily packs small splits into chunks of at most size,
// re-joining them with the separator they were split on. When a chunk
// is emitted, leading splits are dropped until at most overlap
// characters remain; those survivors seed the next chunk.
func (s *Splitter) merge(splits []string, sep string) []string {
	sepLen := runeLen(sep)

	var docs []string
	var current []string
	total := 0

	joinedLen := func(extra int) int {
		n := total + extra
		if len(current) > 0 {
			n += sepLen
		}
		return n
	}

	for _, piece := range splits {
		pieceLen := runeLen(piece)
		if joinedLen(pieceLen) > s.size && len(current) > 0 {
			if doc := joinSplits(current, sep); doc != "" {
				docs = append(docs, doc)
			}
			// Drop from the front until within the overlap budget and
			// the incoming piece fits.
			for total > s.overlap || (joinedLen(pieceLen) > s.size && total > 0) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += pieceLen
	}

	if doc := joinSplits(current, sep); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitText splits on sep, dropping empty fragments. The empty
// separator splits into individual runes (hard cut).
func splitText(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = strings.Split(text, "")
	} else {
		parts = strings.Split(text, sep)
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// joinSplits joins and trims a chunk candidate.
func joinSplits(splits []string, sep string) string {
	return strings.TrimSpace(strings.Join(splits, sep))
}

func runeLen(s string) int {
	return len([]rune(s))
}
