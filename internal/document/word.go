package document

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// WordSource loads .docx files as a single text unit (Page = 1), since
// word-processor documents have no native page concept. Paragraphs are
// joined by blank lines so the chunker can split on its top-priority
// separator; table rows are flattened into pipe-delimited lines appended
// after the paragraphs.
//
// Legacy binary .doc files are not parseable without external tooling and
// fail with a LoadError advising conversion.
type WordSource struct{}

var errLegacyDoc = errors.New("legacy .doc format is not supported, convert the file to .docx")

// Load implements Source.
func (WordSource) Load(path string) ([]Unit, error) {
	if strings.EqualFold(filepath.Ext(path), ".doc") {
		return nil, &LoadError{File: path, Err: errLegacyDoc}
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, &LoadError{File: path, Err: errors.New("word/document.xml not found in archive")}
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	defer rc.Close()

	text, err := extractDocumentText(rc)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	if text == "" {
		return nil, nil
	}
	return []Unit{{Text: text, Page: 1}}, nil
}

// extractDocumentText walks the WordprocessingML token stream.
// Go's xml decoder matches on local names, so the w: namespace prefix
// is irrelevant here.
func extractDocumentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		tableRows  []string

		para     strings.Builder
		cell     strings.Builder
		rowCells []string

		inText     bool
		tableDepth int
		inCell     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tbl":
				tableDepth++
			case "tc":
				if tableDepth > 0 {
					inCell = true
					cell.Reset()
				}
			case "tab":
				if inCell {
					cell.WriteByte('\t')
				} else {
					para.WriteByte('\t')
				}
			case "br":
				if inCell {
					cell.WriteByte('\n')
				} else {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inCell {
					// Paragraph inside a table cell contributes to the cell,
					// collected on </tc>.
					cell.WriteByte(' ')
					break
				}
				if s := strings.TrimSpace(para.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				para.Reset()
			case "tc":
				if inCell {
					rowCells = append(rowCells, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "tr":
				if tableDepth > 0 && len(rowCells) > 0 {
					tableRows = append(tableRows, strings.Join(rowCells, " | "))
					rowCells = nil
				}
			case "tbl":
				if tableDepth > 0 {
					tableDepth--
				}
			}
		case xml.CharData:
			if !inText {
				break
			}
			if inCell {
				cell.Write(t)
			} else {
				para.Write(t)
			}
		}
	}

	parts := make([]string, 0, len(paragraphs)+len(tableRows))
	parts = append(parts, paragraphs...)
	parts = append(parts, tableRows...)
	return strings.Join(parts, "\n\n"), nil
}
