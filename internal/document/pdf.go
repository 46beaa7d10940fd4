package document

import (
	"github.com/ledongthuc/pdf"
)

// PDFSource loads PDF files, one text unit per physical page,
// numbered from 1. Blank pages are skipped.
type PDFSource struct{}

// Load implements Source.
func (PDFSource) Load(path string) ([]Unit, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	defer f.Close()

	var units []Unit
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, &LoadError{File: path, Err: err}
		}
		if text == "" {
			continue
		}
		units = append(units, Unit{Text: text, Page: i})
	}
	return units, nil
}
