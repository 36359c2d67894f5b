package ingest

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	rpdf "rsc.io/pdf"
)

// ExtractPDFText returns the text of every page, pages separated by newlines.
// The parser panics on some malformed input; that is reported as
// ErrUnreadableDocument.
func ExtractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	doc, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, pageText(page.Content().Text))
	}
	return strings.Join(pages, "\n"), nil
}

// pageText joins glyph runs into words. A change of baseline starts a new
// line and a horizontal gap wider than a fraction of the font size becomes a
// space.
func pageText(runs []rpdf.Text) string {
	var sb strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			switch {
			case math.Abs(t.Y-prev.Y) > 0.5:
				sb.WriteByte('\n')
			case t.X-(prev.X+prev.W) > 0.15*t.FontSize:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
	}
	return sb.String()
}
