package text

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// FromPDF returns the text content of a PDF document with whitespace
// collapsed.
func FromPDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", eris.Wrap(err, "text: open pdf")
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", eris.Wrap(err, "text: extract pdf text")
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", eris.Wrap(err, "text: read pdf text")
	}
	return NormalizeWhitespace(sb.String()), nil
}
