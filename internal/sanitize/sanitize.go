// Package sanitize cleans free text (payees, memos, names) before it is
// stored, sent upstream or exported.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips markup and control characters and trims whitespace.
func Text(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	// StrictPolicy escapes what it keeps; templates escape again on output.
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Cell guards a value written to a spreadsheet against formula injection.
func Cell(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
