package render

import (
	"html"
	"strings"
)

const replacementChar = "�"

// EscapeText encodes s for use as HTML element content. It is total: invalid
// UTF-8 and NUL bytes become U+FFFD and the five HTML-significant characters
// are replaced with entities.
func EscapeText(s string) string {
	return html.EscapeString(clean(s))
}

// EscapeAttr encodes s for use inside a double- or single-quoted attribute
// value.
func EscapeAttr(s string) string {
	return html.EscapeString(clean(s))
}

func clean(s string) string {
	s = strings.ToValidUTF8(s, replacementChar)
	return strings.ReplaceAll(s, "\x00", replacementChar)
}
