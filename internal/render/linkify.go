package render

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// MaxLinkText is the longest link label shown before truncation.
const MaxLinkText = 40

var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

// Linkify wraps every http(s) URL in already escaped text with an anchor. The
// matched text is unescaped to recover the original URL, which is then
// escaped again for the href and the label so the output never contains
// unescaped input.
func Linkify(escaped string) string {
	return urlPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		raw := html.UnescapeString(match)
		var b strings.Builder
		b.WriteString(`<a href="`)
		b.WriteString(EscapeAttr(raw))
		b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
		b.WriteString(EscapeText(truncate(raw, MaxLinkText)))
		b.WriteString(`</a>`)
		return b.String()
	})
}

// truncate shortens s to at most max runes, ending with "..." when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// truncateWords shortens s to at most max runes, cutting at the last space
// when there is one, and appends "...".
func truncateWords(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// webURL reports whether raw is an absolute http or https URL.
func webURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
