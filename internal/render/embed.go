package render

import (
	"fmt"
	"strings"

	"github.com/sklonger/sklonger/internal/thread"
)

const maxQuoteText = 300

// Embed renders a media embed. A nil embed renders as an empty string.
func Embed(e thread.Embed) string {
	switch v := e.(type) {
	case thread.ImageSet:
		return imageSet(v)
	case thread.Video:
		return video(v)
	case thread.ExternalLink:
		return external(v)
	}
	return ""
}

func imageSet(set thread.ImageSet) string {
	if len(set.Images) == 0 {
		return ""
	}
	layout := "grid"
	switch len(set.Images) {
	case 1:
		layout = "single"
	case 2:
		layout = "double"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="embed-images %s">`, layout)
	for _, img := range set.Images {
		tag := imageTag(img.ThumbURL, img.Alt, aspectStyle(img.AspectRatio, ""))
		if webURL(img.FullsizeURL) {
			fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer" class="embed-image-link">%s</a>`,
				EscapeAttr(img.FullsizeURL), tag)
			continue
		}
		b.WriteString(tag)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func imageTag(src, alt, style string) string {
	if style != "" {
		style = fmt.Sprintf(` style="%s"`, EscapeAttr(style))
	}
	return fmt.Sprintf(`<img src="%s" alt="%s" class="embed-image"%s loading="lazy">`,
		EscapeAttr(src), EscapeAttr(alt), style)
}

func video(v thread.Video) string {
	alt := v.Alt
	if alt == "" {
		alt = "Video"
	}
	poster := ""
	if v.ThumbnailURL != "" {
		poster = fmt.Sprintf(` poster="%s"`, EscapeAttr(v.ThumbnailURL))
	}
	return fmt.Sprintf(`<div class="embed-video" style="%s">`+
		`<video controls playsinline preload="metadata" aria-label="%s"%s>`+
		`<source src="%s" type="application/x-mpegURL">`+
		`Your browser does not support HLS video.`+
		`</video></div>`,
		EscapeAttr(aspectStyle(v.AspectRatio, "16 / 9")),
		EscapeAttr(alt),
		poster,
		EscapeAttr(v.PlaylistURL),
	)
}

func external(link thread.ExternalLink) string {
	var b strings.Builder
	if webURL(link.URI) {
		fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer" class="embed-external">`, EscapeAttr(link.URI))
	} else {
		b.WriteString(`<div class="embed-external">`)
	}
	if link.ThumbURL != "" {
		fmt.Fprintf(&b, `<img src="%s" alt="" class="external-thumb" loading="lazy">`, EscapeAttr(link.ThumbURL))
	}
	fmt.Fprintf(&b, `<div class="external-info"><div class="external-title">%s</div><div class="external-description">%s</div></div>`,
		EscapeText(link.Title), EscapeText(link.Description))
	if webURL(link.URI) {
		b.WriteString(`</a>`)
	} else {
		b.WriteString(`</div>`)
	}
	return b.String()
}

// Quote renders a quoted post card. The card is not itself a link so nested
// media links stay valid markup.
func Quote(q *thread.QuotedPost) string {
	if q == nil {
		return ""
	}
	handle := q.Author.Handle
	if handle == "" {
		handle = q.Author.DID
	}
	var b strings.Builder
	b.WriteString(`<div class="embed-record">`)
	fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer" class="record-header">`,
		EscapeAttr(PostURL(handle, q.RecordKey())))
	b.WriteString(avatar(q.Author.AvatarURL, q.Author.Name()))
	fmt.Fprintf(&b, `<span class="record-author-info"><span class="record-author-name">%s</span><span class="record-author-handle">@%s</span></span></a>`,
		EscapeText(q.Author.Name()), EscapeText(handle))
	fmt.Fprintf(&b, `<div class="record-text">%s</div>`, EscapeText(truncate(q.Text, maxQuoteText)))
	b.WriteString(Embed(q.Embed))
	if !q.CreatedAt.IsZero() {
		fmt.Fprintf(&b, `<div class="record-meta"><time datetime="%s">%s</time></div>`,
			q.CreatedAt.UTC().Format(timeAttrLayout), q.CreatedAt.UTC().Format(dateLayout))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func aspectStyle(ar *thread.AspectRatio, fallback string) string {
	if ar == nil || ar.Width <= 0 || ar.Height <= 0 {
		if fallback == "" {
			return ""
		}
		return "aspect-ratio: " + fallback + ";"
	}
	return fmt.Sprintf("aspect-ratio: %d / %d;", ar.Width, ar.Height)
}
