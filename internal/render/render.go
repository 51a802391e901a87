// Package render turns resolved threads into pre-escaped HTML fragments.
//
// Every value taken from upstream passes through EscapeText or EscapeAttr
// before it reaches the output. Callers receive template.HTML fragments that
// are safe to place in element content, plus plain-string metadata that the
// page templates escape on their own.
package render

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/sklonger/sklonger/internal/thread"
)

const (
	// SiteName is used in titles and social metadata.
	SiteName = "sklonger"

	profileBase     = "https://bsky.app/profile/"
	defaultLang     = "en"
	maxDescription  = 160
	timeAttrLayout  = time.RFC3339
	displayLayout   = "Jan 02, 2006 at 15:04 UTC"
	dateLayout      = "Jan 02, 2006"
	metaSeparator   = " &middot; "
	externalLinkRel = `target="_blank" rel="noopener noreferrer"`
)

// Options carries request-specific values the fragments cannot derive from
// the thread itself.
type Options struct {
	// CanonicalURL is the public URL of the rendered page, used for og:url.
	CanonicalURL string
}

// Document is everything the page assembler needs to produce a thread page.
// Lang and Title are plain strings; the remaining fields are escaped markup.
type Document struct {
	Lang   string
	Title  string
	Head   template.HTML
	Header template.HTML
	Posts  []template.HTML
	Footer template.HTML
}

// Render builds the complete document for th.
func Render(th thread.Thread, opts Options) Document {
	doc := Frame(th.Author, th.Root(), opts)
	doc.Posts = make([]template.HTML, 0, len(th.Posts))
	for _, p := range th.Posts {
		doc.Posts = append(doc.Posts, Post(p, th.Author))
	}
	return doc
}

// Frame builds everything except the post list. It only needs the root post,
// so streaming responses can emit it before the walk has finished.
func Frame(author thread.Author, root thread.Post, opts Options) Document {
	return Document{
		Lang:   Lang(root.Langs),
		Title:  Title(author),
		Head:   template.HTML(head(author, root, opts)),
		Header: template.HTML(header(author)),
		Footer: template.HTML(footer(author, root)),
	}
}

// Title is the document title for a thread by author.
func Title(author thread.Author) string {
	return fmt.Sprintf("Thread by @%s - %s", author.Handle, SiteName)
}

// Lang returns the canonical form of the first language tag, or "en" when
// there is none or it does not parse.
func Lang(tags []string) string {
	if len(tags) == 0 {
		return defaultLang
	}
	tag, err := language.Parse(tags[0])
	if err != nil || tag == language.Und {
		return defaultLang
	}
	return tag.String()
}

// Post renders one post as an article element.
func Post(p thread.Post, author thread.Author) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<article class="post" id="post-%s" data-cid="%s">`, EscapeAttr(p.RecordKey()), EscapeAttr(p.CID))
	fmt.Fprintf(&b, `<div class="post-text">%s</div>`, Linkify(EscapeText(p.Text)))
	b.WriteString(Embed(p.Embed))
	b.WriteString(Quote(p.Quote))
	fmt.Fprintf(&b, `<a href="%s" %s class="post-meta">%s</a>`,
		EscapeAttr(PostURL(author.Handle, p.RecordKey())), externalLinkRel, postMeta(p))
	b.WriteString(`</article>`)
	return template.HTML(b.String())
}

func postMeta(p thread.Post) string {
	parts := make([]string, 0, 3)
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt.UTC()
		parts = append(parts, fmt.Sprintf(`<time datetime="%s">%s</time>`, t.Format(timeAttrLayout), t.Format(displayLayout)))
	}
	if n := count(p.LikeCount); n > 0 {
		parts = append(parts, plural(n, "like"))
	}
	if n := count(p.RepostCount); n > 0 {
		parts = append(parts, plural(n, "repost"))
	}
	return strings.Join(parts, metaSeparator)
}

func count(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func plural(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// PostURL is the bsky.app address of a post.
func PostURL(handle, rkey string) string {
	return profileBase + handle + "/post/" + rkey
}

// ProfileURL is the bsky.app address of a profile.
func ProfileURL(handle string) string {
	return profileBase + handle
}

func header(author thread.Author) string {
	var b strings.Builder
	b.WriteString(`<header class="thread-header">`)
	fmt.Fprintf(&b, `<a href="%s" %s class="author">`, EscapeAttr(ProfileURL(author.Handle)), externalLinkRel)
	b.WriteString(avatar(author.AvatarURL, author.Name()))
	fmt.Fprintf(&b, `<span class="author-info"><span class="display-name">%s</span><span class="handle">@%s</span></span>`,
		EscapeText(author.Name()), EscapeText(author.Handle))
	b.WriteString(`</a></header>`)
	return b.String()
}

func footer(author thread.Author, root thread.Post) string {
	original := "https://bsky.app"
	if root.URI != "" {
		original = PostURL(author.Handle, root.RecordKey())
	}
	return fmt.Sprintf(`<footer><a href="%s" %s>View original on Bluesky</a></footer>`,
		EscapeAttr(original), externalLinkRel)
}

// avatar renders the profile picture, or a placeholder holding the uppercase
// initial of name when there is no picture.
func avatar(url, name string) string {
	if url != "" {
		return fmt.Sprintf(`<img class="avatar" src="%s" alt="%s's avatar">`, EscapeAttr(url), EscapeAttr(name))
	}
	initial := "?"
	if r, _ := utf8.DecodeRuneInString(clean(name)); r != utf8.RuneError && name != "" {
		initial = string(unicode.ToUpper(r))
	}
	return fmt.Sprintf(`<div class="avatar-placeholder" role="img" aria-label="%s's avatar">%s</div>`,
		EscapeAttr(name), EscapeText(initial))
}

// head renders the description, social cards and icon link.
func head(author thread.Author, root thread.Post, opts Options) string {
	description := strings.TrimSpace(root.Text)
	if description == "" {
		description = fmt.Sprintf("A thread by %s on Bluesky", author.Name())
	}
	description = truncateWords(description, maxDescription)
	ogTitle := "Thread by @" + author.Handle

	var b strings.Builder
	meta := func(attr, key, value string) {
		fmt.Fprintf(&b, `<meta %s="%s" content="%s">`+"\n", attr, key, EscapeAttr(value))
	}
	meta("name", "description", description)
	meta("property", "og:type", "article")
	meta("property", "og:title", ogTitle)
	meta("property", "og:description", description)
	if opts.CanonicalURL != "" {
		meta("property", "og:url", opts.CanonicalURL)
	}
	meta("property", "og:site_name", SiteName)
	if author.AvatarURL != "" {
		meta("property", "og:image", author.AvatarURL)
	}
	meta("name", "twitter:card", "summary")
	meta("name", "twitter:title", ogTitle)
	meta("name", "twitter:description", description)
	if author.AvatarURL != "" {
		meta("name", "twitter:image", author.AvatarURL)
		fmt.Fprintf(&b, `<link rel="icon" type="image/png" href="%s">`+"\n", EscapeAttr(author.AvatarURL))
	}
	return b.String()
}
