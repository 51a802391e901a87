package page

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/sklonger/sklonger/internal/render"
	"github.com/sklonger/sklonger/internal/thread"
)

func sampleThread() thread.Thread {
	return thread.Thread{
		Author: thread.Author{DID: "did:plc:alice", Handle: "alice.test", DisplayName: "Alice </title><script>x</script>"},
		Posts: []thread.Post{
			{URI: "at://did:plc:alice/app.bsky.feed.post/p0", CID: "c0", Text: "first <b>bold</b>", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Langs: []string{"de"}},
			{URI: "at://did:plc:alice/app.bsky.feed.post/p1", CID: "c1", Text: "second https://example.com"},
			{URI: "at://did:plc:alice/app.bsky.feed.post/p2", CID: "c2", Text: "third"},
		},
	}
}

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	a, err := New()
	require.NoError(t, err)
	return a
}

func document(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestAssembler_Thread(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := newAssembler(t).Thread(&buf, render.Render(sampleThread(), render.Options{}))
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	doc := document(t, out)

	lang, _ := doc.Find("html").Attr("lang")
	require.Equal(t, "de", lang)
	require.Equal(t, "Thread by @alice.test - sklonger", doc.Find("title").Text())
	require.Equal(t, 0, doc.Find("script").Length())
	require.Equal(t, 0, doc.Find("b").Length())
	require.Equal(t, 1, doc.Find("style").Length())
	require.Contains(t, doc.Find("style").Text(), ".post-text")

	posts := doc.Find("main.thread article.post")
	require.Equal(t, 3, posts.Length())
	ids := posts.Map(func(_ int, s *goquery.Selection) string {
		id, _ := s.Attr("id")
		return id
	})
	require.Equal(t, []string{"post-p0", "post-p1", "post-p2"}, ids)
	require.Equal(t, "first <b>bold</b>", posts.First().Find(".post-text").Text())
	require.Equal(t, 1, posts.Eq(1).Find(".post-text a").Length())

	require.Equal(t, "Alice </title><script>x</script>", doc.Find("header .display-name").Text())
	require.Contains(t, doc.Find("footer").Text(), "View original on Bluesky")
	desc, ok := doc.Find(`meta[name="description"]`).Attr("content")
	require.True(t, ok)
	require.Equal(t, "first <b>bold</b>", desc)
}

func TestAssembler_StreamingMatchesFullPage(t *testing.T) {
	t.Parallel()

	a := newAssembler(t)
	th := sampleThread()
	doc := render.Render(th, render.Options{})

	var full bytes.Buffer
	require.NoError(t, a.Thread(&full, doc))

	var streamed bytes.Buffer
	frame := render.Frame(th.Author, th.Root(), render.Options{})
	require.NoError(t, a.StreamOpen(&streamed, frame))
	for _, p := range th.Posts {
		require.NoError(t, a.StreamPost(&streamed, render.Post(p, th.Author)))
	}
	require.NoError(t, a.StreamClose(&streamed, frame))

	require.Equal(t, full.String(), streamed.String())
}

func TestAssembler_StreamError(t *testing.T) {
	t.Parallel()

	a := newAssembler(t)
	th := sampleThread()
	frame := render.Frame(th.Author, th.Root(), render.Options{})

	var buf bytes.Buffer
	require.NoError(t, a.StreamOpen(&buf, frame))
	require.NoError(t, a.StreamPost(&buf, render.Post(th.Posts[0], th.Author)))
	require.NoError(t, a.StreamError(&buf, "upstream <unreachable>"))

	out := buf.String()
	require.True(t, strings.HasSuffix(strings.TrimSpace(out), "</html>"))
	doc := document(t, out)
	require.Equal(t, 1, doc.Find("article.post").Length())
	require.Equal(t, "Error loading thread: upstream <unreachable>", doc.Find(".stream-error p").Text())
	href, _ := doc.Find("footer a").Attr("href")
	require.Equal(t, "/", href)
}

func TestAssembler_Fragments(t *testing.T) {
	t.Parallel()

	th := sampleThread()
	var buf bytes.Buffer
	err := newAssembler(t).Fragments(&buf, []template.HTML{
		render.Post(th.Posts[1], th.Author),
		render.Post(th.Posts[2], th.Author),
	})
	require.NoError(t, err)

	out := buf.String()
	require.NotContains(t, out, "<html")
	doc := document(t, out)
	require.Equal(t, 2, doc.Find("article.post").Length())

	buf.Reset()
	require.NoError(t, newAssembler(t).Fragments(&buf, nil))
	require.Empty(t, buf.String())
}

func TestAssembler_Landing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, newAssembler(t).Landing(&buf, `"><script>alert(1)</script>`, "That is not a Bluesky post URL"))

	doc := document(t, buf.String())
	form := doc.Find("form")
	method, _ := form.Attr("method")
	action, _ := form.Attr("action")
	require.Equal(t, "get", method)
	require.Equal(t, "/", action)
	value, _ := form.Find(`input[name="url"]`).Attr("value")
	require.Equal(t, `"><script>alert(1)</script>`, value)
	require.Equal(t, 0, doc.Find("script").Length())
	require.Equal(t, "That is not a Bluesky post URL", doc.Find(".form-error").Text())

	buf.Reset()
	require.NoError(t, newAssembler(t).Landing(&buf, "", ""))
	require.Equal(t, 0, document(t, buf.String()).Find(".form-error").Length())
}

func TestAssembler_Error(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, newAssembler(t).Error(&buf, 404, "Not Found", "The post does not exist or is not accessible."))

	doc := document(t, buf.String())
	main := doc.Find("main.error-page")
	require.Equal(t, "404", main.Find("h1").Text())
	require.Equal(t, "Not Found: The post does not exist or is not accessible.", main.Find("p").Text())
	href, _ := main.Find("a").Attr("href")
	require.Equal(t, "/", href)
	require.Equal(t, "404 Not Found - sklonger", doc.Find("title").Text())
}
