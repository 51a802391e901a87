package api

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sklonger/sklonger/internal/metrics"
	"github.com/sklonger/sklonger/internal/reference"
	"github.com/sklonger/sklonger/internal/render"
	"github.com/sklonger/sklonger/internal/thread"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	threadCacheTTL  = "public, max-age=60"
)

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("url") != "" {
		s.threadFromURL(w, r)
		return
	}
	var buf bytes.Buffer
	if err := s.pages.Landing(&buf, "", ""); err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func (s *Server) threadFromURL(w http.ResponseWriter, r *http.Request) {
	ref, err := reference.Parse(r.URL.Query().Get("url"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveThread(w, r, ref)
}

func (s *Server) threadFromPath(w http.ResponseWriter, r *http.Request) {
	ref, err := reference.FromParts(chi.URLParam(r, "handle"), chi.URLParam(r, "post_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveThread(w, r, ref)
}

func (s *Server) serveThread(w http.ResponseWriter, r *http.Request, ref reference.Reference) {
	if s.cfg.Server.Streaming {
		s.streamThread(w, r, ref)
		return
	}

	th, err := s.threads.Resolve(r.Context(), ref.Handle, ref.PostID)
	metrics.ObserveThread(thread.Label(err), len(th.Posts))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.pages.Thread(&buf, render.Render(th, s.renderOptions(ref))); err != nil {
		s.fail(w, r, err)
		return
	}

	etag := s.hasher.ETag(buf.Bytes())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", threadCacheTTL)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// streamThread writes the page shell as soon as the root is known and each
// post as it is walked. Failures before the first byte produce a normal error
// page; later failures close the document with an inline notice.
func (s *Server) streamThread(w http.ResponseWriter, r *http.Request, ref reference.Reference) {
	sink := &streamSink{server: s, w: w, opts: s.renderOptions(ref)}
	sink.flusher, _ = w.(http.Flusher)

	err := s.threads.Stream(r.Context(), ref.Handle, ref.PostID, sink)
	metrics.ObserveThread(thread.Label(err), sink.posts)
	if err != nil {
		if !sink.started {
			s.fail(w, r, err)
			return
		}
		f := failureFor(err)
		s.logFailure(r, f, err)
		if werr := s.pages.StreamError(w, f.message); werr != nil {
			s.logger.Warn("write stream error", zap.Error(werr))
		}
		return
	}
	if err := s.pages.StreamClose(w, sink.frame); err != nil {
		s.logger.Warn("write stream close", zap.Error(err))
	}
	sink.flush()
}

type streamSink struct {
	server  *Server
	w       http.ResponseWriter
	flusher http.Flusher
	opts    render.Options
	frame   render.Document
	author  thread.Author
	started bool
	posts   int
}

func (k *streamSink) Start(author thread.Author, root thread.Post) error {
	k.author = author
	k.frame = render.Frame(author, root, k.opts)
	k.w.Header().Set("Content-Type", htmlContentType)
	k.w.Header().Set("Cache-Control", "no-cache")
	k.w.WriteHeader(http.StatusOK)
	k.started = true
	if err := k.server.pages.StreamOpen(k.w, k.frame); err != nil {
		return err
	}
	k.flush()
	return nil
}

func (k *streamSink) Post(p thread.Post) error {
	if err := k.server.pages.StreamPost(k.w, render.Post(p, k.author)); err != nil {
		return err
	}
	k.posts++
	k.flush()
	return nil
}

func (k *streamSink) flush() {
	if k.flusher != nil {
		k.flusher.Flush()
	}
}

// threadUpdates returns the posts appended after since_cid as bare fragments.
func (s *Server) threadUpdates(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Poll.Enabled {
		writeError(w, http.StatusNotFound, "polling is disabled")
		return
	}
	q := r.URL.Query()
	ref, err := reference.FromParts(q.Get("handle"), q.Get("post_id"))
	if err != nil {
		f := failureFor(err)
		writeError(w, f.status, f.message)
		return
	}

	th, err := s.threads.Resolve(r.Context(), ref.Handle, ref.PostID)
	metrics.ObserveThread(thread.Label(err), len(th.Posts))
	if err != nil {
		f := failureFor(err)
		s.logFailure(r, f, err)
		writeError(w, f.status, f.message)
		return
	}

	last := th.Last()
	w.Header().Set("X-Last-CID", last.CID)
	w.Header().Set("X-Poll-Interval", strconv.Itoa(int(s.pollInterval(last).Seconds())))
	w.Header().Set("Cache-Control", "no-store")

	posts := th.PostsAfter(q.Get("since_cid"))
	if len(posts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	fragments := make([]template.HTML, 0, len(posts))
	for _, p := range posts {
		fragments = append(fragments, render.Post(p, th.Author))
	}
	var buf bytes.Buffer
	if err := s.pages.Fragments(&buf, fragments); err != nil {
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// pollInterval suggests how long a client should wait before asking again.
// Recent threads are polled at the initial interval; older ones back off
// towards the maximum. Zero means the thread is old enough to stop polling.
func (s *Server) pollInterval(last thread.Post) time.Duration {
	initial, max, disableAfter := s.cfg.PollIntervals()
	if last.CreatedAt.IsZero() {
		return initial
	}
	age := s.clock.Now().Sub(last.CreatedAt)
	if disableAfter > 0 && age >= disableAfter {
		return 0
	}
	interval := age / 10
	if interval < initial {
		interval = initial
	}
	if interval > max {
		interval = max
	}
	return interval
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	s.renderError(w, http.StatusNotFound, "Not Found", "There is nothing at this address.")
}

func (s *Server) renderOptions(ref reference.Reference) render.Options {
	base := strings.TrimRight(s.cfg.Server.PublicURL, "/")
	if base == "" {
		return render.Options{}
	}
	return render.Options{CanonicalURL: base + "/profile/" + ref.Handle + "/post/" + ref.PostID}
}

// fail maps err onto a status and writes the error page. Upstream details are
// logged, never shown.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := failureFor(err)
	s.logFailure(r, f, err)
	s.renderError(w, f.status, f.heading, f.message)
}

func (s *Server) logFailure(r *http.Request, f failure, err error) {
	fields := []zap.Field{
		zap.Int("status", f.status),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestID(r.Context())),
		zap.Error(err),
	}
	if f.status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
		return
	}
	s.logger.Warn("request failed", fields...)
}

func (s *Server) renderError(w http.ResponseWriter, status int, heading, message string) {
	var buf bytes.Buffer
	if err := s.pages.Error(&buf, status, heading, message); err != nil {
		s.logger.Error("render error page", zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", htmlContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// etagMatches implements the weak comparison If-None-Match requires.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
