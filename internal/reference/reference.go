// Package reference parses and validates links to Bluesky posts.
package reference

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/sklonger/sklonger/internal/thread"
)

// Host is the only host accepted in post URLs.
const Host = "bsky.app"

// Reference identifies a post by its author handle (or DID) and record key.
type Reference struct {
	Handle string
	PostID string
}

// Parse validates a full post URL of the form
// https://bsky.app/profile/{handle}/post/{post-id}.
func Parse(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, fmt.Errorf("%w: empty url", thread.ErrBadInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: malformed url", thread.ErrBadInput)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Reference{}, fmt.Errorf("%w: unsupported scheme %q", thread.ErrBadInput, u.Scheme)
	}
	if u.Host != Host {
		return Reference{}, fmt.Errorf("%w: host must be %s", thread.ErrBadInput, Host)
	}
	segments := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	if len(segments) != 4 || segments[0] != "profile" || segments[2] != "post" {
		return Reference{}, fmt.Errorf("%w: path must be /profile/{handle}/post/{post-id}", thread.ErrBadInput)
	}
	return FromParts(segments[1], segments[3])
}

// FromParts validates pre-split routing parameters. handle must be an AT
// Protocol handle or DID and postID a record key.
func FromParts(handle, postID string) (Reference, error) {
	if handle == "" || postID == "" {
		return Reference{}, fmt.Errorf("%w: handle and post id are required", thread.ErrBadInput)
	}
	if _, err := syntax.ParseAtIdentifier(handle); err != nil {
		return Reference{}, fmt.Errorf("%w: invalid handle: %w", thread.ErrBadInput, err)
	}
	if _, err := syntax.ParseRecordKey(postID); err != nil {
		return Reference{}, fmt.Errorf("%w: invalid post id: %w", thread.ErrBadInput, err)
	}
	return Reference{Handle: handle, PostID: postID}, nil
}

// URL returns the canonical post URL.
func (r Reference) URL() string {
	return "https://" + Host + "/profile/" + r.Handle + "/post/" + r.PostID
}

// AtURI returns the AT URI of the post once the author DID is known.
func (r Reference) AtURI(did string) string {
	return thread.PostURI(did, r.PostID)
}
