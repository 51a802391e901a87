// Package thread defines the domain model for self-reply threads along with the
// walker and extractor that build it from upstream data.
package thread

import (
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Author is the account that wrote every post in a thread.
type Author struct {
	DID         string
	Handle      string
	DisplayName string
	AvatarURL   string
}

// Name returns the display name, falling back to the handle.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

// Post is a single entry of a resolved thread.
type Post struct {
	URI         string
	CID         string
	Text        string
	CreatedAt   time.Time
	ReplyCount  *int64
	RepostCount *int64
	LikeCount   *int64
	QuoteCount  *int64
	Embed       Embed
	Quote       *QuotedPost
	Langs       []string
}

// RecordKey returns the last path segment of the post URI.
func (p Post) RecordKey() string {
	return recordKey(p.URI)
}

// QuotedPost is a preview of a post referenced by a record embed.
type QuotedPost struct {
	URI       string
	Author    Author
	Text      string
	CreatedAt time.Time
	Embed     Embed
}

// RecordKey returns the last path segment of the quoted post URI.
func (q QuotedPost) RecordKey() string {
	return recordKey(q.URI)
}

// Embed is the media attached to a post. Only ImageSet, Video and
// ExternalLink implement it.
type Embed interface {
	embed()
}

// AspectRatio is an intrinsic width/height pair supplied by the uploader.
type AspectRatio struct {
	Width  int64
	Height int64
}

// Image is one entry of an ImageSet.
type Image struct {
	ThumbURL    string
	FullsizeURL string
	Alt         string
	AspectRatio *AspectRatio
}

// ImageSet is a gallery of one or more images.
type ImageSet struct {
	Images []Image
}

// Video is an HLS stream with an optional poster.
type Video struct {
	PlaylistURL  string
	ThumbnailURL string
	Alt          string
	AspectRatio  *AspectRatio
}

// ExternalLink is a link card.
type ExternalLink struct {
	URI         string
	Title       string
	Description string
	ThumbURL    string
}

func (ImageSet) embed()     {}
func (Video) embed()        {}
func (ExternalLink) embed() {}

// Thread is a root-first chain of posts by a single author.
type Thread struct {
	Author Author
	Posts  []Post
}

// Root returns the first post of the thread.
func (t Thread) Root() Post {
	if len(t.Posts) == 0 {
		return Post{}
	}
	return t.Posts[0]
}

// Last returns the final post of the thread.
func (t Thread) Last() Post {
	if len(t.Posts) == 0 {
		return Post{}
	}
	return t.Posts[len(t.Posts)-1]
}

// PostsAfter returns the posts that follow the post with the given CID. When
// the CID is not part of the thread every post is returned.
func (t Thread) PostsAfter(cid string) []Post {
	for i, p := range t.Posts {
		if p.CID == cid {
			return t.Posts[i+1:]
		}
	}
	return t.Posts
}

// recordKey returns the record key of an AT URI. Values that do not parse
// fall back to their last path segment.
func recordKey(uri string) string {
	if aturi, err := syntax.ParseATURI(uri); err == nil {
		if rkey := aturi.RecordKey(); rkey != "" {
			return rkey.String()
		}
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
