package thread

import (
	"fmt"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

// Extract converts one upstream thread node into a Post. It performs no I/O.
func Extract(node *appbsky.FeedDefs_ThreadViewPost) (Post, error) {
	if node == nil || node.Post == nil {
		return Post{}, fmt.Errorf("%w: thread node without post", ErrInvalidResponse)
	}
	view := node.Post
	if view.Uri == "" || view.Cid == "" {
		return Post{}, fmt.Errorf("%w: post missing uri or cid", ErrInvalidResponse)
	}
	if view.Record == nil {
		return Post{}, fmt.Errorf("%w: post %s has no record", ErrInvalidResponse, view.Uri)
	}
	record, ok := view.Record.Val.(*appbsky.FeedPost)
	if !ok || record == nil {
		return Post{}, fmt.Errorf("%w: post %s record is not app.bsky.feed.post", ErrInvalidResponse, view.Uri)
	}
	createdAt, err := parseTimestamp(record.CreatedAt)
	if err != nil {
		return Post{}, fmt.Errorf("%w: post %s: %w", ErrInvalidResponse, view.Uri, err)
	}

	post := Post{
		URI:         view.Uri,
		CID:         view.Cid,
		Text:        record.Text,
		CreatedAt:   createdAt,
		ReplyCount:  copyCount(view.ReplyCount),
		RepostCount: copyCount(view.RepostCount),
		LikeCount:   copyCount(view.LikeCount),
		QuoteCount:  copyCount(view.QuoteCount),
		Langs:       append([]string(nil), record.Langs...),
	}
	if view.Embed != nil {
		embed, err := extractEmbed(view.Embed)
		if err != nil {
			return Post{}, fmt.Errorf("%w: post %s: %w", ErrInvalidResponse, view.Uri, err)
		}
		post.Embed = embed
		post.Quote = extractQuote(view.Embed)
	}
	return post, nil
}

// ExtractAuthor converts an upstream profile view into an Author.
func ExtractAuthor(profile *appbsky.ActorDefs_ProfileViewBasic) (Author, error) {
	if profile == nil || profile.Did == "" || profile.Handle == "" {
		return Author{}, fmt.Errorf("%w: author missing did or handle", ErrInvalidResponse)
	}
	return Author{
		DID:         profile.Did,
		Handle:      profile.Handle,
		DisplayName: deref(profile.DisplayName),
		AvatarURL:   deref(profile.Avatar),
	}, nil
}

func extractEmbed(view *appbsky.FeedDefs_PostView_Embed) (Embed, error) {
	switch {
	case view.EmbedImages_View != nil:
		return imageSet(view.EmbedImages_View)
	case view.EmbedVideo_View != nil:
		return video(view.EmbedVideo_View)
	case view.EmbedExternal_View != nil:
		return external(view.EmbedExternal_View)
	case view.EmbedRecordWithMedia_View != nil:
		media := view.EmbedRecordWithMedia_View.Media
		if media == nil {
			return nil, nil
		}
		switch {
		case media.EmbedImages_View != nil:
			return imageSet(media.EmbedImages_View)
		case media.EmbedVideo_View != nil:
			return video(media.EmbedVideo_View)
		case media.EmbedExternal_View != nil:
			return external(media.EmbedExternal_View)
		}
	}
	return nil, nil
}

func imageSet(view *appbsky.EmbedImages_View) (Embed, error) {
	images := make([]Image, 0, len(view.Images))
	for _, img := range view.Images {
		if img == nil {
			continue
		}
		if img.Thumb == "" || img.Fullsize == "" {
			return nil, fmt.Errorf("image embed missing thumb or fullsize url")
		}
		image := Image{
			ThumbURL:    img.Thumb,
			FullsizeURL: img.Fullsize,
			Alt:         img.Alt,
		}
		if img.AspectRatio != nil {
			image.AspectRatio = aspect(img.AspectRatio.Width, img.AspectRatio.Height)
		}
		images = append(images, image)
	}
	if len(images) == 0 {
		return nil, nil
	}
	return ImageSet{Images: images}, nil
}

func video(view *appbsky.EmbedVideo_View) (Embed, error) {
	if view.Playlist == "" {
		return nil, fmt.Errorf("video embed missing playlist")
	}
	v := Video{
		PlaylistURL:  view.Playlist,
		ThumbnailURL: deref(view.Thumbnail),
		Alt:          deref(view.Alt),
	}
	if view.AspectRatio != nil {
		v.AspectRatio = aspect(view.AspectRatio.Width, view.AspectRatio.Height)
	}
	return v, nil
}

func external(view *appbsky.EmbedExternal_View) (Embed, error) {
	ext := view.External
	if ext == nil || ext.Uri == "" {
		return nil, fmt.Errorf("external embed missing uri")
	}
	return ExternalLink{
		URI:         ext.Uri,
		Title:       ext.Title,
		Description: ext.Description,
		ThumbURL:    deref(ext.Thumb),
	}, nil
}

// extractQuote returns the quoted post preview, or nil when the quote is
// missing, blocked, detached or malformed.
func extractQuote(view *appbsky.FeedDefs_PostView_Embed) *QuotedPost {
	var record *appbsky.EmbedRecord_View
	switch {
	case view.EmbedRecord_View != nil:
		record = view.EmbedRecord_View
	case view.EmbedRecordWithMedia_View != nil:
		record = view.EmbedRecordWithMedia_View.Record
	}
	if record == nil || record.Record == nil || record.Record.EmbedRecord_ViewRecord == nil {
		return nil
	}
	quoted := record.Record.EmbedRecord_ViewRecord
	author, err := ExtractAuthor(quoted.Author)
	if err != nil || quoted.Value == nil {
		return nil
	}
	value, ok := quoted.Value.Val.(*appbsky.FeedPost)
	if !ok || value == nil {
		return nil
	}
	createdAt, err := parseTimestamp(value.CreatedAt)
	if err != nil {
		return nil
	}
	q := &QuotedPost{
		URI:       quoted.Uri,
		Author:    author,
		Text:      value.Text,
		CreatedAt: createdAt,
	}
	for _, nested := range quoted.Embeds {
		if nested == nil {
			continue
		}
		var embed Embed
		switch {
		case nested.EmbedImages_View != nil:
			embed, err = imageSet(nested.EmbedImages_View)
		case nested.EmbedVideo_View != nil:
			embed, err = video(nested.EmbedVideo_View)
		case nested.EmbedExternal_View != nil:
			embed, err = external(nested.EmbedExternal_View)
		}
		if err == nil && embed != nil {
			q.Embed = embed
			break
		}
	}
	return q
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing createdAt")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func aspect(width, height int64) *AspectRatio {
	if width <= 0 || height <= 0 {
		return nil
	}
	return &AspectRatio{Width: width, Height: height}
}

func copyCount(src *int64) *int64 {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
