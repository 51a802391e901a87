package thread

import (
	"encoding/json"
	"testing"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/stretchr/testify/require"
)

func basePost(embed *appbsky.FeedDefs_PostView_Embed) *appbsky.FeedDefs_ThreadViewPost {
	return &appbsky.FeedDefs_ThreadViewPost{Post: &appbsky.FeedDefs_PostView{
		Uri:    PostURI(alice, "3kabc"),
		Cid:    "bafyreiabc",
		Author: &appbsky.ActorDefs_ProfileViewBasic{Did: alice, Handle: "alice.test"},
		Record: &lexutil.LexiconTypeDecoder{Val: &appbsky.FeedPost{
			Text:      "hello <world>",
			CreatedAt: "2024-05-01T12:30:00.123Z",
			Langs:     []string{"en", "de"},
		}},
		Embed: embed,
	}}
}

func TestExtract_CopiesCoreFields(t *testing.T) {
	t.Parallel()

	node := basePost(nil)
	node.Post.LikeCount = ptr(int64(4))
	node.Post.ReplyCount = ptr(int64(0))

	post, err := Extract(node)

	require.NoError(t, err)
	require.Equal(t, PostURI(alice, "3kabc"), post.URI)
	require.Equal(t, "3kabc", post.RecordKey())
	require.Equal(t, "bafyreiabc", post.CID)
	require.Equal(t, "hello <world>", post.Text)
	require.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC), post.CreatedAt)
	require.Equal(t, []string{"en", "de"}, post.Langs)
	require.Nil(t, post.Embed)
	require.Nil(t, post.Quote)
}

func TestExtract_PreservesAbsentCounters(t *testing.T) {
	t.Parallel()

	node := basePost(nil)
	node.Post.LikeCount = ptr(int64(0))

	post, err := Extract(node)

	require.NoError(t, err)
	require.NotNil(t, post.LikeCount)
	require.Equal(t, int64(0), *post.LikeCount)
	require.Nil(t, post.RepostCount)
	require.Nil(t, post.ReplyCount)
	require.Nil(t, post.QuoteCount)
}

func TestExtract_InvalidNodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*appbsky.FeedDefs_ThreadViewPost)
	}{
		{name: "malformed timestamp", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Record.Val.(*appbsky.FeedPost).CreatedAt = "yesterday"
		}},
		{name: "missing timestamp", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Record.Val.(*appbsky.FeedPost).CreatedAt = ""
		}},
		{name: "missing record", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Record = nil
		}},
		{name: "foreign record type", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Record = &lexutil.LexiconTypeDecoder{Val: &appbsky.FeedLike{}}
		}},
		{name: "missing cid", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Cid = ""
		}},
		{name: "missing post", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post = nil
		}},
		{name: "video without playlist", mutate: func(n *appbsky.FeedDefs_ThreadViewPost) {
			n.Post.Embed = &appbsky.FeedDefs_PostView_Embed{EmbedVideo_View: &appbsky.EmbedVideo_View{}}
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			node := basePost(nil)
			tt.mutate(node)
			_, err := Extract(node)
			require.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestExtract_ImageSet(t *testing.T) {
	t.Parallel()

	node := basePost(&appbsky.FeedDefs_PostView_Embed{EmbedImages_View: &appbsky.EmbedImages_View{
		Images: []*appbsky.EmbedImages_ViewImage{
			{
				Thumb:       "https://cdn.test/thumb/1",
				Fullsize:    "https://cdn.test/full/1",
				Alt:         "a cat",
				AspectRatio: &appbsky.EmbedDefs_AspectRatio{Width: 4, Height: 3},
			},
			{Thumb: "https://cdn.test/thumb/2", Fullsize: "https://cdn.test/full/2"},
		},
	}})

	post, err := Extract(node)

	require.NoError(t, err)
	set, ok := post.Embed.(ImageSet)
	require.True(t, ok)
	require.Len(t, set.Images, 2)
	require.Equal(t, "a cat", set.Images[0].Alt)
	require.Equal(t, &AspectRatio{Width: 4, Height: 3}, set.Images[0].AspectRatio)
	require.Nil(t, set.Images[1].AspectRatio)
}

func TestExtract_EmptyImageSetIsNoEmbed(t *testing.T) {
	t.Parallel()

	post, err := Extract(basePost(&appbsky.FeedDefs_PostView_Embed{
		EmbedImages_View: &appbsky.EmbedImages_View{},
	}))

	require.NoError(t, err)
	require.Nil(t, post.Embed)
}

func TestExtract_Video(t *testing.T) {
	t.Parallel()

	post, err := Extract(basePost(&appbsky.FeedDefs_PostView_Embed{EmbedVideo_View: &appbsky.EmbedVideo_View{
		Playlist:  "https://video.test/playlist.m3u8",
		Thumbnail: ptr("https://video.test/thumb.jpg"),
	}}))

	require.NoError(t, err)
	require.Equal(t, Video{
		PlaylistURL:  "https://video.test/playlist.m3u8",
		ThumbnailURL: "https://video.test/thumb.jpg",
	}, post.Embed)
}

func TestExtract_External(t *testing.T) {
	t.Parallel()

	post, err := Extract(basePost(&appbsky.FeedDefs_PostView_Embed{EmbedExternal_View: &appbsky.EmbedExternal_View{
		External: &appbsky.EmbedExternal_ViewExternal{
			Uri:         "https://example.com/article",
			Title:       "An article",
			Description: "About things",
		},
	}}))

	require.NoError(t, err)
	require.Equal(t, ExternalLink{
		URI:         "https://example.com/article",
		Title:       "An article",
		Description: "About things",
	}, post.Embed)
}

func TestExtract_RecordWithMediaUsesMediaAndQuote(t *testing.T) {
	t.Parallel()

	quoted := &appbsky.EmbedRecord_ViewRecord{
		Uri:    PostURI(bob, "q1"),
		Cid:    "bafyq",
		Author: &appbsky.ActorDefs_ProfileViewBasic{Did: bob, Handle: "bob.test", DisplayName: ptr("Bob")},
		Value: &lexutil.LexiconTypeDecoder{Val: &appbsky.FeedPost{
			Text:      "quoted text",
			CreatedAt: "2024-04-01T08:00:00Z",
		}},
		Embeds: []*appbsky.EmbedRecord_ViewRecord_Embeds_Elem{
			{EmbedExternal_View: &appbsky.EmbedExternal_View{External: &appbsky.EmbedExternal_ViewExternal{
				Uri: "https://example.org", Title: "Org",
			}}},
		},
	}
	node := basePost(&appbsky.FeedDefs_PostView_Embed{EmbedRecordWithMedia_View: &appbsky.EmbedRecordWithMedia_View{
		Media: &appbsky.EmbedRecordWithMedia_View_Media{EmbedVideo_View: &appbsky.EmbedVideo_View{
			Playlist: "https://video.test/p.m3u8",
		}},
		Record: &appbsky.EmbedRecord_View{Record: &appbsky.EmbedRecord_View_Record{
			EmbedRecord_ViewRecord: quoted,
		}},
	}})

	post, err := Extract(node)

	require.NoError(t, err)
	require.Equal(t, Video{PlaylistURL: "https://video.test/p.m3u8"}, post.Embed)
	require.NotNil(t, post.Quote)
	require.Equal(t, "Bob", post.Quote.Author.Name())
	require.Equal(t, "quoted text", post.Quote.Text)
	require.Equal(t, "q1", post.Quote.RecordKey())
	require.Equal(t, ExternalLink{URI: "https://example.org", Title: "Org"}, post.Quote.Embed)
}

func TestExtract_BlockedQuoteIsDropped(t *testing.T) {
	t.Parallel()

	post, err := Extract(basePost(&appbsky.FeedDefs_PostView_Embed{EmbedRecord_View: &appbsky.EmbedRecord_View{
		Record: &appbsky.EmbedRecord_View_Record{
			EmbedRecord_ViewBlocked: &appbsky.EmbedRecord_ViewBlocked{Blocked: true, Uri: PostURI(bob, "x")},
		},
	}}))

	require.NoError(t, err)
	require.Nil(t, post.Embed)
	require.Nil(t, post.Quote)
}

func TestExtract_DecodedLexiconPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"$type": "app.bsky.feed.defs#threadViewPost",
		"post": {
			"uri": "at://did:plc:alice/app.bsky.feed.post/3kxyz",
			"cid": "bafyxyz",
			"author": {"did": "did:plc:alice", "handle": "alice.test", "avatar": "https://cdn.test/a.jpg"},
			"record": {"$type": "app.bsky.feed.post", "text": "decoded", "createdAt": "2024-06-01T10:00:00Z"},
			"embed": {
				"$type": "app.bsky.embed.external#view",
				"external": {"uri": "https://example.net", "title": "Net", "description": ""}
			},
			"repostCount": 2,
			"indexedAt": "2024-06-01T10:00:01Z"
		},
		"replies": []
	}`
	var node appbsky.FeedDefs_ThreadViewPost
	require.NoError(t, json.Unmarshal([]byte(payload), &node))

	post, err := Extract(&node)
	require.NoError(t, err)
	require.Equal(t, "decoded", post.Text)
	require.Equal(t, int64(2), *post.RepostCount)
	require.Nil(t, post.LikeCount)
	require.Equal(t, ExternalLink{URI: "https://example.net", Title: "Net"}, post.Embed)

	author, err := ExtractAuthor(node.Post.Author)
	require.NoError(t, err)
	require.Equal(t, Author{DID: alice, Handle: "alice.test", AvatarURL: "https://cdn.test/a.jpg"}, author)
	require.Equal(t, "alice.test", author.Name())
}

func TestExtractAuthor_RequiresIdentity(t *testing.T) {
	t.Parallel()

	_, err := ExtractAuthor(&appbsky.ActorDefs_ProfileViewBasic{Handle: "alice.test"})
	require.ErrorIs(t, err, ErrInvalidResponse)
	_, err = ExtractAuthor(nil)
	require.ErrorIs(t, err, ErrInvalidResponse)
}
