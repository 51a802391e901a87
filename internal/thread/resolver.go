package thread

import (
	"context"
	"fmt"
	"strings"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"go.uber.org/zap"
)

// Sink consumes a thread as it is resolved. Start is called once with the
// author and root post, then Post is called for every post including the root.
type Sink interface {
	Start(author Author, root Post) error
	Post(post Post) error
}

// Resolver turns a handle and post record key into a Thread.
type Resolver struct {
	upstream Upstream
	walker   *Walker
	logger   *zap.Logger
}

// NewResolver wires a resolver over upstream using walker for traversal.
func NewResolver(upstream Upstream, walker *Walker, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{upstream: upstream, walker: walker, logger: logger}
}

// ResolveIdentity maps a handle to a DID. DIDs are returned unchanged.
func (r *Resolver) ResolveIdentity(ctx context.Context, handle string) (string, error) {
	if strings.HasPrefix(handle, "did:") {
		return handle, nil
	}
	did, err := r.upstream.ResolveHandle(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	if !strings.HasPrefix(did, "did:") {
		return "", fmt.Errorf("%w: handle %s resolved to %q", ErrInvalidResponse, handle, did)
	}
	return did, nil
}

// Resolve returns the full thread containing the post.
func (r *Resolver) Resolve(ctx context.Context, handle, postID string) (Thread, error) {
	var c collector
	if err := r.Stream(ctx, handle, postID, &c); err != nil {
		return Thread{}, err
	}
	return Thread{Author: c.author, Posts: c.posts}, nil
}

// Stream resolves the thread and feeds each post to sink in order.
func (r *Resolver) Stream(ctx context.Context, handle, postID string, sink Sink) error {
	did, err := r.ResolveIdentity(ctx, handle)
	if err != nil {
		return err
	}
	anchor := PostURI(did, postID)

	started := false
	count := 0
	err = r.walker.Walk(ctx, anchor, did, func(node *appbsky.FeedDefs_ThreadViewPost) error {
		post, err := Extract(node)
		if err != nil {
			return err
		}
		if !started {
			author, err := ExtractAuthor(node.Post.Author)
			if err != nil {
				return err
			}
			if err := sink.Start(author, post); err != nil {
				return err
			}
			started = true
		}
		count++
		return sink.Post(post)
	})
	if err != nil {
		return err
	}
	r.logger.Debug("thread resolved",
		zap.String("anchor", anchor),
		zap.Int("posts", count),
	)
	return nil
}

// postCollection is the NSID of post records.
const postCollection = syntax.NSID("app.bsky.feed.post")

// PostURI builds the AT URI of a post record.
func PostURI(did, rkey string) string {
	return syntax.ATURI(fmt.Sprintf("at://%s/%s/%s", did, postCollection, rkey)).String()
}

type collector struct {
	author Author
	posts  []Post
}

func (c *collector) Start(author Author, _ Post) error {
	c.author = author
	return nil
}

func (c *collector) Post(post Post) error {
	c.posts = append(c.posts, post)
	return nil
}
