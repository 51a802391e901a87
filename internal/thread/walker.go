package thread

import (
	"context"
	"errors"
	"fmt"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"go.uber.org/zap"
)

// DefaultMaxSteps bounds the number of upstream fetches one walk may issue.
const DefaultMaxSteps = 500

// Upstream is the read-only API the resolver depends on.
type Upstream interface {
	// ResolveHandle maps a handle to its DID.
	ResolveHandle(ctx context.Context, handle string) (string, error)
	// PostThread performs a shallow fetch of one node: one parent level and
	// immediate replies. Inaccessible posts yield ErrNotFound.
	PostThread(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error)
}

// StepObserver receives the number of fetches a finished walk used.
type StepObserver func(steps int)

// Walker finds the root of a self-reply chain and descends through it.
type Walker struct {
	upstream Upstream
	maxSteps int
	logger   *zap.Logger
	observe  StepObserver
}

// WalkerOption customizes a Walker.
type WalkerOption func(*Walker)

// WithMaxSteps overrides the fetch ceiling. Values <= 0 are ignored.
func WithMaxSteps(n int) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxSteps = n
		}
	}
}

// WithLogger sets the walker logger.
func WithLogger(logger *zap.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithStepObserver registers a callback invoked once per walk.
func WithStepObserver(fn StepObserver) WalkerOption {
	return func(w *Walker) {
		w.observe = fn
	}
}

// NewWalker builds a Walker over the given upstream.
func NewWalker(upstream Upstream, opts ...WalkerOption) *Walker {
	w := &Walker{
		upstream: upstream,
		maxSteps: DefaultMaxSteps,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// MaxSteps reports the configured fetch ceiling.
func (w *Walker) MaxSteps() int {
	return w.maxSteps
}

// Visitor receives nodes in thread order, root first. Returning an error stops
// the walk and the error is returned unchanged.
type Visitor func(node *appbsky.FeedDefs_ThreadViewPost) error

// walk holds the state of one traversal.
type walk struct {
	*Walker
	author string
	steps  int
}

// Walk resolves the chain containing anchorURI, authored by authorDID, and
// hands every node to visit. Nodes are visited as soon as they are fetched so
// callers can stream output.
func (w *Walker) Walk(ctx context.Context, anchorURI, authorDID string, visit Visitor) error {
	st := &walk{Walker: w, author: authorDID}
	defer func() {
		if w.observe != nil {
			w.observe(st.steps)
		}
	}()

	root, err := st.findRoot(ctx, anchorURI)
	if err != nil {
		return err
	}
	return st.descend(ctx, root, visit)
}

// Collect walks the chain and returns every node, root first.
func (w *Walker) Collect(ctx context.Context, anchorURI, authorDID string) ([]*appbsky.FeedDefs_ThreadViewPost, error) {
	var nodes []*appbsky.FeedDefs_ThreadViewPost
	err := w.Walk(ctx, anchorURI, authorDID, func(node *appbsky.FeedDefs_ThreadViewPost) error {
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (st *walk) fetch(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if st.steps >= st.maxSteps {
		return nil, fmt.Errorf("%w: exceeded %d fetches", ErrTraversalTooLong, st.maxSteps)
	}
	st.steps++
	node, err := st.upstream.PostThread(ctx, uri)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Post == nil || node.Post.Author == nil {
		return nil, fmt.Errorf("%w: thread node for %s has no post", ErrInvalidResponse, uri)
	}
	if node.Post.Uri != uri {
		return nil, fmt.Errorf("%w: requested %s, got %s", ErrInvalidResponse, uri, node.Post.Uri)
	}
	return node, nil
}

// findRoot walks parent links while they stay with the chain author.
func (st *walk) findRoot(ctx context.Context, anchorURI string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	current, err := st.fetch(ctx, anchorURI)
	if err != nil {
		return nil, fmt.Errorf("fetch anchor: %w", err)
	}
	if current.Post.Author.Did != st.author {
		return nil, fmt.Errorf("%w: anchor %s is not authored by %s", ErrInvalidResponse, anchorURI, st.author)
	}

	for {
		parentURI, ok := st.sameAuthorParent(current)
		if !ok {
			return current, nil
		}
		parent, err := st.fetch(ctx, parentURI)
		switch {
		case errors.Is(err, ErrNotFound):
			st.logger.Debug("ancestor inaccessible, treating current post as root",
				zap.String("uri", parentURI))
			return current, nil
		case err != nil:
			return nil, fmt.Errorf("fetch ancestor: %w", err)
		}
		if parent.Post.Author.Did != st.author {
			return current, nil
		}
		current = parent
	}
}

func (st *walk) sameAuthorParent(node *appbsky.FeedDefs_ThreadViewPost) (string, bool) {
	if node.Parent == nil || node.Parent.FeedDefs_ThreadViewPost == nil {
		return "", false
	}
	parent := node.Parent.FeedDefs_ThreadViewPost.Post
	if parent == nil || parent.Author == nil || parent.Uri == "" {
		return "", false
	}
	return parent.Uri, parent.Author.Did == st.author
}

// descend emits root and then follows the first same-author reply at each level.
func (st *walk) descend(ctx context.Context, root *appbsky.FeedDefs_ThreadViewPost, visit Visitor) error {
	seen := map[string]struct{}{root.Post.Uri: {}}
	if err := visit(root); err != nil {
		return err
	}

	current := root
	for {
		childURI, ok := st.firstSameAuthorReply(current)
		if !ok {
			return nil
		}
		if _, dup := seen[childURI]; dup {
			return fmt.Errorf("%w: reply chain revisits %s", ErrTraversalTooLong, childURI)
		}
		child, err := st.fetch(ctx, childURI)
		switch {
		case errors.Is(err, ErrNotFound):
			st.logger.Debug("self-reply inaccessible, ending thread",
				zap.String("uri", childURI), zap.Int("posts", len(seen)))
			return nil
		case err != nil:
			return fmt.Errorf("fetch reply: %w", err)
		}
		if child.Post.Author.Did != st.author {
			return fmt.Errorf("%w: reply %s changed author", ErrInvalidResponse, childURI)
		}
		seen[childURI] = struct{}{}
		if err := visit(child); err != nil {
			return err
		}
		current = child
	}
}

// firstSameAuthorReply applies the first-listed-wins tie-break. Replies that
// are not visible posts are skipped.
func (st *walk) firstSameAuthorReply(node *appbsky.FeedDefs_ThreadViewPost) (string, bool) {
	for _, reply := range node.Replies {
		if reply == nil || reply.FeedDefs_ThreadViewPost == nil {
			continue
		}
		post := reply.FeedDefs_ThreadViewPost.Post
		if post == nil || post.Author == nil || post.Uri == "" {
			continue
		}
		if post.Author.Did == st.author {
			return post.Uri, true
		}
	}
	return "", false
}
