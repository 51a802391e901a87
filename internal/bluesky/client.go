// Package bluesky implements the upstream AppView client used to resolve threads.
package bluesky

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"

	"github.com/sklonger/sklonger/internal/metrics"
	"github.com/sklonger/sklonger/internal/thread"
)

const (
	endpointResolveHandle = "resolveHandle"
	endpointPostThread    = "getPostThread"

	// Shallow fetch bounds: one ancestor level and immediate replies only.
	parentHeight = 1
	replyDepth   = 1
)

// Config controls the upstream client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to a Bluesky AppView over XRPC. It is safe for concurrent use.
type Client struct {
	xrpc    *xrpc.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Client. A nil transport falls back to a pooled default.
func New(cfg Config, transport http.RoundTripper, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bluesky base url is required")
	}
	if transport == nil {
		transport = NewTransport()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &xrpc.Client{
		Client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		Host:   strings.TrimRight(cfg.BaseURL, "/"),
	}
	if cfg.UserAgent != "" {
		ua := cfg.UserAgent
		c.UserAgent = &ua
	}
	return &Client{xrpc: c, timeout: cfg.Timeout, logger: logger}, nil
}

// ResolveHandle maps a handle to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := comatproto.IdentityResolveHandle(ctx, c.xrpc, handle)
	if err != nil {
		err = classify(err, true)
		c.observe(endpointResolveHandle, err, start)
		c.logFailure(endpointResolveHandle, handle, err)
		return "", err
	}
	if out == nil || out.Did == "" {
		err = fmt.Errorf("%w: empty did for %s", thread.ErrInvalidResponse, handle)
		c.observe(endpointResolveHandle, err, start)
		return "", err
	}
	c.observe(endpointResolveHandle, nil, start)
	return out.Did, nil
}

// PostThread performs a shallow getPostThread call for uri.
func (c *Client) PostThread(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := appbsky.FeedGetPostThread(ctx, c.xrpc, replyDepth, parentHeight, uri)
	if err != nil {
		err = classify(err, false)
		c.observe(endpointPostThread, err, start)
		c.logFailure(endpointPostThread, uri, err)
		return nil, err
	}
	node, err := threadNode(out, uri)
	c.observe(endpointPostThread, err, start)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(endpoint string, err error, start time.Time) {
	metrics.ObserveUpstream(endpoint, thread.Label(err), time.Since(start))
}

func (c *Client) logFailure(endpoint, target string, err error) {
	c.logger.Warn("upstream request failed",
		zap.String("endpoint", endpoint),
		zap.String("target", target),
		zap.Error(err),
	)
}

// threadNode unwraps the thread union and validates the fields the walker relies on.
func threadNode(out *appbsky.FeedGetPostThread_Output, uri string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	if out == nil || out.Thread == nil {
		return nil, fmt.Errorf("%w: empty thread for %s", thread.ErrInvalidResponse, uri)
	}
	switch {
	case out.Thread.FeedDefs_NotFoundPost != nil:
		return nil, fmt.Errorf("%w: post %s not found", thread.ErrNotFound, uri)
	case out.Thread.FeedDefs_BlockedPost != nil:
		return nil, fmt.Errorf("%w: post %s is blocked", thread.ErrNotFound, uri)
	case out.Thread.FeedDefs_ThreadViewPost == nil:
		return nil, fmt.Errorf("%w: unsupported thread type for %s", thread.ErrInvalidResponse, uri)
	}
	node := out.Thread.FeedDefs_ThreadViewPost
	if err := validatePostView(node.Post); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", thread.ErrInvalidResponse, uri, err)
	}
	if node.Parent != nil && node.Parent.FeedDefs_ThreadViewPost != nil {
		if err := validatePostView(node.Parent.FeedDefs_ThreadViewPost.Post); err != nil {
			return nil, fmt.Errorf("%w: parent of %s: %w", thread.ErrInvalidResponse, uri, err)
		}
	}
	for _, reply := range node.Replies {
		if reply == nil || reply.FeedDefs_ThreadViewPost == nil {
			continue
		}
		if err := validatePostView(reply.FeedDefs_ThreadViewPost.Post); err != nil {
			return nil, fmt.Errorf("%w: reply of %s: %w", thread.ErrInvalidResponse, uri, err)
		}
	}
	return node, nil
}

func validatePostView(view *appbsky.FeedDefs_PostView) error {
	switch {
	case view == nil:
		return fmt.Errorf("missing post")
	case view.Uri == "" || view.Cid == "":
		return fmt.Errorf("post missing uri or cid")
	case view.Author == nil || view.Author.Did == "" || view.Author.Handle == "":
		return fmt.Errorf("post %s missing author", view.Uri)
	case view.Record == nil:
		return fmt.Errorf("post %s missing record", view.Uri)
	}
	return nil
}

// NewTransport returns a pooled transport shared by all requests.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
