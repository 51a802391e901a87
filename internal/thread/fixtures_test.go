package thread

import (
	"context"
	"fmt"
	"sync"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
)

const (
	alice = "did:plc:alice"
	bob   = "did:plc:bob"
)

// --- helpers/fakes ---

type fakeNode struct {
	did     string
	parent  string
	replies []string
	text    string
	langs   []string
	// servedDID, when set, is the author reported when the node itself is
	// fetched, while listings in other nodes keep did.
	servedDID string
}

// fakeUpstream serves a synthetic post graph keyed by record key.
type fakeUpstream struct {
	mu      sync.Mutex
	nodes   map[string]fakeNode
	handles map[string]string
	errs    map[string]error
	calls   []string
	onFetch func(uri string)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nodes:   map[string]fakeNode{},
		handles: map[string]string{"alice.test": alice, "bob.test": bob},
		errs:    map[string]error{},
	}
}

func (f *fakeUpstream) add(rkey string, n fakeNode) {
	f.nodes[f.uri(n.did, rkey)] = n
}

func (f *fakeUpstream) uri(did, rkey string) string {
	return PostURI(did, rkey)
}

// chain links rkeys as a straight self-reply chain by did.
func (f *fakeUpstream) chain(did string, rkeys ...string) {
	for i, rkey := range rkeys {
		n := fakeNode{did: did, text: "post " + rkey}
		if i > 0 {
			n.parent = f.uri(did, rkeys[i-1])
		}
		if i+1 < len(rkeys) {
			n.replies = []string{f.uri(did, rkeys[i+1])}
		}
		f.add(rkey, n)
	}
}

func (f *fakeUpstream) ResolveHandle(_ context.Context, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "resolve:"+handle)
	if err, ok := f.errs[handle]; ok {
		return "", err
	}
	did, ok := f.handles[handle]
	if !ok {
		return "", fmt.Errorf("%w: unknown handle", ErrNotFound)
	}
	return did, nil
}

func (f *fakeUpstream) PostThread(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(uri)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	n, ok := f.nodes[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	self := n
	if n.servedDID != "" {
		self.did = n.servedDID
	}
	out := &appbsky.FeedDefs_ThreadViewPost{Post: f.view(uri, self)}
	if n.parent != "" {
		if p, ok := f.nodes[n.parent]; ok {
			out.Parent = &appbsky.FeedDefs_ThreadViewPost_Parent{
				FeedDefs_ThreadViewPost: &appbsky.FeedDefs_ThreadViewPost{Post: f.view(n.parent, p)},
			}
		} else {
			out.Parent = &appbsky.FeedDefs_ThreadViewPost_Parent{
				FeedDefs_NotFoundPost: &appbsky.FeedDefs_NotFoundPost{NotFound: true, Uri: n.parent},
			}
		}
	}
	for _, child := range n.replies {
		c, ok := f.nodes[child]
		if !ok {
			out.Replies = append(out.Replies, &appbsky.FeedDefs_ThreadViewPost_Replies_Elem{
				FeedDefs_NotFoundPost: &appbsky.FeedDefs_NotFoundPost{NotFound: true, Uri: child},
			})
			continue
		}
		out.Replies = append(out.Replies, &appbsky.FeedDefs_ThreadViewPost_Replies_Elem{
			FeedDefs_ThreadViewPost: &appbsky.FeedDefs_ThreadViewPost{Post: f.view(child, c)},
		})
	}
	return out, nil
}

func (f *fakeUpstream) view(uri string, n fakeNode) *appbsky.FeedDefs_PostView {
	handle := "alice.test"
	if n.did == bob {
		handle = "bob.test"
	}
	return &appbsky.FeedDefs_PostView{
		Uri:    uri,
		Cid:    "cid-" + recordKey(uri),
		Author: &appbsky.ActorDefs_ProfileViewBasic{Did: n.did, Handle: handle},
		Record: &lexutil.LexiconTypeDecoder{Val: &appbsky.FeedPost{
			Text:      n.text,
			CreatedAt: "2024-05-01T12:30:00.000Z",
			Langs:     n.langs,
		}},
	}
}

func (f *fakeUpstream) fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) > 8 && c[:8] == "resolve:" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func rkeys(nodes []*appbsky.FeedDefs_ThreadViewPost) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, recordKey(n.Post.Uri))
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
