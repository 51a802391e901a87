package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/bluesky-social/indigo/xrpc"

	"github.com/sklonger/sklonger/internal/thread"
)

// classify maps a transport or XRPC failure onto the thread error taxonomy.
// Handle lookups treat every 400 as an unknown handle.
func classify(err error, handleLookup bool) error {
	if err == nil {
		return nil
	}

	var xerr *xrpc.Error
	if errors.As(err, &xerr) {
		code := ""
		var body *xrpc.XRPCError
		if errors.As(xerr.Wrapped, &body) && body != nil {
			code = body.ErrStr
		}
		switch {
		case xerr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", thread.ErrRateLimited, err)
		case xerr.StatusCode == http.StatusNotFound, code == "NotFound":
			return fmt.Errorf("%w: %w", thread.ErrNotFound, err)
		case handleLookup && xerr.StatusCode == http.StatusBadRequest:
			return fmt.Errorf("%w: %w", thread.ErrNotFound, err)
		case xerr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", thread.ErrUnreachable, err)
		default:
			return fmt.Errorf("%w: %w", thread.ErrInvalidResponse, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", thread.ErrUnreachable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", thread.ErrUnreachable, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", thread.ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %w", thread.ErrInvalidResponse, err)
}
