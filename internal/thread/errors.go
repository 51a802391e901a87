package thread

import "errors"

// Failure kinds surfaced by thread resolution. Callers match them with errors.Is.
var (
	// ErrBadInput marks a reference that failed validation before any network access.
	ErrBadInput = errors.New("bad input")
	// ErrNotFound marks a missing, deleted or blocked post or an unknown handle.
	ErrNotFound = errors.New("not found or inaccessible")
	// ErrRateLimited marks upstream throttling. It is never retried.
	ErrRateLimited = errors.New("rate limited by upstream")
	// ErrUnreachable marks a network failure or timeout talking to upstream.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrInvalidResponse marks an upstream payload that failed validation.
	ErrInvalidResponse = errors.New("invalid upstream response")
	// ErrTraversalTooLong marks a walk that hit the step ceiling or revisited a post.
	ErrTraversalTooLong = errors.New("thread traversal too long")
)

// Kind returns the sentinel matching err, or nil when err is not a thread error.
func Kind(err error) error {
	for _, kind := range []error{
		ErrBadInput,
		ErrNotFound,
		ErrRateLimited,
		ErrUnreachable,
		ErrInvalidResponse,
		ErrTraversalTooLong,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Label is a short, stable name for err suitable for metric labels.
func Label(err error) string {
	if err == nil {
		return "ok"
	}
	switch Kind(err) {
	case ErrBadInput:
		return "bad_input"
	case ErrNotFound:
		return "not_found"
	case ErrRateLimited:
		return "rate_limited"
	case ErrUnreachable:
		return "unreachable"
	case ErrInvalidResponse:
		return "invalid_response"
	case ErrTraversalTooLong:
		return "too_long"
	default:
		return "error"
	}
}
