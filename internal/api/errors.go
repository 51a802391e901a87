package api

import (
	"net/http"

	"github.com/sklonger/sklonger/internal/thread"
)

// failure is what a client sees for an error: a status and server-authored text.
type failure struct {
	status  int
	heading string
	message string
}

// failureFor maps the thread error taxonomy onto HTTP statuses.
func failureFor(err error) failure {
	switch thread.Kind(err) {
	case thread.ErrBadInput:
		return failure{http.StatusBadRequest, "Bad Request",
			"That is not a Bluesky post link. Use one like https://bsky.app/profile/handle/post/id."}
	case thread.ErrNotFound:
		return failure{http.StatusNotFound, "Not Found",
			"The post or account could not be found, or it is not publicly visible."}
	case thread.ErrRateLimited:
		return failure{http.StatusTooManyRequests, "Too Many Requests",
			"Bluesky is limiting requests right now. Please try again later."}
	case thread.ErrUnreachable:
		return failure{http.StatusServiceUnavailable, "Service Unavailable",
			"Bluesky could not be reached. Please try again later."}
	case thread.ErrInvalidResponse:
		return failure{http.StatusBadGateway, "Bad Gateway",
			"Bluesky returned a response that could not be read."}
	case thread.ErrTraversalTooLong:
		return failure{http.StatusUnprocessableEntity, "Thread Too Long",
			"This thread is too long to display."}
	default:
		return failure{http.StatusInternalServerError, "Internal Server Error",
			"An unexpected error occurred."}
	}
}
