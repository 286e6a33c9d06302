package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kerbaras/mangafetch/pkg/utils"
)

var (
	// ErrAccessDenied means the upstream wants a login this client cannot provide.
	ErrAccessDenied = errors.New("access denied")
	// ErrProtocolExtraction means expected markup or tokens were not found.
	ErrProtocolExtraction = errors.New("protocol extraction failed")
	// ErrUpstreamResponse means the final resolution response was malformed.
	ErrUpstreamResponse = errors.New("unexpected upstream response")
	// ErrUpstreamUnavailable covers network failures, timeouts and non-2xx statuses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrBadArguments        = errors.New("bad arguments")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// upstreamError is unavailable, except that a 403 becomes ErrAccessDenied.
func upstreamError(op string, err error) error {
	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrAccessDenied, err)
	}
	return unavailable(op, err)
}

func extraction(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolExtraction, fmt.Sprintf(format, args...))
}

func checkPage(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be positive, got %d", ErrBadArguments, page)
	}
	return nil
}
