package domain

import "errors"

// Firing-fatal errors abandon the current firing; per-event errors only skip
// the event they occurred on.
var (
	ErrStoreUnavailable     = errors.New("watermark store unavailable")
	ErrFeedFetchFailed      = errors.New("feed fetch failed")
	ErrGenerationFailed     = errors.New("content generation failed")
	ErrOutboundActionFailed = errors.New("outbound action failed")

	// ErrUnsupported is returned by platforms that lack an outbound action
	ErrUnsupported = errors.New("action not supported by platform")
)

// IsFiringFatal reports whether err must abandon the whole firing
func IsFiringFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrFeedFetchFailed)
}
