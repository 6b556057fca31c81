package peer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLink marks signaling that targets a link this side never
	// created.
	ErrNoLink = errors.New("no peer link")

	// ErrMediaDenied means the capture device or the user refused a stream.
	// The call activation that asked for it should be rolled back.
	ErrMediaDenied = errors.New("media access denied")

	ErrNoLocalMedia = errors.New("no local camera stream")
	ErrLinkClosed   = errors.New("peer link closed")
)

// NegotiationError wraps a failed offer/answer/candidate step on one link.
// The link is left as it was.
type NegotiationError struct {
	Op  string
	Key Key
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

func negotiationErr(op string, key Key, err error) error {
	if err == nil {
		return nil
	}
	return &NegotiationError{Op: op, Key: key, Err: err}
}
