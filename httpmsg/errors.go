package httpmsg

import "errors"

// ErrHeaderTooLarge indicates that the header block exceeded the reader's
// size bound before the terminating blank line was seen.
var ErrHeaderTooLarge = errors.New("header block is too large")

// ParseError indicates that the peer sent bytes that do not form a valid
// HTTP/1.x message.
type ParseError struct {
	Reason string
}

func (err *ParseError) Error() string {
	return "malformed HTTP message: " + err.Reason
}
