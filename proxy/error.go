package proxy

import "net/http"

// ErrorKind classifies the ways a session can fail.
type ErrorKind int

const (
	// BadRequest covers malformed client input, including slow or invalid
	// request targets.
	BadRequest ErrorKind = iota

	// HeaderTooLarge guards against clients sending oversized header blocks.
	HeaderTooLarge

	// UnsupportedMethod is a policy rejection of an otherwise valid method.
	UnsupportedMethod

	// BadGateway covers unresolvable or unreachable upstream hosts, and
	// upstreams that reply with garbage.
	BadGateway

	// GatewayTimeout covers upstream connect and read deadlines.
	GatewayTimeout
)

// Error wraps a session failure with the HTTP status to send in response.
// Every error raised inside the session's pipeline is mapped to exactly one
// Error before it reaches the client.
type Error struct {
	Kind  ErrorKind
	Inner error
}

func (err *Error) Error() string {
	return err.Inner.Error()
}

func (err *Error) Unwrap() error {
	return err.Inner
}

// StatusCode returns the HTTP status code rendered for this error.
func (err *Error) StatusCode() int {
	switch err.Kind {
	case HeaderTooLarge:
		return http.StatusRequestHeaderFieldsTooLarge
	case UnsupportedMethod:
		return http.StatusNotImplemented
	case BadGateway:
		return http.StatusBadGateway
	case GatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}
