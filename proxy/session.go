package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/detour-proxy/detour/httpmsg"
	"github.com/detour-proxy/detour/statuspage"
	"github.com/detour-proxy/detour/target"
	"github.com/detour-proxy/detour/upstream"
)

// errorWriteTimeout bounds the attempt to deliver a synthesized error
// response to a client that may itself be broken.
const errorWriteTimeout = 5 * time.Second

// errNoRequest marks a client that connected and closed without sending a
// single byte; the session ends silently.
var errNoRequest = errors.New("client closed the connection without sending a request")

// state tracks a session's progress through its pipeline. Transitions are
// strictly sequential; a failure in any state moves directly to closing.
type state int

const (
	stateAccepted state = iota
	stateParsingRequest
	stateResolvingTarget
	stateConnectingUpstream
	stateForwardingRequest
	stateRelayingResponse
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateParsingRequest:
		return "parsing the request"
	case stateResolvingTarget:
		return "resolving the target"
	case stateConnectingUpstream:
		return "connecting upstream"
	case stateForwardingRequest:
		return "forwarding the request"
	case stateRelayingResponse:
		return "relaying the response"
	case stateClosed:
		return "closed"
	default:
		return "accepted"
	}
}

// Session owns one client connection from accept to close. While it runs it
// owns at most one upstream connection; both sockets are closed on every
// exit path and no other component retains them afterwards.
type Session struct {
	Client              net.Conn
	Dialer              *upstream.Dialer
	HeaderReadTimeout   time.Duration
	UpstreamReadTimeout time.Duration
	MaxHeaderBytes      int
	MaxHeaderLineBytes  int
	DeniedMethods       []string
	Logger              *log.Logger

	state state
}

// Serve drives the session to completion: parse, resolve, connect, forward,
// relay. Exactly one response reaches the client - either the upstream's or
// a synthesized error - unless the client connection is already broken, in
// which case the failure is swallowed after logging.
func (s *Session) Serve() {
	slog := &sessionLog{
		RemoteAddr: s.Client.RemoteAddr().String(),
		Started:    time.Now(),
	}

	client := &countWriter{w: s.Client}
	var upstreamConn net.Conn

	err := s.run(client, slog, &upstreamConn)
	if err != nil && err != errNoRequest {
		// The state the pipeline failed in names the log message.
		err = fmt.Errorf("failed while %s: %w", s.state, err)
	}

	var perr *Error
	if errors.As(err, &perr) && client.n == 0 {
		// Best effort: the client gets at least a status line unless its
		// own socket has failed.
		s.Client.SetWriteDeadline(time.Now().Add(errorWriteTimeout))
		statuspage.Write(client, perr.StatusCode())
		slog.StatusCode = perr.StatusCode()
	}
	s.state = stateClosed

	closeErr := s.Client.Close()
	if upstreamConn != nil {
		closeErr = multierr.Append(closeErr, upstreamConn.Close())
	}

	slog.BytesOut = client.n
	slog.Write(s.Logger, multierr.Append(err, closeErr))
}

func (s *Session) run(client *countWriter, slog *sessionLog, upstreamConn *net.Conn) error {
	s.state = stateParsingRequest
	if s.HeaderReadTimeout > 0 {
		s.Client.SetReadDeadline(time.Now().Add(s.HeaderReadTimeout))
	}

	reader := httpmsg.NewReaderSize(s.Client, s.MaxHeaderBytes, s.MaxHeaderLineBytes)

	req, err := reader.ReadRequest()
	if err == io.EOF {
		return errNoRequest
	}
	if err != nil {
		return clientFault(err)
	}

	// The first read may have consumed a PROXY protocol header, revealing
	// the true client address.
	slog.RemoteAddr = s.Client.RemoteAddr().String()
	slog.Request = fmt.Sprintf("%s %s %s", req.Method, req.Target, req.Proto)

	if s.methodDenied(req.Method) {
		return &Error{
			Kind:  UnsupportedMethod,
			Inner: fmt.Errorf("method %s is refused by policy", req.Method),
		}
	}

	s.state = stateResolvingTarget
	ep, forwardTarget, err := target.Resolve(req.Target)
	if err != nil {
		return &Error{Kind: BadRequest, Inner: err}
	}
	slog.Upstream = ep.Address()

	s.state = stateConnectingUpstream
	conn, err := s.Dialer.Dial(context.Background(), ep)
	if err != nil {
		var dialErr *upstream.DialError
		if errors.As(err, &dialErr) && dialErr.IsTimeout {
			return &Error{Kind: GatewayTimeout, Inner: err}
		}
		return &Error{Kind: BadGateway, Inner: err}
	}
	*upstreamConn = conn

	// The header deadline has served its purpose; the rest of the exchange
	// runs under the upstream read timeout on both sockets.
	if s.UpstreamReadTimeout > 0 {
		deadline := time.Now().Add(s.UpstreamReadTimeout)
		conn.SetDeadline(deadline)
		s.Client.SetReadDeadline(deadline)
	} else {
		s.Client.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, relayBufferSize)

	s.state = stateForwardingRequest
	if err := ForwardRequest(conn, req, ep, forwardTarget, slog.RemoteAddr, buf); err != nil {
		return forwardFault(err)
	}

	s.state = stateRelayingResponse
	resp, err := httpmsg.NewReaderSize(conn, s.MaxHeaderBytes, s.MaxHeaderLineBytes).ReadResponse()
	if err != nil {
		return upstreamFault(err)
	}
	slog.StatusCode = resp.StatusCode

	if _, err := RelayResponse(client, resp, buf); err != nil {
		// Response headers may already be on the wire; HTTP has no way to
		// retract them, so the session just fails and closes.
		return upstreamFault(err)
	}

	return nil
}

func (s *Session) methodDenied(method string) bool {
	for _, denied := range s.DeniedMethods {
		if strings.EqualFold(method, denied) {
			return true
		}
	}

	return false
}

// clientFault maps a request-parsing failure to the proxy error taxonomy.
// Everything the client does wrong before a request is parsed is a
// 400-class failure; only the header size guard is reported distinctly.
func clientFault(err error) *Error {
	if errors.Is(err, httpmsg.ErrHeaderTooLarge) {
		return &Error{Kind: HeaderTooLarge, Inner: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Kind:  BadRequest,
			Inner: fmt.Errorf("timed out reading request header: %w", err),
		}
	}

	return &Error{Kind: BadRequest, Inner: err}
}

// forwardFault maps a failure while streaming the request upstream. A
// malformed client body is the client's fault; everything else is the
// upstream leg failing.
func forwardFault(err error) *Error {
	var parseErr *httpmsg.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: BadRequest, Inner: err}
	}

	return upstreamFault(err)
}

// upstreamFault maps a failure on the upstream leg: deadline overruns are
// timeouts, anything else (garbage, premature close, refused writes) is a
// bad gateway.
func upstreamFault(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: GatewayTimeout, Inner: err}
	}

	return &Error{Kind: BadGateway, Inner: err}
}

// countWriter records how many bytes have reached the client, which decides
// whether a synthesized error response may still be sent.
type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
