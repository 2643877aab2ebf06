package proxy

import (
	"io"

	"github.com/detour-proxy/detour/httpmsg"
)

// relayBufferSize bounds the memory used while streaming a body; large
// bodies are never buffered whole.
const relayBufferSize = 32 * 1024

// RelayResponse streams the parsed upstream response to the client,
// preserving the status line, header order and body framing. It returns the
// number of body bytes relayed.
func RelayResponse(w io.Writer, resp *httpmsg.Response, buf []byte) (int64, error) {
	headers := filterHeaders(resp.Header)
	headers.Add("Via", viaToken)
	headers.Add("Connection", "close")

	if resp.Chunked != nil {
		headers.Add("Transfer-Encoding", "chunked")
	}

	if err := httpmsg.WriteResponseHead(w, resp.Proto, resp.StatusCode, resp.Reason, headers); err != nil {
		return 0, err
	}

	switch {
	case resp.Chunked != nil:
		return copyChunks(w, resp.Chunked, buf)
	case resp.Body != nil:
		// Covers both Content-Length bounded bodies and HTTP/1.0-style
		// read-until-close bodies; the framer has already bounded the
		// former.
		return io.CopyBuffer(w, resp.Body, buf)
	default:
		return 0, nil
	}
}
