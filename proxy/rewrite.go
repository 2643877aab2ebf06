package proxy

import (
	"io"
	"net"
	"strconv"

	"github.com/detour-proxy/detour/httpmsg"
	"github.com/detour-proxy/detour/target"
)

// viaToken names this proxy in the Via headers it adds.
const viaToken = "1.1 detour"

// ForwardRequest builds the outbound request and streams it to w:
// rewritten request line, filtered headers with Host pointing at the
// resolved endpoint, and the body forwarded with its original framing.
func ForwardRequest(
	w io.Writer,
	req *httpmsg.Request,
	ep target.Endpoint,
	forwardTarget string,
	clientAddr string,
	buf []byte,
) error {
	headers := filterHeaders(req.Header)
	headers.Set("Host", ep.HostHeader())
	appendForwardedFor(&headers, clientAddr)
	headers.Add("Via", viaToken)

	// One request per upstream connection, mirroring the client side.
	headers.Add("Connection", "close")

	if req.Chunked != nil {
		headers.Add("Transfer-Encoding", "chunked")
	}

	if err := httpmsg.WriteRequestHead(w, req.Method, forwardTarget, "HTTP/1.1", headers); err != nil {
		return err
	}

	switch {
	case req.Chunked != nil:
		_, err := copyChunks(w, req.Chunked, buf)
		return err
	case req.Body != nil:
		_, err := io.CopyBuffer(w, req.Body, buf)
		return err
	default:
		return nil
	}
}

// appendForwardedFor extends the X-Forwarded-For chain with the client's
// address, creating the header if the client did not send one.
func appendForwardedFor(headers *httpmsg.Header, clientAddr string) {
	clientIP, _, err := net.SplitHostPort(clientAddr)
	if err != nil {
		clientIP = clientAddr
	}

	if chain, ok := headers.Get("X-Forwarded-For"); ok {
		headers.Set("X-Forwarded-For", chain+", "+clientIP)
	} else {
		headers.Add("X-Forwarded-For", clientIP)
	}
}

// copyChunks re-encodes a chunked body onto w, preserving the original
// chunk boundaries, terminator and trailer fields.
func copyChunks(w io.Writer, chunks *httpmsg.ChunkedReader, buf []byte) (int64, error) {
	var total int64

	for {
		size, err := chunks.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}

		if _, err := io.WriteString(w, strconv.FormatInt(size, 16)+"\r\n"); err != nil {
			return total, err
		}

		n, err := io.CopyBuffer(w, chunks, buf)
		total += n
		if err != nil {
			return total, err
		}

		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return total, err
		}
	}

	if _, err := io.WriteString(w, "0\r\n"); err != nil {
		return total, err
	}

	for _, f := range chunks.Trailer {
		if _, err := io.WriteString(w, f.Name+": "+f.Value+"\r\n"); err != nil {
			return total, err
		}
	}

	_, err := io.WriteString(w, "\r\n")
	return total, err
}
