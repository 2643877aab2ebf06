package proxy

import (
	"net/http"
	"strings"

	"github.com/golang/gddo/httputil/header"

	"github.com/detour-proxy/detour/httpmsg"
)

// isHopByHopHeader checks if a given header name is a hop-by-hop header, and
// hence must not be forwarded past this transport leg.
func isHopByHopHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection",
		"Proxy-Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Te",
		"Trailer",
		"Transfer-Encoding",
		"Upgrade":
		return true
	default:
		return false
	}
}

// filterHeaders returns the fields of in that may be forwarded, preserving
// their original order. The fixed hop-by-hop set is dropped, along with any
// header named by the message's own Connection fields, per RFC 7230 §6.1.
// Transfer-Encoding is dropped here and re-added by the forwarder when the
// body really is re-streamed chunked.
func filterHeaders(in httpmsg.Header) httpmsg.Header {
	named := connectionNamed(in)

	var out httpmsg.Header
	for _, f := range in {
		if isHopByHopHeader(f.Name) {
			continue
		}
		if named[http.CanonicalHeaderKey(f.Name)] {
			continue
		}
		out = append(out, f)
	}

	return out
}

// connectionNamed collects the header names listed in the message's
// Connection fields.
func connectionNamed(in httpmsg.Header) map[string]bool {
	values := in.Values("Connection")
	if len(values) == 0 {
		return nil
	}

	named := make(map[string]bool)
	for _, token := range header.ParseList(http.Header{"Connection": values}, "Connection") {
		if strings.EqualFold(token, "close") || strings.EqualFold(token, "keep-alive") {
			continue
		}
		named[http.CanonicalHeaderKey(token)] = true
	}

	return named
}
