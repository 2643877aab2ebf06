package health

import (
	"bufio"
	"net"
	"strings"
	"time"

	proxyproto "github.com/pires/go-proxyproto"
)

// Checker probes a running proxy end to end: it sends a request the proxy
// must refuse (a target with no host segment) and expects the synthesized
// 400 response, which proves the accept loop, framer and error path are all
// alive without contacting any upstream.
type Checker struct {
	Address       string
	Timeout       time.Duration
	ProxyProtocol bool
}

// Check dials the proxy and evaluates its response.
func (c *Checker) Check() Status {
	conn, err := net.DialTimeout("tcp", c.Address, c.Timeout)
	if err != nil {
		return Status{Message: err.Error()}
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.Timeout))

	if c.ProxyProtocol {
		header := proxyproto.Header{
			Command: proxyproto.LOCAL,
			Version: 2,
		}
		if _, err := header.WriteTo(conn); err != nil {
			return Status{Message: err.Error()}
		}
	}

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: healthcheck\r\n\r\n")); err != nil {
		return Status{Message: err.Error()}
	}

	statusLine, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return Status{Message: err.Error()}
	}

	statusLine = strings.TrimRight(statusLine, "\r\n")
	if !strings.HasPrefix(statusLine, "HTTP/1.1 400") {
		return Status{Message: "unexpected response '" + statusLine + "'"}
	}

	return Status{IsHealthy: true, Message: "proxy is accepting and parsing requests"}
}
