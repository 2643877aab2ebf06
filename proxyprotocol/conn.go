// Package proxyprotocol lets the proxy sit behind an L4 balancer that
// prefixes connections with a PROXY protocol v1/v2 header, so sessions are
// logged against the true client address.
package proxyprotocol

import (
	"bufio"
	"net"
	"sync"
	"time"

	proxyproto "github.com/pires/go-proxyproto"
)

// Conn wraps an accepted connection and consumes a leading PROXY protocol
// header, if one is present. The header is parsed lazily on the first Read
// so that a slow peer cannot stall the accept loop.
type Conn struct {
	inner net.Conn
	rd    *bufio.Reader

	once    sync.Once
	initErr error
	local   net.Addr
	remote  net.Addr
}

// NewConn wraps nc. Connections without a PROXY header pass through
// untouched; their original addresses are reported.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		inner: nc,
		rd:    bufio.NewReader(nc),
	}
}

func (c *Conn) init() {
	hdr, err := proxyproto.Read(c.rd)
	switch err {
	case proxyproto.ErrNoProxyProtocol, proxyproto.ErrInvalidLength:
		// Not a PROXY protocol connection; carry on with the raw stream.
	case nil:
		if hdr.Command == proxyproto.PROXY {
			c.local = tcpAddr(hdr.DestinationAddress, hdr.DestinationPort)
			c.remote = tcpAddr(hdr.SourceAddress, hdr.SourcePort)
		}
	default:
		c.initErr = err
	}
}

func tcpAddr(ip net.IP, port uint16) net.Addr {
	return &net.TCPAddr{IP: ip, Port: int(port)}
}

func (c *Conn) Read(b []byte) (int, error) {
	c.once.Do(c.init)
	if c.initErr != nil {
		return 0, c.initErr
	}

	return c.rd.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	return c.inner.Write(b)
}

func (c *Conn) Close() error {
	return c.inner.Close()
}

// LocalAddr returns the destination address carried by the PROXY header, or
// the socket's own address if none was sent.
func (c *Conn) LocalAddr() net.Addr {
	if c.local != nil {
		return c.local
	}

	return c.inner.LocalAddr()
}

// RemoteAddr returns the source address carried by the PROXY header, or the
// socket's own peer address if none was sent.
func (c *Conn) RemoteAddr() net.Addr {
	if c.remote != nil {
		return c.remote
	}

	return c.inner.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.inner.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.inner.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.inner.SetWriteDeadline(t)
}
