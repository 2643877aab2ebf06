package proxyprotocol

import "net"

// Listener wraps every accepted connection in a PROXY protocol aware Conn.
type Listener struct {
	Inner net.Listener
}

// NewListener wraps an existing listener.
func NewListener(inner net.Listener) *Listener {
	return &Listener{Inner: inner}
}

// Accept waits for the next connection. The PROXY header, if any, is not
// read here; it is consumed by the connection's first Read.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Inner.Accept()
	if err != nil {
		return nil, err
	}

	return NewConn(conn), nil
}

func (l *Listener) Close() error {
	return l.Inner.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.Inner.Addr()
}
