package frontend

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/detour-proxy/detour/proxy"
	"github.com/detour-proxy/detour/proxyprotocol"
	"github.com/detour-proxy/detour/upstream"
)

// Server accepts client connections and dispatches each one to an
// independent proxy session. The accept loop never performs session I/O, so
// a stalled session cannot block new clients.
type Server struct {
	BindAddress         string
	ProxyProtocol       bool
	MaxSessions         int64
	AcceptQueueTimeout  time.Duration
	ShutdownGracePeriod time.Duration

	Dialer              *upstream.Dialer
	HeaderReadTimeout   time.Duration
	UpstreamReadTimeout time.Duration
	MaxHeaderBytes      int
	MaxHeaderLineBytes  int
	DeniedMethods       []string

	Logger *log.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopping bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Run binds to the configured address and serves until Stop is called. It
// returns once every in-flight session has finished or been force-closed.
func (svr *Server) Run() error {
	listener, err := net.Listen("tcp", svr.BindAddress)
	if err != nil {
		return err
	}

	return svr.Serve(listener)
}

// Serve accepts connections from an existing listener until Stop is called.
func (svr *Server) Serve(listener net.Listener) error {
	if svr.ProxyProtocol {
		listener = proxyprotocol.NewListener(listener)
	}

	svr.mu.Lock()
	if svr.stopping {
		svr.mu.Unlock()
		listener.Close()
		return nil
	}
	svr.listener = listener
	svr.conns = make(map[net.Conn]struct{})
	svr.mu.Unlock()

	svr.Logger.Printf("Listening on %s", listener.Addr())

	sessions := semaphore.NewWeighted(svr.maxSessions())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.isStopping() {
				svr.drain()
				return nil
			}
			return err
		}

		if !svr.acquireSlot(sessions) {
			// The session ceiling held for the whole queue timeout. No
			// request has been read, so there is nothing to say; the
			// connection is simply closed.
			svr.Logger.Printf("Session limit reached, rejecting %s", conn.RemoteAddr())
			conn.Close()
			continue
		}

		svr.dispatch(sessions, conn)
	}
}

// Stop closes the listening socket. In-flight sessions are left to finish;
// Run performs the drain and returns when they have.
func (svr *Server) Stop() {
	svr.stopOnce.Do(func() {
		svr.mu.Lock()
		svr.stopping = true
		listener := svr.listener
		svr.mu.Unlock()

		if listener != nil {
			listener.Close()
		}
	})
}

// Addr returns the bound address, once Serve has started.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()

	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

func (svr *Server) dispatch(sessions *semaphore.Weighted, conn net.Conn) {
	svr.mu.Lock()
	svr.conns[conn] = struct{}{}
	svr.mu.Unlock()

	session := &proxy.Session{
		Client:              conn,
		Dialer:              svr.Dialer,
		HeaderReadTimeout:   svr.HeaderReadTimeout,
		UpstreamReadTimeout: svr.UpstreamReadTimeout,
		MaxHeaderBytes:      svr.MaxHeaderBytes,
		MaxHeaderLineBytes:  svr.MaxHeaderLineBytes,
		DeniedMethods:       svr.DeniedMethods,
		Logger:              svr.Logger,
	}

	svr.wg.Add(1)
	go func() {
		defer func() {
			svr.mu.Lock()
			delete(svr.conns, conn)
			svr.mu.Unlock()

			sessions.Release(1)
			svr.wg.Done()
		}()

		session.Serve()
	}()
}

// acquireSlot waits briefly for a session slot, returning false if the
// ceiling holds for the whole queue timeout.
func (svr *Server) acquireSlot(sessions *semaphore.Weighted) bool {
	ctx, cancel := context.WithTimeout(context.Background(), svr.acceptQueueTimeout())
	defer cancel()

	return sessions.Acquire(ctx, 1) == nil
}

// drain waits for in-flight sessions to finish, force-closing any that
// outlive the grace period.
func (svr *Server) drain() {
	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	grace := svr.ShutdownGracePeriod
	if grace <= 0 {
		grace = 15 * time.Second
	}

	select {
	case <-done:
		return
	case <-time.After(grace):
	}

	svr.mu.Lock()
	n := len(svr.conns)
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()

	if n > 0 {
		svr.Logger.Printf("Grace period expired, force-closed %d session(s)", n)
	}

	svr.wg.Wait()
}

func (svr *Server) isStopping() bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return svr.stopping
}

func (svr *Server) maxSessions() int64 {
	if svr.MaxSessions <= 0 {
		return 256
	}
	return svr.MaxSessions
}

func (svr *Server) acceptQueueTimeout() time.Duration {
	if svr.AcceptQueueTimeout <= 0 {
		return 100 * time.Millisecond
	}
	return svr.AcceptQueueTimeout
}
