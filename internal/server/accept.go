package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// readLimit bounds inbound frames. Preset curves are the largest messages.
const readLimit = 4 << 20

var errDuplicateEFB = errors.New("simulator already connected")

// pendingConn is an upgraded connection that has not said hello yet.
type pendingConn struct {
	conn   *websocket.Conn
	remote string
	tag    string
}

// serve runs one HTTP server on ln until the cycle is cancelled or serving
// fails. Every connection carries a single request.
func (s *Server) serve(c *cycle, ln net.Listener) {
	srv := &http.Server{
		Handler:           s.routes(c),
		ReadHeaderTimeout: s.handshakeTimeout,
		BaseContext:       func(net.Listener) context.Context { return c.ctx },
	}
	srv.SetKeepAlivesEnabled(false)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	served := false
	select {
	case <-c.ctx.Done():
	case err := <-errCh:
		served = true
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve", "port", c.port, "err", err)
		}
		c.cancel()
	}

	// Upgraded connections are not tracked by Shutdown; the cycle waits
	// for them.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown", "err", err)
		srv.Close()
	}
	if !served {
		<-errCh
	}
}

// newTag names a connection in the logs.
func newTag() string {
	return uuid.NewString()
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// serveWS upgrades the request and runs the session to completion.
func (s *Server) serveWS(c *cycle, w http.ResponseWriter, r *http.Request) {
	if !c.enter() {
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}
	defer c.leave()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // the simulator and local UIs come from any origin
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		s.metrics.HandshakeFailed("upgrade")
		return
	}
	conn.SetReadLimit(readLimit)

	p := &pendingConn{conn: conn, remote: r.RemoteAddr, tag: newTag()}
	sess := s.classify(c, p)
	if sess == nil {
		return
	}
	sess.run()
}

// classify waits for the HelloWorld frame and promotes the connection on
// the dispatch queue. Returns nil when the connection was refused.
func (s *Server) classify(c *cycle, p *pendingConn) *Session {
	logger := s.logger.With("remote", p.remote, "tag", p.tag)

	ctx, cancel := context.WithTimeout(c.ctx, s.handshakeTimeout)
	_, data, err := p.conn.Read(ctx)
	cancel()
	if err != nil {
		logger.Warn("handshake read failed", "err", err)
		s.metrics.HandshakeFailed("read")
		p.conn.Close(websocket.StatusPolicyViolation, "no hello")
		return nil
	}

	var hello protocol.HelloWorld
	env, err := protocol.Parse(data)
	if err == nil {
		err = env.Content.Decode(&hello)
	}
	if err != nil {
		logger.Warn("handshake rejected", "err", err)
		s.metrics.HandshakeFailed("malformed")
		p.conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return nil
	}
	if hello.Type != protocol.PeerEFB && hello.Type != protocol.PeerWeb {
		logger.Warn("unknown peer type", "type", hello.Type)
		s.metrics.HandshakeFailed("peer")
		p.conn.Close(websocket.StatusPolicyViolation, "unknown peer type")
		return nil
	}

	type result struct {
		sess *Session
		err  error
	}
	ch := make(chan result, 1)
	if !s.queue.Dispatch(func() {
		sess, err := s.promote(c, p, hello.Type)
		ch <- result{sess, err}
	}) {
		p.conn.Close(websocket.StatusGoingAway, "server stopping")
		return nil
	}

	res := <-ch
	if res.err != nil {
		logger.Warn("connection dropped", "peer", hello.Type, "err", res.err)
		reason := "stopping"
		if errors.Is(res.err, errDuplicateEFB) {
			reason = "duplicate"
		}
		s.metrics.HandshakeFailed(reason)
		p.conn.Close(websocket.StatusPolicyViolation, res.err.Error())
		return nil
	}
	logger.Info("session promoted", "peer", hello.Type, "id", res.sess.id)
	return res.sess
}

// promote turns p into a session. Runs on the dispatch queue.
func (s *Server) promote(c *cycle, p *pendingConn, peer string) (*Session, error) {
	if c.ctx.Err() != nil {
		return nil, context.Canceled
	}

	if peer == protocol.PeerEFB {
		if s.efb != nil {
			return nil, errDuplicateEFB
		}
		sess := newSession(s, c, p, protocol.SimulatorID, "efb")
		s.efb = sess
		s.register(protocol.SimulatorID, sess.deliver)
		s.efbConnected = true

		sess.deliver(protocol.BroadcastID, protocol.MustNew(protocol.HelloWorld{Type: protocol.PeerEFB}))
		for _, id := range s.handlerIDs() {
			if id == protocol.SimulatorID {
				continue
			}
			s.replayTo(sess, id)
		}
		s.broadcast(protocol.SimulatorID, protocol.MustNew(protocol.EFBState{State: true}))
		s.efbResolvers.NotifyAll(true)
		s.metrics.SessionOpened("efb")
		return sess, nil
	}

	sess := newSession(s, c, p, s.NextHandlerID(), "web")
	s.web[sess.id] = sess
	s.register(sess.id, sess.deliver)
	sess.deliver(protocol.BroadcastID, protocol.MustNew(protocol.EFBState{State: s.efbConnected}))
	if s.efb != nil {
		s.replayTo(s.efb, sess.id)
	}
	s.metrics.SessionOpened("web")
	return sess, nil
}
