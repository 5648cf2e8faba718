package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Session is one promoted WebSocket connection: the simulator (id 0) or a
// web UI.
type Session struct {
	srv    *Server
	conn   *websocket.Conn
	id     uint64
	peer   string
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan []byte
	done   chan struct{}

	// dialogs and file probes started for this session
	tasks errgroup.Group
	// set on the dispatch queue once teardown started
	closing bool
}

func newSession(s *Server, c *cycle, p *pendingConn, id uint64, peer string) *Session {
	ctx, cancel := context.WithCancel(c.ctx)
	return &Session{
		srv:    s,
		conn:   p.conn,
		id:     id,
		peer:   peer,
		logger: s.logger.With("peer", peer, "id", id, "tag", p.tag),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the handler id of the session.
func (ss *Session) ID() uint64 {
	return ss.id
}

// VSendMessage queues msg for the peer, tagged with from.
func (ss *Session) VSendMessage(from uint64, msg protocol.Message) {
	ss.srv.queue.Dispatch(func() {
		ss.deliver(from, msg)
	})
}

// deliver is the registered handler of the session. Runs on the dispatch
// queue, which keeps frames in order.
func (ss *Session) deliver(from uint64, msg protocol.Message) {
	if ss.closing || ss.ctx.Err() != nil {
		return
	}
	frame, err := protocol.Encode(from, msg)
	if err != nil {
		ss.logger.Error("encode frame", "kind", msg.Kind, "err", err)
		return
	}
	select {
	case ss.send <- frame:
	default:
		ss.logger.Warn("send buffer full, dropping frame", "kind", msg.Kind)
		ss.srv.metrics.Dropped("send_buffer_full")
	}
}

// run serves the session until the peer leaves or the cycle ends, then
// tears it down. Outstanding tasks are waited for before the handler is
// unregistered.
func (ss *Session) run() {
	s := ss.srv
	go ss.writePump()

	ss.readLoop()
	ss.cancel()

	s.syncDo(func() { ss.closing = true })
	if err := ss.tasks.Wait(); err != nil {
		ss.logger.Warn("session task failed", "err", err)
	}
	s.syncDo(ss.detach)

	<-ss.done
	s.metrics.SessionClosed(ss.peer)
	ss.logger.Info("session closed")
}

// detach removes the session from the server. Runs on the dispatch queue.
func (ss *Session) detach() {
	s := ss.srv
	s.unregister(ss.id)

	if ss.id != protocol.SimulatorID {
		delete(s.web, ss.id)
		return
	}
	if s.efb != ss {
		return
	}
	s.efb = nil
	s.efbConnected = false
	s.broadcast(protocol.SimulatorID, protocol.MustNew(protocol.EFBState{State: false}))
	s.efbResolvers.NotifyAll(false)
}

func (ss *Session) readLoop() {
	s := ss.srv
	for {
		_, data, err := ss.conn.Read(ss.ctx)
		if err != nil {
			switch {
			case ss.ctx.Err() != nil:
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				ss.logger.Debug("peer closed")
			case errors.Is(err, context.Canceled):
			default:
				ss.logger.Error("read failed", "err", err)
			}
			return
		}
		s.metrics.Frame("in", ss.peer)

		env, err := protocol.Parse(data)
		if err != nil {
			ss.logger.Warn("dropping frame", "err", err)
			s.metrics.Dropped("malformed")
			continue
		}

		from := ss.id
		s.queue.Dispatch(func() {
			s.route(from, env.ID, env.Content)
		})
		s.metrics.DispatchBacklog(s.queue.Len())
	}
}

func (ss *Session) writePump() {
	defer close(ss.done)
	defer ss.conn.Close(websocket.StatusGoingAway, "")

	for {
		select {
		case <-ss.ctx.Done():
			return
		case frame := <-ss.send:
			ctx, cancel := context.WithTimeout(ss.ctx, writeTimeout)
			err := ss.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if ss.ctx.Err() == nil {
					ss.logger.Error("write failed", "err", err)
				}
				ss.cancel()
				return
			}
			ss.srv.metrics.Frame("out", ss.peer)
		}
	}
}
