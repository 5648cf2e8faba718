package server

import (
	"context"
	"sort"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/app"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// noPosition marks a handler that never asked for facilities.
const noPosition = -1000

type handler struct {
	fn       MessageHandler
	lat, lon float64
}

func (h *handler) hasPosition() bool {
	return h.lat > -500
}

// syncDo runs fn on the dispatch queue and waits for it. Must not be called
// from the queue itself. Returns false when the queue is closed.
func (s *Server) syncDo(fn func()) bool {
	done := make(chan struct{})
	if !s.queue.Dispatch(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

// register adds a handler. An id that is already taken keeps its handler.
func (s *Server) register(id uint64, fn MessageHandler) bool {
	if _, ok := s.handlers[id]; ok {
		s.logger.Error("handler id already registered", "id", id)
		return false
	}
	s.handlers[id] = &handler{fn: fn, lat: noPosition, lon: noPosition}
	return true
}

// unregister removes a handler and tells the simulator the surface is gone.
func (s *Server) unregister(id uint64) {
	if _, ok := s.handlers[id]; !ok {
		return
	}
	delete(s.handlers, id)
	s.fuel.DropPeer(id)
	s.deviation.DropPeer(id)

	if id != protocol.SimulatorID {
		s.sendTo(protocol.SimulatorID, id, protocol.MustNew(protocol.ByeBye{Type: protocol.PeerEFB}))
	}
}

func (s *Server) handlerIDs() []uint64 {
	ids := make([]uint64, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sendTo delivers msg to handler to, tagged with from. Returns false when
// no such handler exists.
func (s *Server) sendTo(to, from uint64, msg protocol.Message) bool {
	h, ok := s.handlers[to]
	if !ok {
		return false
	}
	h.fn(from, msg)
	return true
}

// broadcast delivers msg to every handler except the one with id except.
func (s *Server) broadcast(except uint64, msg protocol.Message) {
	for _, id := range s.handlerIDs() {
		if id != except {
			s.sendTo(id, protocol.BroadcastID, msg)
		}
	}
}

// replayTo asks the simulator session for what handler id needs to draw
// its first frame.
func (s *Server) replayTo(efb *Session, id uint64) {
	efb.deliver(id, protocol.MustNew(protocol.HelloWorld{Type: protocol.PeerEFB}))
	efb.deliver(id, protocol.MustNew(protocol.GetRecords{}))
	if h, ok := s.handlers[id]; ok && h.hasPosition() {
		efb.deliver(id, protocol.MustNew(protocol.GetFacilities{Lat: h.lat, Lon: h.lon}))
	}
}

// reply answers the sender of a locally handled message.
func (s *Server) reply(to uint64, c protocol.Content) {
	msg, err := protocol.New(c)
	if err != nil {
		s.logger.Error("encode reply", "kind", c.Kind(), "err", err)
		return
	}
	s.sendTo(to, protocol.BroadcastID, msg)
}

// route handles msg sent by from and addressed to to. Runs on the dispatch
// queue.
func (s *Server) route(from, to uint64, msg protocol.Message) {
	if s.handleLocal(from, msg) || s.handlePreset(from, msg) {
		return
	}

	if msg.Is(protocol.KindGetFacilities) {
		var req protocol.GetFacilities
		if err := msg.Decode(&req); err == nil {
			if h, ok := s.handlers[from]; ok {
				h.lat, h.lon = req.Lat, req.Lon
			}
		}
	}

	if to == protocol.BroadcastID {
		for _, id := range s.handlerIDs() {
			if id != from {
				s.sendTo(id, from, msg)
			}
		}
		return
	}
	if !s.sendTo(to, from, msg) {
		s.logger.Debug("no handler", "from", from, "to", to, "kind", msg.Kind)
		s.metrics.Dropped("no_handler")
	}
}

// SetMessageHandler registers an in-process UI surface under id, usually
// reserved with NextHandlerID. fn runs on the dispatch queue.
func (s *Server) SetMessageHandler(id uint64, fn MessageHandler) {
	s.queue.Dispatch(func() {
		if !s.register(id, fn) {
			return
		}
		if s.efb != nil {
			s.replayTo(s.efb, id)
		}
	})
}

// UnsetMessageHandler removes the handler registered under id.
func (s *Server) UnsetMessageHandler(id uint64) {
	s.queue.Dispatch(func() {
		s.unregister(id)
	})
}

// VDispatchMessage sends msg from the in-process handler id to the
// simulator. Locally handled messages are answered without reaching it.
func (s *Server) VDispatchMessage(id uint64, msg protocol.Message) {
	s.queue.Dispatch(func() {
		s.route(id, protocol.SimulatorID, msg)
	})
}

// WatchEFBState registers a one-shot watcher for simulator connectivity.
// When the connectivity already differs from current the watcher fires
// right away.
func (s *Server) WatchEFBState(resolve func(bool), reject func(error), current bool) {
	ok := s.queue.Dispatch(func() {
		switch {
		case s.stopped:
			if reject != nil {
				reject(app.ErrAppStopping)
			}
		case s.efbConnected != current:
			if resolve != nil {
				resolve(s.efbConnected)
			}
		default:
			s.efbResolvers.Add(resolve, reject)
		}
	})
	if !ok && reject != nil {
		reject(app.ErrAppStopping)
	}
}

// spawn runs fn on behalf of handler id: in the task group of its session,
// or in the server task group for in-process handlers. Runs on the dispatch
// queue. Returns false when the owner is shutting down.
func (s *Server) spawn(id uint64, fn func(ctx context.Context)) bool {
	if sess := s.session(id); sess != nil {
		if sess.closing {
			return false
		}
		sess.tasks.Go(func() error {
			fn(sess.ctx)
			return nil
		})
		return true
	}
	if s.tasksClosed {
		return false
	}
	s.tasks.Go(func() error {
		fn(s.tasksCtx)
		return nil
	})
	return true
}

func (s *Server) session(id uint64) *Session {
	if id == protocol.SimulatorID {
		return s.efb
	}
	return s.web[id]
}
