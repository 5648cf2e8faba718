package server

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/app"
)

// State is the published server state.
type State string

const (
	// StateSwitching is the placeholder UIs show before the first
	// publication. The server never publishes it.
	StateSwitching   State = "switching"
	StateRunning     State = "running"
	StateStopped     State = "stopped"
	StateInvalidPort State = "invalid_port"
)

// cycle is one listen/serve run. Sessions enter it while they live so the
// acceptor can wait for every one of them before publishing a new state.
type cycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	port   uint16

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newCycle(port uint16) *cycle {
	ctx, cancel := context.WithCancel(context.Background())
	return &cycle{ctx: ctx, cancel: cancel, port: port}
}

func (c *cycle) enter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *cycle) leave() {
	c.wg.Done()
}

// drain refuses new sessions and waits for the current ones.
func (c *cycle) drain() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

// Start asks the acceptor to listen. No-op while running.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.wantRun = true
		s.signal()
	}
}

// Stop closes the listener and every session.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wantRun = false
	if s.cycle != nil {
		s.cycle.cancel()
	}
	s.signal()
}

// Switch toggles between Start and Stop.
func (s *Server) Switch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wantRun = !s.wantRun
	if s.cycle != nil {
		s.cycle.cancel()
	}
	s.signal()
}

// SetServerPort persists port and publishes the resulting state. A running
// server keeps its current listener until restarted.
func (s *Server) SetServerPort(port uint16) error {
	err := s.settings.SetPort(port)
	if err != nil {
		s.logger.Error("persist server port", "port", port, "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindFailed = false
	s.publishLocked(s.stateLocked())
	return err
}

// FlushState publishes the current state to the watchers.
func (s *Server) FlushState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(s.stateLocked())
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Port returns the configured port. It may differ from the port being
// served after SetServerPort until the next restart.
func (s *Server) Port() uint16 {
	return s.settings.Port()
}

// WatchServerState registers a one-shot watcher for the next published
// state. After Close the watcher is rejected with app.ErrAppStopping.
func (s *Server) WatchServerState(resolve func(State), reject func(error)) {
	ok := s.queue.Dispatch(func() {
		if s.stopped {
			if reject != nil {
				reject(app.ErrAppStopping)
			}
			return
		}
		s.serverResolvers.Add(resolve, reject)
	})
	if !ok && reject != nil {
		reject(app.ErrAppStopping)
	}
}

func (s *Server) stateLocked() State {
	switch {
	case s.running:
		return StateRunning
	case s.settings.Port() == 0 || s.bindFailed:
		return StateInvalidPort
	default:
		return StateStopped
	}
}

// publishLocked queues the notification so that watchers see states in the
// order they were published.
func (s *Server) publishLocked(st State) {
	s.queue.Dispatch(func() {
		s.metrics.ServerState(string(st))
		s.serverResolvers.NotifyAll(st)
	})
}

// signal wakes the acceptor. Callers hold mu.
func (s *Server) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the acceptor loop. The first iteration evaluates wantRun right
// away, later ones wait for Start, Stop, Switch or Close.
func (s *Server) run() {
	defer close(s.acceptorDone)

	s.mu.Lock()
	defer s.mu.Unlock()

	first := true
	for {
		woken := !first
		if woken {
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		first = false

		if s.closing || !s.life.Running() {
			return
		}
		if !s.wantRun {
			// a Stop or Switch on an idle server still answers its watchers
			if woken {
				s.publishLocked(s.stateLocked())
			}
			continue
		}

		port := s.settings.Port()
		if port == 0 {
			s.publishLocked(StateInvalidPort)
			continue
		}

		addr := net.JoinHostPort(s.host, strconv.Itoa(int(port)))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.logger.Error("bind failed", "addr", addr, "err", err)
			s.bindFailed = true
			s.wantRun = false
			s.publishLocked(StateInvalidPort)
			continue
		}

		c := newCycle(port)
		s.cycle = c
		s.bindFailed = false
		s.running = true
		s.publishLocked(StateRunning)
		s.logger.Info("listening", "addr", ln.Addr().String())
		s.mu.Unlock()

		s.life.SendServerPortToEFB(port)
		s.serve(c, ln)
		s.life.SendServerPortToEFB(0)
		c.cancel()
		c.drain()

		s.mu.Lock()
		s.cycle = nil
		// wake-ups that targeted this cycle are spent
		select {
		case <-s.wake:
		default:
		}
		s.running = false
		s.wantRun = false
		s.publishLocked(s.stateLocked())
		s.logger.Info("stopped", "port", port)
		if s.closing {
			return
		}
	}
}
