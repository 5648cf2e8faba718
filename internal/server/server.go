// Package server runs the bridge between the simulator and the web UI
// surfaces: one restartable HTTP/WebSocket listener, one simulator session,
// any number of web sessions, and in-process message handlers.
//
// All shared state that is not the run state itself (handler registry,
// sessions, presets) is owned by a dispatch queue. The run state (wantRun,
// running, bind failure) is guarded by a mutex that is never held while
// serving.
package server

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/app"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/dialog"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/dispatch"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/metrics"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/presets"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/resolver"
)

// Settings is the persisted configuration the server reads and writes.
type Settings interface {
	Port() uint16
	SetPort(port uint16) error
	Destination() string
	AutoStart() bool
	DefaultPreset(kind string) string
	SetDefaultPreset(kind, name string) error
}

// Lifecycle is the application the server runs in.
type Lifecycle interface {
	Running() bool
	SendServerPortToEFB(port uint16)
}

// MessageHandler receives a message together with the id of its sender.
type MessageHandler func(from uint64, msg protocol.Message)

// Server is the bridge server. Create it with New and release it with Close.
type Server struct {
	settings Settings
	life     Lifecycle
	opener   dialog.Opener
	logger   *log.Logger
	metrics  *metrics.Metrics

	host             string
	handshakeTimeout time.Duration

	queue           *dispatch.Queue
	serverResolvers *resolver.Registry[State]
	efbResolvers    *resolver.Registry[bool]
	nextID          atomic.Uint64

	// run state, guarded by mu
	mu         sync.Mutex
	wantRun    bool
	running    bool
	bindFailed bool
	closing    bool
	cycle      *cycle
	wake       chan struct{}

	acceptorDone chan struct{}
	closeOnce    sync.Once
	// tasks of in-process handlers (file probes, dialogs)
	tasksCtx    context.Context
	tasksCancel context.CancelFunc
	tasks       errgroup.Group
	tasksClosed bool

	// owned by the dispatch queue
	handlers     map[uint64]*handler
	efb          *Session
	web          map[uint64]*Session
	efbConnected bool
	stopped      bool
	fuel         *presets.FuelStore
	deviation    *presets.DeviationStore
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOpener sets the file picker used for OpenFile requests. Defaults to
// dialog.Headless.
func WithOpener(o dialog.Opener) Option {
	return func(s *Server) { s.opener = o }
}

// WithListenHost sets the interface to bind, 0.0.0.0 by default.
func WithListenHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithHandshakeTimeout bounds the wait for the first frame of a connection.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

// New loads the presets and starts the acceptor. The server starts
// listening right away when settings.AutoStart is set.
func New(settings Settings, life Lifecycle, opts ...Option) *Server {
	s := &Server{
		settings:         settings,
		life:             life,
		host:             "0.0.0.0",
		handshakeTimeout: 10 * time.Second,
		serverResolvers:  resolver.New[State](),
		efbResolvers:     resolver.New[bool](),
		wake:             make(chan struct{}, 1),
		acceptorDone:     make(chan struct{}),
		handlers:         make(map[uint64]*handler),
		web:              make(map[uint64]*Session),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "server"})
	}
	if s.opener == nil {
		s.opener = dialog.Headless{}
	}
	s.nextID.Store(protocol.FirstWebID)
	s.wantRun = settings.AutoStart()
	s.tasksCtx, s.tasksCancel = context.WithCancel(context.Background())

	s.queue = dispatch.New("server", dispatch.WithLogger(s.logger.WithPrefix("dispatch")))

	presetLog := presets.WithLogger(s.logger.WithPrefix("presets"))
	s.fuel = presets.NewFuel(settings.Destination(), settings, presetLog)
	s.deviation = presets.NewDeviation(settings.Destination(), settings, presetLog)
	s.queue.Dispatch(func() {
		if err := s.fuel.Load(); err != nil {
			s.logger.Error("load fuel presets", "err", err)
		}
		if err := s.deviation.Load(); err != nil {
			s.logger.Error("load deviation presets", "err", err)
		}
	})

	go s.run()
	return s
}

// Dispatch posts fn to the server queue. See dispatch.Queue.
func (s *Server) Dispatch(fn func()) bool {
	return s.queue.Dispatch(fn)
}

// NextHandlerID reserves an id for an in-process handler. Ids are never
// reused and never collide with web session ids.
func (s *Server) NextHandlerID() uint64 {
	return s.nextID.Add(1) - 1
}

// Close stops the server for good: the listener and every session are torn
// down, pending watchers are rejected with app.ErrAppStopping and the
// dispatch queue is drained. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.wantRun = false
		if s.cycle != nil {
			s.cycle.cancel()
		}
		s.signal()
		s.mu.Unlock()

		<-s.acceptorDone
		s.syncDo(func() { s.tasksClosed = true })
		s.tasksCancel()
		if err := s.tasks.Wait(); err != nil {
			s.logger.Warn("handler task failed", "err", err)
		}

		s.queue.Dispatch(func() {
			s.stopped = true
			s.serverResolvers.RejectAll(app.ErrAppStopping)
			s.efbResolvers.RejectAll(app.ErrAppStopping)
		})
		s.queue.Close()

		s.serverResolvers.Close()
		s.efbResolvers.Close()
	})
}
