// Package app holds the process-wide lifecycle: the running flag and the
// propagation of the server port to the simulator bridge.
package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ErrAppStopping is returned once the application has been terminated, and
// is passed to every pending waiter on shutdown.
var ErrAppStopping = errors.New("app: stopping")

// PortSink receives the port the simulator must connect to. 0 means the
// server is not listening.
type PortSink interface {
	PublishPort(ctx context.Context, port uint16) error
}

// App is the application context shared by the server and the CLI.
type App struct {
	logger *log.Logger
	sink   PortSink

	running atomic.Bool
	done    chan struct{}

	mu    sync.Mutex
	hooks []func()
}

// Option configures an App.
type Option func(*App)

func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithPortSink sets where SendServerPortToEFB publishes.
func WithPortSink(s PortSink) Option {
	return func(a *App) { a.sink = s }
}

// New returns a running App.
func New(opts ...Option) *App {
	a := &App{done: make(chan struct{})}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "app"})
	}
	a.running.Store(true)
	return a
}

// Running reports whether Terminate has not been called yet.
func (a *App) Running() bool {
	return a.running.Load()
}

// Done is closed by Terminate.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// OnTerminate registers fn to run, in registration order, when the app is
// terminated.
func (a *App) OnTerminate(fn func()) {
	a.mu.Lock()
	a.hooks = append(a.hooks, fn)
	a.mu.Unlock()
}

// Terminate stops the application. The second call returns ErrAppStopping.
func (a *App) Terminate() error {
	if !a.running.CompareAndSwap(true, false) {
		return ErrAppStopping
	}
	close(a.done)

	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// SendServerPortToEFB forwards port to the simulator bridge. Failures are
// logged: the server keeps running whether or not the bridge is reachable.
func (a *App) SendServerPortToEFB(port uint16) {
	if a.sink == nil {
		a.logger.Debug("no port sink configured", "port", port)
		return
	}
	if err := a.sink.PublishPort(context.Background(), port); err != nil {
		a.logger.Warn("publish server port", "port", port, "err", err)
	}
}
