// Package portlink propagates the listening port to the simulator bridge.
//
// The bridge reads the port from a Redis key and subscribes to the channel of
// the same name. 0 means the server is not listening.
package portlink

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Status is the publisher state, exposed for logs and the probe command.
type Status struct {
	Connected   bool      `json:"connected"`
	LastPort    uint16    `json:"last_port"`
	LastSent    time.Time `json:"last_sent,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Republishes int       `json:"republishes"`
}

// Publisher writes the port to Redis and re-sends it after an outage.
type Publisher struct {
	rdb      *redis.Client
	key      string
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	connected bool
	havePort  bool
	port      uint16
	lastSent  time.Time
	lastErr   string
	republish int
}

type Option func(*Publisher)

// WithInterval sets the health check interval used by Run (default 5s).
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) { p.interval = d }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

func New(rdb *redis.Client, key string, opts ...Option) *Publisher {
	p := &Publisher{
		rdb:       rdb,
		key:       key,
		interval:  5 * time.Second,
		connected: true,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "portlink"})
	}
	return p
}

// PublishPort stores port under the key and announces it on the channel.
// The port is remembered even when Redis is down so Run can send it later.
func (p *Publisher) PublishPort(ctx context.Context, port uint16) error {
	p.mu.Lock()
	p.port = port
	p.havePort = true
	p.mu.Unlock()

	return p.send(ctx, port)
}

func (p *Publisher) send(ctx context.Context, port uint16) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	value := strconv.FormatUint(uint64(port), 10)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, value, 0)
		pipe.Publish(ctx, p.key, value)
		return nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.connected = false
		p.lastErr = err.Error()
		return fmt.Errorf("publish port %d: %w", port, err)
	}
	p.connected = true
	p.lastErr = ""
	p.lastSent = time.Now()
	return nil
}

// Status returns a copy of the current state.
func (p *Publisher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Connected:   p.connected,
		LastPort:    p.port,
		LastSent:    p.lastSent,
		LastError:   p.lastErr,
		Republishes: p.republish,
	}
}

// Run pings Redis until ctx is cancelled. When the connection comes back
// the last port is published again.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Publisher) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := p.rdb.Ping(pingCtx).Err()
	cancel()

	p.mu.Lock()
	was := p.connected
	if err != nil {
		p.connected = false
		p.lastErr = err.Error()
		p.mu.Unlock()
		if was {
			p.logger.Warn("redis connection lost", "err", err)
		}
		return
	}
	p.connected = true
	port, have := p.port, p.havePort
	p.mu.Unlock()

	if was || !have {
		return
	}
	p.logger.Info("redis connection restored, republishing", "port", port)
	if err := p.send(ctx, port); err != nil {
		p.logger.Warn("republish failed", "err", err)
		return
	}
	p.mu.Lock()
	p.republish++
	p.mu.Unlock()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// LogSink only logs the port. Used when no Redis address is configured.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) PublishPort(_ context.Context, port uint16) error {
	if s.Logger != nil {
		s.Logger.Info("server port for simulator", "port", port)
	}
	return nil
}
