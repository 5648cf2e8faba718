package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/app"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/config"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/metrics"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/portlink"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/server"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/settings"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts.configPath, newLogger(cfg))
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, configPath string, logger *log.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.SettingsDB), 0o755); err != nil {
		return fmt.Errorf("settings dir: %w", err)
	}
	st, err := settings.Open(cfg.SettingsDB, settings.Defaults{
		Port:        cfg.Port,
		Destination: cfg.Destination,
		AutoStart:   cfg.AutoStart,
	})
	if err != nil {
		return fmt.Errorf("open settings %s: %w", cfg.SettingsDB, err)
	}
	defer st.Close()

	var sink app.PortSink = portlink.LogSink{Logger: logger.WithPrefix("portlink")}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pub := portlink.New(rdb, cfg.RedisKey, portlink.WithLogger(logger.WithPrefix("portlink")))
		defer pub.Close()
		go pub.Run(ctx)
		sink = pub
	}

	a := app.New(app.WithLogger(logger.WithPrefix("app")), app.WithPortSink(sink))

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(prometheus.NewRegistry())
		msrv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
		defer msrv.Close()
	}

	srv := server.New(st, a,
		server.WithLogger(logger.WithPrefix("server")),
		server.WithMetrics(m),
		server.WithListenHost(cfg.ListenHost),
		server.WithHandshakeTimeout(cfg.HandshakeTimeout),
	)
	a.OnTerminate(srv.Close)
	go logStates(ctx, srv, logger)

	if cfg.Watch && configPath != "" {
		lastPort := cfg.Port
		w := config.NewWatcher(configPath, func(c config.Config) {
			logger.SetLevel(c.Level())
			if c.Port != lastPort {
				lastPort = c.Port
				logger.Info("config port changed", "port", c.Port)
				if err := srv.SetServerPort(c.Port); err != nil {
					logger.Warn("apply config port", "port", c.Port, "err", err)
				}
			}
		}, config.WithWatchLogger(logger.WithPrefix("config")))
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("config watcher", "err", err)
			}
		}()
	}

	logger.Info("bridge ready", "port", st.Port(), "destination", st.Destination(), "auto_start", st.AutoStart())
	<-ctx.Done()
	logger.Info("shutting down")
	return a.Terminate()
}

// logStates logs every published server state until the server closes.
func logStates(ctx context.Context, srv *server.Server, logger *log.Logger) {
	states := make(chan server.State, 1)
	for {
		stopped := make(chan error, 1)
		srv.WatchServerState(
			func(st server.State) { states <- st },
			func(err error) { stopped <- err },
		)
		select {
		case st := <-states:
			logger.Info("server state", "state", st)
		case <-stopped:
			return
		case <-ctx.Done():
			return
		}
	}
}
