package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/realtime"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

var (
	watchTypes      []string
	watchNoPrefetch bool
	watchMetrics    string
	connectTimeout  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream realtime events",
	Long: `Connect to the tenant's realtime channel and print every event as it
arrives. The connection reconnects with backoff and falls back to polling
the unread count when the server stays unreachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchMetrics
		if !cmd.Flags().Changed("metrics-addr") {
			addr = config.GetString("metrics.addr")
		}

		reg := prometheus.NewRegistry()
		s, err := openSession(reg)
		if err != nil {
			return err
		}
		defer closeSession(s)

		if addr != "" {
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			stop := serveMetrics(addr, reg)
			defer stop()
		}

		return service.NewWatchService(s, output.Stdout()).Watch(cmd.Context(), service.WatchOptions{
			Types:    watchTypes,
			Prefetch: !watchNoPrefetch,
		})
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect once and report the connection state",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		settled := make(chan struct{}, 1)
		unsub := s.Dispatcher.Subscribe(func(ev realtime.Event) {
			if sc, ok := ev.(realtime.StateChanged); ok && (sc.To == realtime.StateConnected || sc.To == realtime.StateFailed) {
				select {
				case settled <- struct{}{}:
				default:
				}
			}
		})
		defer unsub()

		s.Start()
		select {
		case <-settled:
		case <-ctx.Done():
		}
		return output.Stdout().Snapshot(s.Manager.Snapshot())
	}),
}

func closeSession(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		logger.Warn("Session did not close cleanly", "error", err)
	}
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server forced to shutdown", "error", err)
		}
	}
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchTypes, "types", nil, "Only print these event types, e.g. notification:new,state")
	watchCmd.Flags().BoolVar(&watchNoPrefetch, "no-prefetch", false, "Do not load the feed and inbox before connecting")
	watchCmd.Flags().StringVar(&watchMetrics, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 10*time.Second, "How long to wait for the connection to settle")
}
