// rmacsd -- Resilient Mesh Automatic Channel Selection daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	rmacsapi "github.com/tiiuae/rmacs/internal/api"
	"github.com/tiiuae/rmacs/internal/config"
	rmacsmetrics "github.com/tiiuae/rmacs/internal/metrics"
	"github.com/tiiuae/rmacs/internal/radio"
	"github.com/tiiuae/rmacs/internal/rmacs"
	"github.com/tiiuae/rmacs/internal/transport"
	appversion "github.com/tiiuae/rmacs/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	// 2. Load config.
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 3. Set up logger.
	logger := newLogger(cfg.Log)

	logger.Info("rmacsd starting",
		slog.String("version", appversion.Version),
		slog.String("primary_radio", cfg.RMACS.PrimaryRadio),
		slog.Bool("orchestrator_node", cfg.RMACS.OrchestratorNode),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("api_addr", cfg.API.Addr),
	)

	logRadioInterfaceHealth(cfg, logger)

	// 4. Create Prometheus metrics collector.
	reg := prometheus.NewRegistry()
	collector := rmacsmetrics.NewCollector(reg)

	// 5. Run everything.
	if err := runDaemon(cfg, collector, reg, logger); err != nil {
		logger.Error("rmacsd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("rmacsd stopped")
	return 0
}

// runDaemon wires the transport, radio collaborators, FSM drivers, and
// HTTP servers together and runs them under an errgroup with
// signal-aware shutdown.
func runDaemon(cfg *config.Config, collector *rmacsmetrics.Collector, reg *prometheus.Registry, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	trans, err := transport.New(gCtx, cfg.RMACS.RadioInterfaces, cfg.Multicast, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := trans.Close(); err != nil {
			logger.Warn("error closing transport", slog.String("error", err.Error()))
		}
	}()

	scanner := radio.NewSSAnalyserScanner("/var/lib/rmacsd/scan.bin")
	probe := radio.NewSysfsProbe()
	controller := radio.NewIWController()

	client := rmacs.NewClient(cfg.RMACS, trans, scanner, probe, controller, collector, logger)

	var server *rmacs.Server
	if cfg.RMACS.OrchestratorNode {
		server = rmacs.NewServer(cfg.RMACS, trans, controller, collector, logger)
		client.SetServerInbound(server.HandleInbound)
	}

	g.Go(func() error {
		client.Run(gCtx)
		return nil
	})

	if server != nil {
		g.Go(func() error {
			server.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		return runLedgerGauges(gCtx, server, collector, client)
	})

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	apiSrv := newAPIServer(cfg.API, client, server, logger)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
	g.Go(func() error {
		logger.Info("operator API listening", slog.String("addr", cfg.API.Addr))
		return listenAndServe(gCtx, &lc, apiSrv, cfg.API.Addr)
	})

	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv, apiSrv)
	})

	return g.Wait()
}

// runLedgerGauges periodically republishes the ledger size, the
// per-frequency average quality, and the dedup set size to the metrics
// collector. Idle on a non-orchestrator node beyond the dedup gauge.
func runLedgerGauges(ctx context.Context, server *rmacs.Server, collector *rmacsmetrics.Collector, client *rmacs.Client) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			collector.SetDedupSetSize(client.Dedup().Len())

			if server == nil {
				continue
			}
			entries := server.Ledger().Snapshot()
			collector.SetLedgerFrequencies(len(entries))
			for _, e := range entries {
				if e.AverageQuality != nil {
					collector.SetLedgerAverageQuality(e.Freq, *e.AverageQuality)
				}
			}
		}
	}
}

// logRadioInterfaceHealth logs each configured control-channel
// interface's link operstate and the configured channel bandwidth as a
// startup diagnostic.
func logRadioInterfaceHealth(cfg *config.Config, logger *slog.Logger) {
	controller := radio.NewIWController()

	for _, iface := range cfg.RMACS.RadioInterfaces {
		state, err := controller.Operstate(context.Background(), iface)
		if err != nil {
			logger.Warn("could not read radio interface operstate",
				slog.String("interface", iface), slog.Any("error", err))
			continue
		}
		logger.Info("radio interface state",
			slog.String("interface", iface),
			slog.String("operstate", state),
			slog.Int("channel_bandwidth_mhz", cfg.RMACS.ChannelBandwidth),
		)
	}
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd, at half the
// configured WatchdogSec interval. Exits immediately if no watchdog is
// configured.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

const shutdownTimeout = 10 * time.Second

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newAPIServer(cfg config.APIConfig, client *rmacs.Client, server *rmacs.Server, logger *slog.Logger) *http.Server {
	var statusProvider rmacsapi.ServerStatusProvider
	var broadcaster rmacsapi.Broadcaster
	if server != nil {
		statusProvider = server
		broadcaster = server
	}

	handler := rmacsapi.New(client, statusProvider, broadcaster, client.Dedup(), logger)
	return rmacsapi.NewHTTPServer(cfg.Addr, handler)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.DefaultConfig(), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
