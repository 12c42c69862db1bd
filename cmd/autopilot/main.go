package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/descent-autopilot/core"
	"github.com/signalsfoundry/descent-autopilot/internal/config"
	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/internal/observability"
	"github.com/signalsfoundry/descent-autopilot/internal/vessel"
	"github.com/signalsfoundry/descent-autopilot/internal/vessellink"
	"github.com/signalsfoundry/descent-autopilot/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML, YAML or JSON config file (defaults to $AUTOPILOT_CONFIG)")
	simTick := flag.Duration("sim-tick", 20*time.Millisecond, "Physics step of the in-process vessel in sim mode")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(config.PathFromEnv(*configPath))
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewAutopilotCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector.Handler(), log)

	port, closePort, err := connect(ctx, cfg.Link, *simTick, log)
	if err != nil {
		log.Error(ctx, "failed to connect to vessel", logging.String("mode", string(cfg.Link.Mode)), logging.Err(err))
		os.Exit(1)
	}
	defer closePort()

	ap := core.New(port, cfg.Autopilot,
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
	)
	ctx, _ = logging.EnsureRunID(ctx)

	if err := ap.Initialize(ctx); err != nil {
		log.Error(ctx, "autopilot initialisation failed", logging.Err(err))
		os.Exit(1)
	}
	if err := ap.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "autopilot aborted", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// connect returns the vessel the autopilot flies and a function releasing it.
func connect(ctx context.Context, link config.Link, simTick time.Duration, log logging.Logger) (core.EnvironmentPort, func(), error) {
	switch link.Mode {
	case config.LinkGRPC:
		linkMetrics, err := observability.NewLinkCollector(nil)
		if err != nil {
			return nil, nil, err
		}
		conn, err := vessellink.Dial(link.Addr, linkMetrics)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "dialled vessel link", logging.String("addr", link.Addr))
		return vessellink.NewClient(conn), func() { _ = conn.Close() }, nil
	default:
		v, err := vessel.New(vessel.DefaultConfig(), vessel.DefaultParts(), log.With(logging.String("component", "vessel")))
		if err != nil {
			return nil, nil, err
		}
		tc := timectrl.NewTimeController(time.Now(), simTick, timectrl.RealTime)
		v.Attach(tc)
		simCtx, cancel := context.WithCancel(ctx)
		done := tc.Start(simCtx, 0)
		log.Info(ctx, "flying in-process vessel", logging.Duration("tick", simTick))
		return v, func() {
			cancel()
			<-done
		}, nil
	}
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
