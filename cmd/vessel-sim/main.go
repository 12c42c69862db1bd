package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/descent-autopilot/internal/config"
	"github.com/signalsfoundry/descent-autopilot/internal/logging"
	"github.com/signalsfoundry/descent-autopilot/internal/observability"
	"github.com/signalsfoundry/descent-autopilot/internal/vessel"
	"github.com/signalsfoundry/descent-autopilot/internal/vessellink"
	"github.com/signalsfoundry/descent-autopilot/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (defaults to $AUTOPILOT_CONFIG); only tracing.* is read")
	serviceName := flag.String("service-name", "vessel-sim", "service.name reported on vessel spans")
	grpcAddr := flag.String("grpc-addr", ":50051", "TCP address the vessel link gRPC server listens on")
	metricsAddr := flag.String("metrics-addr", ":9091", "HTTP address for Prometheus /metrics")
	tick := flag.Duration("tick", 20*time.Millisecond, "physics step")
	accelerated := flag.Bool("accelerated", false, "step as fast as possible instead of in real time")
	warp := flag.Float64("warp", 1, "reported time warp rate")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(config.PathFromEnv(*configPath))
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	tracing := cfg.Tracing
	tracing.ServiceName = *serviceName

	shutdownTracing, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewLinkCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	vcfg := vessel.DefaultConfig()
	vcfg.WarpRate = *warp
	v, err := vessel.New(vcfg, vessel.DefaultParts(), log)
	if err != nil {
		log.Error(ctx, "failed to assemble vessel", logging.Err(err))
		os.Exit(1)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now(), *tick, mode)
	v.Attach(tc)

	server := vessellink.NewGRPCServer(v, log, collector)
	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", *grpcAddr), logging.Err(err))
		os.Exit(1)
	}

	log.Info(ctx, "starting vessel link server",
		logging.String("addr", *grpcAddr),
		logging.Duration("tick", *tick),
		logging.String("mode", mode.String()))
	go func() {
		if err := server.Serve(lis); err != nil {
			log.Error(ctx, "gRPC server exited", logging.Err(err))
		}
	}()

	done := tc.Start(ctx, 0)
	go watchLanding(ctx, v, log)

	<-ctx.Done()
	<-done

	log.Info(context.Background(), "shutting down vessel link server")
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// watchLanding logs once when the vessel is back on the ground.
func watchLanding(ctx context.Context, v *vessel.Vessel, log logging.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v.Landed() {
				log.Info(ctx, "vessel landed")
				return
			}
		}
	}
}

func serveMetrics(addr string, collector *observability.LinkCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

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
