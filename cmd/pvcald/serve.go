package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/simd"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the calibration service (HTTP and gRPC)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// newService wires the policy manager, metrics, notifier and executor behind a Service
func newService(cfg *config.Config) (*simd.Service, *simd.Notifier) {
	pm := policy.NewPolicyManager(cfg)
	collector := metrics.NewCollector()
	notifier := simd.NewNotifier(cfg.Callback, pm, collector)

	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store, simd.ExecutorOptions{
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		MaxWorkers:        cfg.MaxWorkers,
		Notifier:          notifier,
		Metrics:           collector,
	})
	svc := simd.NewService(store, executor, simd.ServiceOptions{
		Defaults: cfg.Defaults,
		Limiter:  pm.GetRateLimiting(),
	})
	return svc, notifier
}

// serve runs both fronts until ctx is done, then drains them
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	svc, notifier := newService(cfg)

	// TODO: configure TLS for the gRPC and HTTP listeners before exposing them beyond a private network.
	grpcServer := grpc.NewServer()
	simd.RegisterCalibrationServiceServer(grpcServer, simd.NewCalibrationGRPCServer(svc))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
	}

	// WriteTimeout stays unset: /events streams for the lifetime of a run.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           simd.NewHTTPServer(svc).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc.Executor().StopAll()
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	notifier.Wait()
	return nil
}
