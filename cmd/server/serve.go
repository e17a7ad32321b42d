package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Relay/internal/adapters/http"
	wssignal "github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/app/messaging"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/dkeye/Relay/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket relay",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Sessions left open by a previous process have no live connections.
	if n, err := store.EndOpenCallSessions(ctx, time.Now()); err != nil {
		return fmt.Errorf("end orphaned calls: %w", err)
	} else if n > 0 {
		log.Info().Int64("ended", n).Msg("ended orphaned call sessions")
	}

	metrics := observability.NewMetrics()
	reg := app.NewRegistry(app.PolicyByName(cfg.Backpressure), metrics)
	rooms := app.NewRoomManager(reg)
	coord := calls.NewCoordinator(store, rooms, reg, calls.Options{RingTimeout: cfg.RingTimeout, Metrics: metrics})
	pipe := messaging.NewPipeline(store, rooms, metrics)
	o := orch.New(reg, rooms, coord, pipe)

	ctl := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
		EventRate:  cfg.EventRate,
		EventBurst: cfg.EventBurst,
		Metrics:    metrics,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Store: store, Signal: ctl, Metrics: metrics})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return coord.Run(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		// Hijacked websocket connections are not tracked by the server.
		o.Shutdown()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
