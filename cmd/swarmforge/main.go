package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	sfhttp "github.com/davrk/swarmforge/internal/adapter/http"
	sfnats "github.com/davrk/swarmforge/internal/adapter/nats"
	"github.com/davrk/swarmforge/internal/adapter/natsexec"
	swarmotel "github.com/davrk/swarmforge/internal/adapter/otel"
	"github.com/davrk/swarmforge/internal/adapter/postgres"
	"github.com/davrk/swarmforge/internal/adapter/ristretto"
	"github.com/davrk/swarmforge/internal/adapter/ws"
	"github.com/davrk/swarmforge/internal/config"
	"github.com/davrk/swarmforge/internal/logger"
	"github.com/davrk/swarmforge/internal/port/executor"
	"github.com/davrk/swarmforge/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"workers", cfg.Swarm.Workers,
		"scouts", cfg.Swarm.Scouts,
		"soldiers", cfg.Swarm.Soldiers,
		"queens", cfg.Swarm.Queens,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := swarmotel.Setup(ctx, cfg.Otel, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := swarmotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := sfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	taskCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer taskCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	eventStore := postgres.NewEventStore(pool)
	emitter := service.NewEmitter(hub, queue, eventStore, metrics)

	execs := executor.NewRegistry()
	natsexec.RegisterTaskKinds(execs, queue.Conn(), cfg.Swarm.ExecutorTimeout)

	orch, err := service.NewOrchestrator(cfg.Swarm, execs, emitter)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	// --- HTTP ---
	handlers := &sfhttp.Handlers{
		Orchestrator: orch,
		Events:       eventStore,
		Cache:        taskCache,
		CacheTTL:     cfg.Cache.TTL,
	}

	r := chi.NewRouter()
	r.Use(sfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(sfhttp.RequestID)
	r.Use(sfhttp.Logger)
	r.Use(swarmotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(queue, orch))
	r.Get("/ws", hub.HandleWS)
	sfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return orch.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Swarm.ShutdownGrace+10*time.Second)
		defer cancel()

		if err := orch.Shutdown(drainCtx); err != nil {
			slog.Warn("orchestrator shutdown", "error", err)
		}
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}

		srvCtx, srvCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer srvCancel()
		return srv.Shutdown(srvCtx)
	})

	return g.Wait()
}

// healthHandler reports liveness plus broker connectivity and swarm health.
func healthHandler(queue *sfnats.Queue, orch *service.Orchestrator) http.HandlerFunc {
	type healthStatus struct {
		Status      string  `json:"status"`
		NATS        bool    `json:"nats_connected"`
		SwarmHealth float64 `json:"swarm_health"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		st := orch.GetSwarmStatus(false)
		status := healthStatus{
			Status:      "ok",
			NATS:        queue.IsConnected(),
			SwarmHealth: st.OverallHealth,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
