package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/match-service/config"
	"github.com/cwrk-planet/match-service/internal/pg"
	"github.com/cwrk-planet/match-service/internal/postgres"
	"github.com/cwrk-planet/match-service/internal/retry"
	"github.com/cwrk-planet/match-service/internal/service"
	httpx "github.com/cwrk-planet/match-service/internal/transport/http"
	"github.com/cwrk-planet/match-service/internal/transport/ws"
	"github.com/cwrk-planet/match-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting match-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pg.NewPool(ctx, pg.Config{DSN: cfg.Postgres.DSN, ApplicationName: cfg.Logging.Service})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- repos ---
	roomRepo := postgres.NewRoomRepository(pool)
	memberRepo := postgres.NewMemberRepository(pool)
	voteRepo := postgres.NewVoteRepository(pool)
	connRepo := postgres.NewConnectionRepository(pool)
	movieRepo := postgres.NewMovieRepository(pool)

	// --- hub + services ---
	hub := ws.NewHub()

	policy := retry.Policy{
		Attempts:  cfg.Voting.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay(),
		MaxDelay:  2 * time.Second,
	}

	eventSvc := service.NewEventService(hub, memberRepo, voteRepo, movieRepo)
	eventSvc.SetPerVoteETA(cfg.PerVoteETA())

	voteSvc := service.NewVoteService(roomRepo, memberRepo, voteRepo, eventSvc, policy, postgres.IsTransient)
	stateSvc := service.NewStateService(roomRepo, memberRepo, voteRepo, connRepo, movieRepo, policy, postgres.IsTransient)

	connSvc := service.NewConnectionService(connRepo, memberRepo, stateSvc, eventSvc, policy, postgres.IsTransient)
	connSvc.SetDebounceWindow(cfg.DebounceWindow())
	connSvc.SetDisconnectTTL(cfg.DisconnectTTL())

	go connSvc.RunSweeper(ctx, cfg.SweepInterval())

	// bulk recovery: после рестарта всем живым комнатам уходит свежий снапшот
	go func() {
		if n, err := connSvc.ForceSyncAll(ctx); err != nil {
			slog.Warn("startup resync failed", "err", err)
		} else if n > 0 {
			slog.Info("startup resync", "rooms", n)
		}
	}()

	// --- HTTP + WS ---
	wsServer := ws.NewServer(hub, connSvc)
	handler := httpx.NewHandler(voteSvc, stateSvc, connSvc)
	router := httpx.NewRouter(handler, connSvc, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
