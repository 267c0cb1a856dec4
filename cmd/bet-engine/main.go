package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/engine"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/events"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/hub"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/ledger"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/normalizer"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/scanner"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/sources"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/contracts"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env if present; real env vars win
	if err := godotenv.Load(); err == nil {
		fmt.Println("✓ Loaded .env file")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core state
	opportunityCache := cache.New()
	positionLedger := ledger.New()
	bus := events.NewBus()

	// Event hub for websocket consumers
	eventHub := hub.New()
	bus.Subscribe(eventHub)
	go eventHub.Run(ctx)

	// Optional Redis stream publishing
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			fmt.Printf("✗ Invalid REDIS_URL: %v\n", err)
			os.Exit(1)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}

		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fmt.Printf("✗ Redis connection failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Connected to Redis")

		streamPublisher := publisher.NewStreamPublisher(redisClient)
		bus.Subscribe(streamPublisher)
		go streamPublisher.Run(ctx)
	} else {
		fmt.Println("⚠️  REDIS_URL not set, stream publishing disabled")
	}

	// Source adapters share one rate-limited feed client
	feedClient := sources.NewFeedClient(cfg.Scan.RequestsPerSecond)
	registry := sources.NewRegistry()
	mustRegister(registry, sources.NewValueBetAdapter(feedClient, cfg.Scan.ValueBetFeedURL))
	mustRegister(registry, sources.NewArbitrageAdapter(feedClient, cfg.Scan.ArbitrageFeedURL))
	mustRegister(registry, sources.NewPropAdapter(feedClient, cfg.Scan.PropFeedURL))

	// Pipeline
	norm := normalizer.New(cfg.Risk.KellyMultiplier, cfg.Risk.KellyCap, cfg.Scan.OpportunityTTL)
	scan := scanner.New(
		registry,
		norm,
		opportunityCache,
		bus,
		cfg.Risk,
		nil, // no live bankroll provider, reference bankroll applies
		cfg.Scan.Interval,
		cfg.Scan.FetchTimeout,
	)
	scan.Start(ctx)

	betEngine := engine.New(opportunityCache, positionLedger, bus, cfg.Risk, nil)

	// Router
	handler := handlers.NewHandler(betEngine, scan, eventHub, ctx)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handler.HealthCheck)
	r.Get("/ws", handler.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/opportunities", handler.GetOpportunities)
		r.Get("/portfolio", handler.GetPortfolio)
		r.Get("/performance", handler.GetPerformance)
		r.Get("/positions", handler.GetPositions)
		r.Post("/bets", handler.PlaceBet)
		r.Post("/positions/{id}/close", handler.ClosePosition)

		r.Post("/scanner/start", handler.StartScanner)
		r.Post("/scanner/stop", handler.StopScanner)
		r.Get("/scanner/status", handler.ScannerStatus)
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		fmt.Printf("✓ Bet Engine started on %s\n", cfg.Server.Addr)
		fmt.Printf("  Scan Interval: %s\n", cfg.Scan.Interval)
		fmt.Printf("  Sources: %d\n", registry.Count())
		fmt.Printf("  Base Bankroll: $%.2f\n", cfg.Risk.BaseBankroll)
		fmt.Printf("  Kelly: %.2fx, cap %.0f%%\n", cfg.Risk.KellyMultiplier, cfg.Risk.KellyCap*100)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("✗ Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n✓ Shutting down gracefully...")

	scan.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("✗ Shutdown error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Bet Engine stopped")
}

// mustRegister wires an adapter or dies; duplicate keys are a programming error
func mustRegister(r *sources.Registry, adapter contracts.SourceAdapter) {
	if err := r.Register(adapter); err != nil {
		fmt.Printf("✗ %v\n", err)
		os.Exit(1)
	}
}
