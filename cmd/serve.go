package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tomobs/internal/handlers"
	"tomobs/internal/metrics"
	"tomobs/internal/middleware"
	"tomobs/internal/repository"
	"tomobs/internal/service"
	"tomobs/internal/thumbnail"
	"tomobs/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("=== TOM Observations Starting ===")

	db, closeDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	redisClient, err := redis.Connect(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	metrics.Init()

	// Repositories
	targetRepo := repository.NewTargetRepository(db)
	obsRepo := repository.NewObservationRepository(db)
	productRepo := repository.NewDataProductRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services
	observationService := service.NewObservationService(registry, obsRepo, targetRepo)
	statusService := service.NewStatusService(registry, obsRepo)
	productService := service.NewDataProductService(productRepo, groupRepo, targetRepo, obsRepo, cacheRepo, store,
		service.DataProductConfig{
			Thumbnail: thumbnail.Renderer{
				MaxWidth:  cfg.Thumbnail.MaxWidth,
				MaxHeight: cfg.Thumbnail.MaxHeight,
			},
			ThumbnailTTL: cfg.Thumbnail.CacheTTL,
		})
	targetService := service.NewTargetService(targetRepo, observationService, productService)

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.RequestIDMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Location", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting (production only)
	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter))
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d",
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(r.Group(cfg.App.BaseURL), handlers.Handlers{
		Observations: handlers.NewObservationHandler(observationService, statusService, cfg.App.BaseURL),
		DataProducts: handlers.NewDataProductHandler(productService),
		Targets:      handlers.NewTargetHandler(targetService),
		System: handlers.NewSystemHandler(
			map[string]handlers.Counter{
				"targets":      targetRepo,
				"observations": obsRepo,
				"dataproducts": productRepo,
			},
			func() (map[string]string, error) { return redis.GetStats(redisClient) },
			registry.Names,
		),
		// facility portals get at most one submission per second per client
		Submit: middleware.IPRateLimitMiddleware(middleware.NewIPRateLimiter(rate.Every(time.Second), 5)),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.App.Port)
		log.Printf("API available at http://localhost:%s%s", cfg.App.Port, cfg.App.BaseURL)
		log.Printf("Health check: http://localhost:%s%s/health", cfg.App.Port, cfg.App.BaseURL)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server exited properly")
	return nil
}
