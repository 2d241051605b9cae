package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/mwynne/curio/internal/adapters/api"
	"github.com/mwynne/curio/internal/adapters/database"
	"github.com/mwynne/curio/internal/adapters/events"
	"github.com/mwynne/curio/internal/domain/mirror"
	pkgdb "github.com/mwynne/curio/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Connection Pool
	dbURL := os.Getenv("MIRROR_DB_URL")
	if dbURL == "" {
		dbURL = os.Getenv("MARKET_DB_URL")
	}
	if dbURL == "" {
		logger.Error("MIRROR_DB_URL is not set")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect RabbitMQ
	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	amqpConn, err := amqp091.Dial(rabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 3. Wire the mirror service
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	mirrorRepo := database.NewPostgresMirrorRepository(pool)
	mirrorService := mirror.NewService(mirrorRepo, txManager)

	consumer := events.NewMirrorConsumer(amqpConn, mirrorService, logger)

	// 4. Read-side stats API
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	api.NewMirrorHandler(mirrorService, logger).RegisterRoutes(router)

	addr := os.Getenv("MIRROR_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Mirror Consumer...")
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Mirror API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
