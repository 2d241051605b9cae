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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mwynne/curio/internal/adapters/api"
	"github.com/mwynne/curio/internal/adapters/cache"
	"github.com/mwynne/curio/internal/adapters/database"
	"github.com/mwynne/curio/internal/domain/accreditation"
	"github.com/mwynne/curio/internal/domain/auctions"
	"github.com/mwynne/curio/internal/domain/delegation"
	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/internal/domain/users"
	"github.com/mwynne/curio/pkg/auth"
	pkgdb "github.com/mwynne/curio/pkg/database"
	pkgevents "github.com/mwynne/curio/pkg/events"
)

const itemCacheTTL = 5 * time.Minute

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load JWT keys
	privateKeyPath := os.Getenv("JWT_PRIVATE_KEY_PATH")
	publicKeyPath := os.Getenv("JWT_PUBLIC_KEY_PATH")
	if privateKeyPath == "" || publicKeyPath == "" {
		logger.Error("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set")
		os.Exit(1)
	}

	privateKeyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		logger.Error("Failed to read private key", "path", privateKeyPath, "error", err)
		os.Exit(1)
	}
	publicKeyPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "path", publicKeyPath, "error", err)
		os.Exit(1)
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "curio-market"
	}

	signer, err := auth.NewSigner(privateKeyPEM, publicKeyPEM, issuer)
	if err != nil {
		logger.Error("Failed to create signer", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Postgres Connection Pool
	dbURL := os.Getenv("MARKET_DB_URL")
	if dbURL == "" {
		logger.Error("MARKET_DB_URL is not set")
		os.Exit(1)
	}

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
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

	// 3. Connect RabbitMQ for the outbox relay
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

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 4. Connect Redis for the item read cache
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Error("REDIS_URL is not set")
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisURL})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Unable to ping redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	// 5. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	itemRepo := database.NewPostgresItemRepository(pool)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	grantRepo := database.NewPostgresGrantRepository(pool)
	accredRepo := database.NewPostgresAccreditationRepository(pool)
	payoutRepo := database.NewPostgresPayoutRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	userRepo := database.NewPostgresUserRepository(pool)
	tokenRepo := database.NewPostgresTokenRepository(pool)

	// 6. Initialize Services (Domain Layer)
	itemService := items.NewItemService(txManager, itemRepo, grantRepo, auctionRepo, payoutRepo, outboxRepo)
	auctionService := auctions.NewAuctionService(txManager, auctionRepo, bidRepo, itemRepo, grantRepo, accredRepo, payoutRepo, outboxRepo)
	delegationService := delegation.NewDelegationService(txManager, grantRepo, itemRepo, outboxRepo)
	accreditationService := accreditation.NewAccreditationService(txManager, accredRepo, itemRepo, outboxRepo)
	userService := users.NewService(userRepo, tokenRepo, outboxRepo, signer, txManager)

	itemCache := cache.NewItemCache(rdb, itemService, itemCacheTTL, logger)

	// 7. Initialize HTTP Handlers
	handlers := api.Handlers{
		Auth:          api.NewAuthHandler(userService, logger),
		Items:         api.NewItemHandler(itemService, itemCache, logger),
		Auctions:      api.NewAuctionHandler(auctionService, itemCache, logger),
		Delegation:    api.NewDelegationHandler(delegationService, logger),
		Accreditation: api.NewAccreditationHandler(accreditationService, itemCache, logger),
	}
	router := api.NewRouter(signer, handlers)

	// 8. Outbox Relay runs in-process alongside the API
	outboxRelay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,            // batch size
		1*time.Second, // interval
		logger,
	)

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return outboxRelay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Marketplace API", "addr", addr)
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
