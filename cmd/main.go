/**
 * @description
 * This is the main entry point for the finance-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * schema migrations, external API clients, message brokers, repositories, the core
 * application service, and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/stripeclient: Client for the Stripe API.
 * - pkg/listingclient: Client for the listing-service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/vyzio/finance-service/internal/api"
	"github.com/vyzio/finance-service/internal/app"
	"github.com/vyzio/finance-service/internal/config"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/listingclient"
	rmrabbit "github.com/vyzio/finance-service/pkg/rabbitmq"
	"github.com/vyzio/finance-service/pkg/stripeclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.StripeAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe api key must be configured\" env=STRIPE_API_KEY")
	}
	if strings.TrimSpace(cfg.StripeWebhookSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe webhook secret must be configured\" env=STRIPE_WEBHOOK_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting finance-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the data access layer and apply schema migrations.
	repository := store.NewPostgresRepository(dbpool)
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := repository.RunMigrations(migrateCtx); err != nil {
		cancelMigrate()
		log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" err=%v", err)
	}
	cancelMigrate()
	log.Println("level=info component=bootstrap msg=\"migrations applied\"")

	// Initialize the RabbitMQ producer to publish events.
	// This service only needs to publish, so we use a producer.
	var rabbitProducer rmrabbit.Publisher
	if producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer producer.Close()
		rabbitProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the Stripe API.
	stripeClient := stripeclient.NewClient(cfg.StripeAPIKey)

	// Initialize the client for the listing-service. Missing listing-service config
	// should not prevent finance-service from booting; paid listing activation
	// will degrade to a log line.
	var listingClient app.ListingActivator
	if strings.TrimSpace(cfg.ListingServiceURL) == "" || strings.TrimSpace(cfg.ListingServiceInternalAPIKey) == "" {
		log.Printf("level=warn component=bootstrap msg=\"listing-service client not configured; paid listing activation disabled\" listing_service_url_set=%t listing_service_internal_key_set=%t",
			strings.TrimSpace(cfg.ListingServiceURL) != "",
			strings.TrimSpace(cfg.ListingServiceInternalAPIKey) != "",
		)
	} else {
		listingClient = listingclient.NewClient(cfg.ListingServiceURL, cfg.ListingServiceInternalAPIKey)
	}

	var redisClient *redis.Client
	if cfg.CheckoutRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; checkout rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; checkout rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; checkout rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the core application service with its dependencies.
	financeService := app.NewService(
		repository,
		stripeClient,
		listingClient,
		rabbitProducer,
		cfg.PlatformFeePercent,
		cfg.MinWithdrawalCents,
		cfg.FrontendURL,
	)
	if redisClient != nil {
		financeService.SetCheckoutRateLimiter(
			app.NewRedisCheckoutRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.CheckoutRateLimitPerMinute,
		)
	}

	// Initialize the API handlers and router.
	financeHandlers := api.NewFinanceHandlers(financeService, cfg.StripeWebhookSecret)
	router := api.Routes(financeHandlers, api.AuthConfig{
		JWKSURL:  cfg.JWTJWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, cfg.FrontendURL)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
