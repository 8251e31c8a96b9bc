package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/session"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/telemetry"
)

const serviceName = "storefront-service"

func main() {
	if err := run(); err != nil {
		// logger may not exist yet
		_, _ = os.Stderr.WriteString("storefront-service: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, serviceName)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName:  serviceName,
			OTLPEndpoint: cfg.OTLPEndpoint,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("flush traces", zap.Error(err))
			}
		}()
	}

	// --- DB ---
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	probes := []httpapi.Probe{
		{Name: "postgres", Check: func(ctx context.Context) error { return pool.Ping(ctx) }},
	}

	// --- session storage ---
	store, seqRepo, closeStore, err := openStore(ctx, cfg, sqlDB, &probes)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("session storage ready", zap.String("backend", string(cfg.KVBackend)))

	// --- AMQP ---
	var publisher checkout.OrderPublisher
	if cfg.PublishEvents {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("order events disabled", zap.Error(err))
		} else {
			defer conn.Close()

			pub, err := events.NewPublisher(conn, seqRepo, events.PublisherOptions{Producer: serviceName})
			if err != nil {
				return err
			}
			defer func() {
				if err := pub.Close(); err != nil {
					logger.Warn("publisher close", zap.Error(err))
				}
			}()
			publisher = pub
			probes = append(probes, httpapi.Probe{
				Name: "rabbitmq",
				Check: func(context.Context) error {
					if conn.IsClosed() {
						return errors.New("connection closed")
					}
					return nil
				},
			})
		}
	}

	// --- payment gateway ---
	gateway, err := clients.NewRazorpayClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, &http.Client{
		Timeout: cfg.GatewayTimeout,
	})
	if err != nil {
		return err
	}

	merchant := checkout.DefaultMerchant()
	merchant.KeyID = cfg.GatewayKeyID
	merchant.Name = cfg.MerchantName
	merchant.ThemeColor = cfg.ThemeColor
	merchant.Currency = cfg.Currency

	sessions := session.NewManager(store, session.CheckoutDeps{
		Widget:    gateway,
		Verifier:  checkout.NewHMACVerifier(cfg.GatewayKeySecret),
		Publisher: publisher,
		Merchant:  merchant,
	}, session.Options{
		IdleTTL:     cfg.SessionIdleTTL,
		MaxSessions: cfg.MaxSessions,
	}, logger)
	go sessions.Run(ctx)

	// --- HTTP ---
	h := httpapi.NewHandler(httpapi.Deps{
		Catalog:        product.NewCatalog(product.NewPostgresSource(pool), logger),
		Sessions:       sessions,
		Logger:         logger,
		Probes:         probes,
		GatewayTimeout: cfg.GatewayTimeout,
	})
	router := httpapi.NewRouter(h, httpapi.RouterOptions{
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Int("sessions", sessions.Len()))
	return nil
}

// openStore picks the kv backend. The memory backend also keeps event
// sequences in memory so a dev instance needs no durable state.
func openStore(ctx context.Context, cfg config.Config, sqlDB *sql.DB, probes *[]httpapi.Probe) (kv.Store, events.SequenceRepository, func(), error) {
	noop := func() {}

	switch cfg.KVBackend {
	case config.KVMemory:
		return kv.NewMemoryStore(), events.NewMemorySequence(), noop, nil

	case config.KVRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		*probes = append(*probes, httpapi.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		store := kv.NewRedisStore(client, kv.RedisStoreConfig{Namespace: cfg.RedisNamespace})
		return store, events.NewSequenceRepository(sqlDB), func() { _ = client.Close() }, nil

	default:
		return kv.NewPostgresStore(sqlDB), events.NewSequenceRepository(sqlDB), noop, nil
	}
}
