package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/stockwell-io/allocator/internal/adapter/handler"
	"github.com/stockwell-io/allocator/internal/adapter/messaging"
	"github.com/stockwell-io/allocator/internal/adapter/notification"
	"github.com/stockwell-io/allocator/internal/adapter/storage"
	"github.com/stockwell-io/allocator/internal/config"
	"github.com/stockwell-io/allocator/internal/core/service"
	"github.com/stockwell-io/allocator/internal/port"
	"github.com/stockwell-io/allocator/internal/telemetry"
)

const serviceName = "allocator"

type consumer interface {
	Run(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize tracing
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Initialize the database
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database", zap.String("driver", cfg.DBDriver))

	var store *storage.SQLStore
	switch cfg.DBDriver {
	case "mysql":
		store = storage.NewMySQLStore(db)
	case "postgres":
		store = storage.NewPostgresStore(db)
	default:
		store = storage.NewSQLiteStore(db)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Initialize the notifier
	var notifier port.Notifier
	if cfg.SMTPHost != "" {
		notifier = notification.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom)
		logger.Info("notifications via smtp", zap.String("host", cfg.SMTPHost))
	} else {
		notifier = notification.NewLogNotifier(logger)
	}

	// Initialize the transport
	var publisher port.EventPublisher
	var inbound consumer
	var closeTransport func() error
	var rdb *redis.Client

	switch cfg.Transport {
	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		publisher = messaging.NewRedisPublisher(rdb)
		closeTransport = rdb.Close
	case "kafka":
		kp := messaging.NewKafkaPublisher(cfg.KafkaBrokers)
		publisher = kp
		closeTransport = kp.Close
		logger.Info("publishing to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	case "none":
		publisher = messaging.NewLogPublisher(logger)
	default:
		logger.Fatal("unknown transport", zap.String("transport", cfg.Transport))
	}

	// Initialize the bus
	bus := service.New(store, publisher, notifier, cfg.StockAlertEmail, logger)

	switch cfg.Transport {
	case "redis":
		inbound = messaging.NewRedisConsumer(rdb, bus, logger)
	case "kafka":
		inbound = messaging.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, bus, logger)
	}

	// Initialize the HTTP server
	httpHandler := handler.NewHTTPHandler(bus, store)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/batches", httpHandler.AddBatch)
	mux.HandleFunc("/batches/quantity", httpHandler.ChangeBatchQuantity)
	mux.HandleFunc("/allocate", httpHandler.Allocate)
	mux.HandleFunc("/allocations/", httpHandler.GetAllocations)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if inbound != nil {
		g.Go(func() error {
			return inbound.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", zap.Error(err))
	}

	if closeTransport != nil {
		closeTransport()
	}
	logger.Info("stopped")
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	driverName := cfg.DBDriver
	switch cfg.DBDriver {
	case "sqlite":
	case "mysql":
	case "postgres":
		driverName = "pgx"
	default:
		return nil, errors.New("unknown database driver " + cfg.DBDriver)
	}

	db, err := sql.Open(driverName, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == "sqlite" {
		// A single writer keeps modernc's sqlite happy under load.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return db, nil
}
