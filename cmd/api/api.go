package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/sensor-telemetry-api/internal/airquality"
	"github.com/septivank/sensor-telemetry-api/internal/api"
	"github.com/septivank/sensor-telemetry-api/internal/auth"
	"github.com/septivank/sensor-telemetry-api/internal/cache"
	"github.com/septivank/sensor-telemetry-api/internal/config"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/mq"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"github.com/septivank/sensor-telemetry-api/internal/readings"
	"github.com/septivank/sensor-telemetry-api/internal/repository"
	"github.com/septivank/sensor-telemetry-api/internal/service"
	"github.com/septivank/sensor-telemetry-api/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// startHTTPServer binds the API to SERVICE_PORT for the lifetime of the app
func startHTTPServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, handler *api.Server) *http.Server {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.ServicePort),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})

	return srv
}

// startIngestConsumer keeps the readings cache fresh from ingest events.
// It does nothing when RabbitMQ is not configured.
func startIngestConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) error {
	if conn == nil {
		logger.Info("RABBITMQ_URL not set, ingest consumer disabled")
		return nil
	}

	// Cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("ingest consumer stopped gracefully")
			return nil
		},
	})

	return nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideTokenIssuer creates the session token issuer from JWT_SECRET
func ProvideTokenIssuer(cfg *config.Config) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.TimestampToleranceMinutes)
}

// ProvideClassifier creates the CO2 air quality classifier
func ProvideClassifier(cfg *config.Config) *airquality.Classifier {
	return airquality.NewClassifier(
		cfg.AirQuality.ExcellentBelowPPM,
		cfg.AirQuality.GoodBelowPPM,
		cfg.AirQuality.FairBelowPPM,
	)
}

// ProvideRedisClient returns nil when REDIS_URL is not set
func ProvideRedisClient(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*redis.Client, error) {
	if !cfg.CacheEnabled() {
		return nil, nil
	}
	return cache.NewClient(lc, logger, cfg.Redis.URL)
}

// ProvideReadingsCache returns a nil interface when the cache is disabled
func ProvideReadingsCache(client *redis.Client, cfg *config.Config) readings.Cache {
	if client == nil {
		return nil
	}
	return cache.NewReadingsCache(client, cfg.Redis.CacheTTL)
}

// ProvideMQConnection returns nil when RABBITMQ_URL is not set
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.MessagingEnabled() {
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvideEventPublisher returns a nil interface when messaging is disabled
func ProvideEventPublisher(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
) (auth.EventPublisher, error) {
	if conn == nil {
		return nil, nil
	}

	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.AuthExchange, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideAuthService creates the admin login service
func ProvideAuthService(
	repo *repository.Repository,
	tokens *auth.TokenIssuer,
	publisher auth.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *auth.Service {
	return auth.NewService(repo, tokens, publisher, metrics, logger)
}

// ProvideReadingsService creates the current-readings service
func ProvideReadingsService(
	repo *repository.Repository,
	readingsCache readings.Cache,
	classifier *airquality.Classifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *readings.Service {
	return readings.NewService(repo, readingsCache, classifier, metrics, logger)
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(
	readingsService *readings.Service,
	validator *validator.Validator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(readingsService, validator, metrics, logger)
}

// ProvideAPIServer assembles the HTTP handler
func ProvideAPIServer(
	cfg *config.Config,
	authService *auth.Service,
	tokens *auth.TokenIssuer,
	readingsService *readings.Service,
	validator *validator.Validator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *api.Server {
	return api.New(api.Deps{
		Auth:           authService,
		Tokens:         tokens,
		Readings:       readingsService,
		Validator:      validator,
		Metrics:        metrics,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	})
}
