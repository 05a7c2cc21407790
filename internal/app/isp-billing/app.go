// Package ispbilling собирает основное приложение биллинга: хранилище,
// кэш, сервисы, HTTP-сервер и publisher событий.
package ispbilling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/isp-billing/internal/cache"
	"github.com/magabrotheeeer/isp-billing/internal/config"
	"github.com/magabrotheeeer/isp-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/isp-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/migrations"
	auditservice "github.com/magabrotheeeer/isp-billing/internal/services/audit"
	authservice "github.com/magabrotheeeer/isp-billing/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/isp-billing/internal/services/payment"
	planservice "github.com/magabrotheeeer/isp-billing/internal/services/plan"
	reconcilerservice "github.com/magabrotheeeer/isp-billing/internal/services/reconciler"
	subscriberservice "github.com/magabrotheeeer/isp-billing/internal/services/subscriber"
	"github.com/magabrotheeeer/isp-billing/internal/storage/repository"
)

// App представляет основное приложение биллинга.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение: подключает PostgreSQL, применяет миграции,
// инициализирует Redis и RabbitMQ, создает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewEventPublisher(ch)

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	auditService := auditservice.New(logger, db)
	authService := authservice.New(logger, db, maker)
	planService := planservice.New(logger, db, cacheRedis, auditService)
	subscriberService := subscriberservice.New(logger, db, db, cacheRedis, auditService)
	paymentService := paymentservice.New(logger, db, publisher, auditService)
	reconcilerService := reconcilerservice.New(logger, db, publisher)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, maker, &Services{
		Auth:       authService,
		Plan:       planService,
		Subscriber: subscriberService,
		Payment:    paymentService,
		Reconciler: reconcilerService,
		Audit:      auditService,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
