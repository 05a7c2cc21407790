// Package scheduler содержит приложение планировщика фоновых задач биллинга:
// ночной прогон реконсиляции и разметку просроченных записей.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/isp-billing/internal/config"
	"github.com/magabrotheeeer/isp-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	paymentservice "github.com/magabrotheeeer/isp-billing/internal/services/payment"
	reconcilerservice "github.com/magabrotheeeer/isp-billing/internal/services/reconciler"
	"github.com/magabrotheeeer/isp-billing/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	cron   *cron.Cron
	conn   *amqp.Connection
	ch     *amqp.Channel
	db     *repository.Storage
	logger *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	publisher := rabbitmq.NewEventPublisher(ch)
	reconciler := reconcilerservice.New(logger, db, publisher)
	payments := paymentservice.New(logger, db, publisher, nil)

	c := cron.New()

	_, err = c.AddFunc(cfg.ReconcileSpec, func() {
		summary, err := reconciler.Reconcile(context.Background())
		if errors.Is(err, reconcilerservice.ErrRunInProgress) {
			logger.Warn("scheduled reconciliation skipped, run already in progress")
			return
		}
		if err != nil {
			logger.Error("scheduled reconciliation failed", sl.Err(err))
			return
		}
		logger.Info("scheduled reconciliation finished",
			slog.Int("processed", summary.Processed),
			slog.Int("created", summary.Created),
			slog.Int("archived", summary.Archived),
			slog.Int("failed", summary.Failed))
	})
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	_, err = c.AddFunc(cfg.OverdueSpec, func() {
		if _, err := payments.MarkOverdue(context.Background()); err != nil {
			logger.Error("scheduled overdue marking failed", sl.Err(err))
		}
	})
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to schedule overdue marking: %w", err)
	}

	return &App{
		cron:   c,
		conn:   conn,
		ch:     ch,
		db:     db,
		logger: logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	a.cron.Start()
	a.logger.Info("billing scheduler started")

	<-ctx.Done()

	a.logger.Info("shutting down billing scheduler")
	stopCtx := a.cron.Stop()
	<-stopCtx.Done()

	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
