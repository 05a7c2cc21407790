// Package reconciler реализует движок реконсиляции платёжного реестра:
// пересчёт счётчиков тарифов, миграцию снапшотов неоплаченных записей,
// архивацию записей удалённых тарифов и идемпотентную генерацию записи
// текущего расчётного периода.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/isp-billing/internal/lib/billingperiod"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// ErrRunInProgress возвращается, когда блокировку запуска держит другой
// процесс. Такой запуск считается пропущенным, а не ошибочным.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// Repository описывает операции хранилища, необходимые движку.
type Repository interface {
	AcquireReconcileLock(ctx context.Context) (release func(), acquired bool, err error)
	RecountPlanUsage(ctx context.Context) error
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	ListAllSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	ArchiveSubscriberPayments(ctx context.Context, subscriberID string) (int, error)
	UpdateUnpaidSnapshots(ctx context.Context, subscriberID, planID, planName string,
		costMinor, discountMinor, amountMinor int64) (int, error)
	ExistsEntryForPeriod(ctx context.Context, subscriberID string, from, to time.Time) (bool, error)
	CreatePayment(ctx context.Context, p models.Payment) (string, error)
}

// EventPublisher публикует события о созданных записях реестра.
type EventPublisher interface {
	PaymentCreated(event models.PaymentEvent) error
}

// Service — движок реконсиляции.
type Service struct {
	log       *slog.Logger
	repo      Repository
	publisher EventPublisher

	// now подменяется в тестах; расчётный период определяется этим временем
	now func() time.Time
}

// New создает новый движок реконсиляции.
func New(log *slog.Logger, repo Repository, publisher EventPublisher) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Reconcile выполняет один прогон реконсиляции и возвращает его итог.
//
// Прогон идемпотентен: повторный запуск в том же расчётном периоде без
// изменений абонентов и тарифов не создаёт и не изменяет ни одной записи.
// Отказ обработки одного абонента не прерывает прогон: абонент попадает в
// Failed, обработка продолжается со следующего.
func (s *Service) Reconcile(ctx context.Context) (models.ReconcileSummary, error) {
	const op = "reconciler.Reconcile"

	var summary models.ReconcileSummary
	started := s.now()

	release, acquired, err := s.repo.AcquireReconcileLock(ctx)
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		reconcileRuns.WithLabelValues("skipped").Inc()
		return summary, ErrRunInProgress
	}
	defer release()

	periodStart := billingperiod.Start(started)
	s.log.Info("reconciliation run started",
		slog.Time("period_start", periodStart))

	// Шаг 1: полный пересчёт счётчиков тарифов, без инкрементальных дельт
	if err := s.repo.RecountPlanUsage(ctx); err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("%s: %w", op, err)
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	planByID := make(map[string]*models.Plan, len(plans))
	for _, p := range plans {
		planByID[p.ID] = p
	}

	subscribers, err := s.repo.ListAllSubscribers(ctx)
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("%s: %w", op, err)
	}

	// Шаг 2 и 3: последовательная обработка абонентов с кооперативной
	// отменой между итерациями
	for _, sub := range subscribers {
		select {
		case <-ctx.Done():
			reconcileRuns.WithLabelValues("canceled").Inc()
			return summary, fmt.Errorf("%s: %w", op, ctx.Err())
		default:
		}

		summary.Processed++
		if err := s.reconcileSubscriber(ctx, sub, planByID, started, &summary); err != nil {
			summary.Failed++
			subscriberFailures.Inc()
			s.log.Error("failed to reconcile subscriber",
				slog.String("subscriber_id", sub.ID), sl.Err(err))
		}
	}

	reconcileRuns.WithLabelValues("ok").Inc()
	runDuration.Observe(time.Since(started).Seconds())
	s.log.Info("reconciliation run finished",
		slog.Int("processed", summary.Processed),
		slog.Int("created", summary.Created),
		slog.Int("archived", summary.Archived),
		slog.Int("failed", summary.Failed),
		slog.Duration("took", time.Since(started)))
	return summary, nil
}

func (s *Service) reconcileSubscriber(ctx context.Context, sub *models.Subscriber,
	planByID map[string]*models.Plan, started time.Time, summary *models.ReconcileSummary) error {
	const op = "reconciler.reconcileSubscriber"

	// Абонент без назначенного тарифа — не ошибка и не архивация:
	// записи ему не генерируются, существующие не трогаются
	if sub.PlanID == nil {
		s.log.Debug("subscriber has no plan, skipping",
			slog.String("subscriber_id", sub.ID))
		return nil
	}

	plan, ok := planByID[*sub.PlanID]
	if !ok {
		// Тариф удалён из каталога: архивируем все записи абонента
		// и не создаём новую в этом прогоне
		n, err := s.repo.ArchiveSubscriberPayments(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		summary.Archived++
		if n > 0 {
			entriesArchived.Add(float64(n))
			s.log.Info("archived entries of subscriber with deleted plan",
				slog.String("subscriber_id", sub.ID),
				slog.String("plan_id", *sub.PlanID),
				slog.Int("entries", n))
		}
		return nil
	}

	amount := models.Amount(plan.CostMinor, sub.DiscountMinor)

	// Миграция снапшотов: неоплаченные записи получают текущие тариф и
	// скидку, оплаченные и удалённые остаются историческим фактом
	if _, err := s.repo.UpdateUnpaidSnapshots(ctx, sub.ID, plan.ID, plan.Name,
		plan.CostMinor, sub.DiscountMinor, amount); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !sub.Active {
		return nil
	}

	from, to := billingperiod.Bounds(started)
	exists, err := s.repo.ExistsEntryForPeriod(ctx, sub.ID, from, to)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil
	}

	// Запись датируется моментом прогона, а не началом месяца: срок
	// оплаты — полный календарный месяц с генерации. Принадлежность
	// к периоду определяет уникальный индекс по месяцу period_start.
	payment := models.Payment{
		SubscriberID:  sub.ID,
		PlanID:        &plan.ID,
		PlanName:      plan.Name,
		CostMinor:     plan.CostMinor,
		DiscountMinor: sub.DiscountMinor,
		AmountMinor:   amount,
		Status:        models.StatusPending,
		PeriodStart:   started.UTC(),
		DueDate:       billingperiod.DueDate(started),
	}
	newID, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if newID == "" {
		// Параллельная вставка успела раньше: уникальный индекс по
		// периоду сработал, дубликата нет
		return nil
	}

	summary.Created++
	entriesCreated.Inc()

	if s.publisher != nil {
		event := models.PaymentEvent{
			PaymentID:    newID,
			SubscriberID: sub.ID,
			PlanName:     plan.Name,
			AmountMinor:  amount,
			Status:       string(models.StatusPending),
			PeriodStart:  payment.PeriodStart,
			DueDate:      payment.DueDate,
		}
		if err := s.publisher.PaymentCreated(event); err != nil {
			// Событие вторично по отношению к записи реестра:
			// логируем и продолжаем
			s.log.Error("failed to publish payment.created event",
				slog.String("payment_id", newID), sl.Err(err))
		}
	}
	return nil
}
