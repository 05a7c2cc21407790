// Package payment реализует операции над записями платёжного реестра:
// чтение, смену статуса, мягкое удаление, разметку просрочки и отчёты.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// Repository описывает операции хранилища платёжного реестра.
type Repository interface {
	ReadPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPayments(ctx context.Context, limit, offset int) ([]*models.Payment, error)
	ListSubscriberPayments(ctx context.Context, subscriberID string) ([]*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, paidDate *time.Time) (int, error)
	SoftDeletePayment(ctx context.Context, id string) (int, error)
	MarkOverduePayments(ctx context.Context, now time.Time) (int, error)
	Report(ctx context.Context, filter models.ReportFilter) (*models.BillingReport, error)
}

// EventPublisher публикует события смены статуса записей реестра.
type EventPublisher interface {
	PaymentPaid(event models.PaymentEvent) error
	PaymentOverdue(event models.PaymentEvent) error
}

// Auditor пишет записи журнала действий.
type Auditor interface {
	Record(ctx context.Context, actorUID, action, oldValue, newValue string, amountMinor *int64)
}

// Service — сервис платёжного реестра.
type Service struct {
	log       *slog.Logger
	repo      Repository
	publisher EventPublisher
	auditor   Auditor

	// now подменяется в тестах
	now func() time.Time
}

// New создает новый сервис платёжного реестра. publisher и auditor
// необязательны: nil отключает события и журнал действий.
func New(log *slog.Logger, repo Repository, publisher EventPublisher, auditor Auditor) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		now:       time.Now,
	}
}

// Read возвращает запись реестра по ID.
func (s *Service) Read(ctx context.Context, id string) (*models.Payment, error) {
	const op = "services.payment.Read"
	p, err := s.repo.ReadPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List возвращает записи реестра с пагинацией.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Payment, error) {
	const op = "services.payment.List"
	result, err := s.repo.ListPayments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListBySubscriber возвращает записи реестра одного абонента.
func (s *Service) ListBySubscriber(ctx context.Context, subscriberID string) ([]*models.Payment, error) {
	const op = "services.payment.ListBySubscriber"
	result, err := s.repo.ListSubscriberPayments(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateStatus переводит запись в новый статус с проверкой допустимости
// перехода. Оплаченная запись финальна: любой переход из Paid отклоняется.
// При переходе в Paid проставляется paid_date и публикуется событие.
func (s *Service) UpdateStatus(ctx context.Context, actorUID, id string, next models.PaymentStatus) error {
	const op = "services.payment.UpdateStatus"

	p, err := s.repo.ReadPayment(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%s: %w", op, &models.ErrInvalidTransition{From: p.Status, To: next})
	}

	var paidDate *time.Time
	if next == models.StatusPaid {
		now := s.now()
		paidDate = &now
	}

	affected, err := s.repo.UpdatePaymentStatus(ctx, id, next, paidDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: payment %s disappeared during update", op, id)
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, actorUID, "Payment Status Update",
			string(p.Status), string(next), &p.AmountMinor)
	}

	if s.publisher != nil && next == models.StatusPaid {
		event := models.PaymentEvent{
			PaymentID:    p.ID,
			SubscriberID: p.SubscriberID,
			PlanName:     p.PlanName,
			AmountMinor:  p.AmountMinor,
			Status:       string(next),
			PeriodStart:  p.PeriodStart,
			DueDate:      p.DueDate,
		}
		if err := s.publisher.PaymentPaid(event); err != nil {
			s.log.Error("failed to publish payment.paid event",
				slog.String("payment_id", id), sl.Err(err))
		}
	}
	return nil
}

// Delete мягко удаляет запись реестра. Строка остаётся в базе и продолжает
// занимать свой расчётный период: движок не создаст ей замену.
func (s *Service) Delete(ctx context.Context, actorUID, id string) error {
	const op = "services.payment.Delete"

	p, err := s.repo.ReadPayment(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := s.repo.SoftDeletePayment(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: payment %s disappeared during delete", op, id)
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, actorUID, "Payment Delete",
			string(p.Status), "", &p.AmountMinor)
	}
	return nil
}

// MarkOverdue переводит все просроченные Pending-записи в Overdue и
// возвращает количество затронутых записей. Запускается планировщиком.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	const op = "services.payment.MarkOverdue"

	marked, err := s.repo.MarkOverduePayments(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if marked > 0 {
		s.log.Info("marked overdue payments", slog.Int("count", marked))
	}
	return marked, nil
}

// Report возвращает агрегаты по реестру за период [From, To).
func (s *Service) Report(ctx context.Context, filter models.ReportFilter) (*models.BillingReport, error) {
	const op = "services.payment.Report"
	report, err := s.repo.Report(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}
