package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// ErrPaymentNotFound возвращается при обращении к несуществующей записи реестра.
var ErrPaymentNotFound = errors.New("payment not found")

const paymentColumns = `id, subscriber_id, plan_id, plan_name, cost_minor, discount_minor,
			      amount_minor, status, period_start, due_date, paid_date, archived,
			      deleted, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	var planID sql.NullString
	var paidDate sql.NullTime
	var status string
	if err := row.Scan(&p.ID, &p.SubscriberID, &planID, &p.PlanName, &p.CostMinor,
		&p.DiscountMinor, &p.AmountMinor, &status, &p.PeriodStart, &p.DueDate,
		&paidDate, &p.Archived, &p.Deleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if planID.Valid {
		p.PlanID = &planID.String
	}
	if paidDate.Valid {
		p.PaidDate = &paidDate.Time
	}
	return &p, nil
}

// CreatePayment вставляет новую запись реестра и возвращает её ID.
// Вставка идемпотентна по расчётному периоду: при конфликте с уникальным
// индексом (subscriber_id, месяц period_start) строка не создаётся и
// возвращается пустой ID без ошибки.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (string, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (subscriber_id, plan_id, plan_name, cost_minor,
			      discount_minor, amount_minor, status, period_start, due_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (subscriber_id, (date_trunc('month', period_start))) DO NOTHING
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		p.SubscriberID, p.PlanID, p.PlanName, p.CostMinor, p.DiscountMinor,
		p.AmountMinor, string(p.Status), p.PeriodStart, p.DueDate).Scan(&newID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadPayment возвращает запись реестра по её ID.
func (s *Storage) ReadPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.ReadPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND deleted = false`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPayments возвращает все неудалённые записи реестра с пагинацией.
func (s *Storage) ListPayments(ctx context.Context, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE deleted = false
			  ORDER BY period_start DESC, subscriber_id
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscriberPayments возвращает неудалённые записи одного абонента.
func (s *Storage) ListSubscriberPayments(ctx context.Context, subscriberID string) ([]*models.Payment, error) {
	const op = "storage.ListSubscriberPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE subscriber_id = $1 AND deleted = false
			  ORDER BY period_start DESC`
	rows, err := s.DB.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExistsEntryForPeriod сообщает, есть ли у абонента запись с period_start в
// полуинтервале [from, to). Мягко удалённые записи учитываются: период,
// запись которого оператор удалил вручную, считается занятым и не
// генерируется повторно.
func (s *Storage) ExistsEntryForPeriod(ctx context.Context, subscriberID string, from, to time.Time) (bool, error) {
	const op = "storage.ExistsEntryForPeriod"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (
			      SELECT 1 FROM payments
			      WHERE subscriber_id = $1
			        AND period_start >= $2
			        AND period_start < $3)`
	if err := s.DB.QueryRowContext(ctx, query, subscriberID, from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UpdateUnpaidSnapshots переписывает снапшоты тарифа и скидки во всех
// неоплаченных (Pending или Overdue) и неудалённых записях абонента.
// Оплаченные записи не затрагиваются: их снапшоты — исторический факт.
// Возвращает количество изменённых строк.
func (s *Storage) UpdateUnpaidSnapshots(ctx context.Context, subscriberID, planID, planName string,
	costMinor, discountMinor, amountMinor int64) (int, error) {
	const op = "storage.UpdateUnpaidSnapshots"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET plan_id = $1, plan_name = $2, cost_minor = $3, discount_minor = $4,
			      amount_minor = $5, archived = false, updated_at = now()
			  WHERE subscriber_id = $6
			    AND status IN ('Pending', 'Overdue')
			    AND deleted = false
			    AND (plan_id IS DISTINCT FROM $1
			         OR plan_name <> $2
			         OR cost_minor <> $3
			         OR discount_minor <> $4
			         OR amount_minor <> $5
			         OR archived)`
	result, err := s.DB.ExecContext(ctx, query,
		planID, planName, costMinor, discountMinor, amountMinor, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ArchiveSubscriberPayments помечает все записи абонента как архивные и
// подставляет в снапшот названия тарифа значение models.DeletedPlanName.
// Вызывается, когда тариф абонента удалён из каталога.
func (s *Storage) ArchiveSubscriberPayments(ctx context.Context, subscriberID string) (int, error) {
	const op = "storage.ArchiveSubscriberPayments"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET archived = true, plan_name = $1, updated_at = now()
			  WHERE subscriber_id = $2
			    AND (archived = false OR plan_name <> $1)`
	result, err := s.DB.ExecContext(ctx, query, models.DeletedPlanName, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdatePaymentStatus устанавливает новый статус записи. При переходе в Paid
// проставляется paid_date. Возвращает количество изменённых строк.
func (s *Storage) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, paidDate *time.Time) (int, error) {
	const op = "storage.UpdatePaymentStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $1, paid_date = $2, updated_at = now()
			  WHERE id = $3 AND deleted = false`
	result, err := s.DB.ExecContext(ctx, query, string(status), paidDate, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SoftDeletePayment помечает запись как удалённую. Строка остаётся в базе и
// продолжает занимать свой расчётный период.
func (s *Storage) SoftDeletePayment(ctx context.Context, id string) (int, error) {
	const op = "storage.SoftDeletePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET deleted = true, updated_at = now() WHERE id = $1 AND deleted = false`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// MarkOverduePayments переводит просроченные Pending-записи в Overdue.
// Возвращает количество изменённых строк.
func (s *Storage) MarkOverduePayments(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.MarkOverduePayments"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = 'Overdue', updated_at = now()
			  WHERE status = 'Pending' AND deleted = false AND due_date < $1`
	result, err := s.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// Report считает агрегаты по реестру за период [from, to):
// оплаченную и неоплаченную суммы и число уникальных абонентов в каждой группе.
func (s *Storage) Report(ctx context.Context, filter models.ReportFilter) (*models.BillingReport, error) {
	const op = "storage.Report"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT
			      COALESCE(SUM(amount_minor) FILTER (WHERE status = 'Paid'), 0),
			      COALESCE(SUM(amount_minor) FILTER (WHERE status IN ('Pending', 'Overdue')), 0),
			      COUNT(DISTINCT subscriber_id) FILTER (WHERE status = 'Paid'),
			      COUNT(DISTINCT subscriber_id) FILTER (WHERE status IN ('Pending', 'Overdue'))
			  FROM payments
			  WHERE deleted = false
			    AND period_start >= $1
			    AND period_start < $2`
	var report models.BillingReport
	err := s.DB.QueryRowContext(ctx, query, filter.From, filter.To).Scan(
		&report.PaidAmountMinor, &report.OutstandingAmountMinor,
		&report.PaidSubscribers, &report.OutstandingSubscribers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &report, nil
}
