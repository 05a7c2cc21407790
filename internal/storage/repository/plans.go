package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// CreatePlan вставляет новый тариф и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (string, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO plans (name, speed_mbps, cost_minor)
			  VALUES ($1, $2, $3)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query, plan.Name, plan.SpeedMbps, plan.CostMinor).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadPlan возвращает тариф по его ID.
func (s *Storage) ReadPlan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "storage.ReadPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, speed_mbps, cost_minor, users_count, created_at, updated_at
			  FROM plans WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.Plan
	if err := row.Scan(&result.ID, &result.Name, &result.SpeedMbps, &result.CostMinor,
		&result.UsersCount, &result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// UpdatePlan обновляет тариф и возвращает количество изменённых строк.
func (s *Storage) UpdatePlan(ctx context.Context, plan models.Plan, id string) (int, error) {
	const op = "storage.UpdatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans
			  SET name = $1, speed_mbps = $2, cost_minor = $3, updated_at = now()
			  WHERE id = $4`
	result, err := s.DB.ExecContext(ctx, query, plan.Name, plan.SpeedMbps, plan.CostMinor, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListPlans возвращает список всех тарифов.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, speed_mbps, cost_minor, users_count, created_at, updated_at
			  FROM plans
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		var item models.Plan
		if err := rows.Scan(&item.ID, &item.Name, &item.SpeedMbps, &item.CostMinor,
			&item.UsersCount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeletePlan удаляет тариф по ID и возвращает количество удалённых строк.
func (s *Storage) DeletePlan(ctx context.Context, id string) (int, error) {
	const op = "storage.DeletePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM plans WHERE id = $1`
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

// CountSubscribersOnPlan возвращает число абонентов, ссылающихся на тариф.
// Используется как защита от удаления тарифа с активными абонентами.
func (s *Storage) CountSubscribersOnPlan(ctx context.Context, planID string) (int, error) {
	const op = "storage.CountSubscribersOnPlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM subscribers WHERE plan_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// RecountPlanUsage пересчитывает plans.users_count с нуля одним запросом.
// Полный пересчёт, а не инкрементальная правка: толерантен к любому
// накопившемуся дрейфу счётчиков.
func (s *Storage) RecountPlanUsage(ctx context.Context) error {
	const op = "storage.RecountPlanUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans p
			  SET users_count = (SELECT COUNT(*)
			                     FROM subscribers s
			                     WHERE s.plan_id = p.id)`
	_, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
