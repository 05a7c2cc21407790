package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// CreateSubscriber вставляет нового абонента и возвращает его ID.
func (s *Storage) CreateSubscriber(ctx context.Context, sub models.Subscriber) (string, error) {
	const op = "storage.CreateSubscriber"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscribers (name, phone, address, plan_id, discount_minor,
			      discount_type, active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		sub.Name, sub.Phone, sub.Address, sub.PlanID, sub.DiscountMinor,
		sub.DiscountType, sub.Active).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadSubscriber возвращает абонента по его ID.
func (s *Storage) ReadSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	const op = "storage.ReadSubscriber"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, phone, address, plan_id, discount_minor, discount_type,
			      active, created_at, updated_at
			  FROM subscribers WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.Subscriber
	var planID sql.NullString
	if err := row.Scan(&result.ID, &result.Name, &result.Phone, &result.Address,
		&planID, &result.DiscountMinor, &result.DiscountType, &result.Active,
		&result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if planID.Valid {
		result.PlanID = &planID.String
	}
	return &result, nil
}

// UpdateSubscriber обновляет данные абонента и возвращает количество изменённых строк.
func (s *Storage) UpdateSubscriber(ctx context.Context, sub models.Subscriber, id string) (int, error) {
	const op = "storage.UpdateSubscriber"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscribers
			  SET name = $1, phone = $2, address = $3, plan_id = $4,
			      discount_minor = $5, discount_type = $6, updated_at = now()
			  WHERE id = $7`
	result, err := s.DB.ExecContext(ctx, query,
		sub.Name, sub.Phone, sub.Address, sub.PlanID,
		sub.DiscountMinor, sub.DiscountType, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListSubscribers возвращает список абонентов с пагинацией.
func (s *Storage) ListSubscribers(ctx context.Context, limit, offset int) ([]*models.Subscriber, error) {
	const op = "storage.ListSubscribers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, phone, address, plan_id, discount_minor, discount_type,
			      active, created_at, updated_at
			  FROM subscribers
			  ORDER BY created_at
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscriber
	for rows.Next() {
		var item models.Subscriber
		var planID sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Phone, &item.Address,
			&planID, &item.DiscountMinor, &item.DiscountType, &item.Active,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if planID.Valid {
			item.PlanID = &planID.String
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListAllSubscribers возвращает всех абонентов без пагинации.
// Используется движком реконсиляции для полного прохода.
func (s *Storage) ListAllSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	const op = "storage.ListAllSubscribers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, phone, address, plan_id, discount_minor, discount_type,
			      active, created_at, updated_at
			  FROM subscribers
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscriber
	for rows.Next() {
		var item models.Subscriber
		var planID sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Phone, &item.Address,
			&planID, &item.DiscountMinor, &item.DiscountType, &item.Active,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if planID.Valid {
			item.PlanID = &planID.String
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeactivateSubscriber мягко отключает абонента: записи для него перестают
// генерироваться, сама строка не удаляется.
func (s *Storage) DeactivateSubscriber(ctx context.Context, id string) (int, error) {
	const op = "storage.DeactivateSubscriber"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscribers SET active = false, updated_at = now() WHERE id = $1`
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
