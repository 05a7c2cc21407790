package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// InsertAuditRecord сохраняет запись журнала действий.
func (s *Storage) InsertAuditRecord(ctx context.Context, rec models.AuditRecord) error {
	const op = "storage.InsertAuditRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO audit_log (actor_uid, action, old_value, new_value, amount_minor)
			  VALUES ($1, $2, $3, $4, $5)`
	_, err := s.DB.ExecContext(ctx, query,
		rec.ActorUID, rec.Action, rec.OldValue, rec.NewValue, rec.AmountMinor)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAuditRecords возвращает последние записи журнала с пагинацией.
func (s *Storage) ListAuditRecords(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	const op = "storage.ListAuditRecords"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, actor_uid, action, old_value, new_value, amount_minor, created_at
			  FROM audit_log
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.ActorUID, &rec.Action, &rec.OldValue,
			&rec.NewValue, &rec.AmountMinor, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
