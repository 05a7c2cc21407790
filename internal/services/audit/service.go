// Package audit реализует журнал действий операторов.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// Repository описывает операции хранилища журнала.
type Repository interface {
	InsertAuditRecord(ctx context.Context, rec models.AuditRecord) error
	ListAuditRecords(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error)
}

// Service — сервис журнала действий.
type Service struct {
	log  *slog.Logger
	repo Repository
}

// New создает новый сервис журнала действий.
func New(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo}
}

// Record пишет запись журнала в режиме fire-and-forget: сбой записи
// логируется, но не возвращается вызывающей стороне, чтобы не ронять
// основную операцию из-за журнала.
func (s *Service) Record(ctx context.Context, actorUID, action, oldValue, newValue string, amountMinor *int64) {
	rec := models.AuditRecord{
		ActorUID:    actorUID,
		Action:      action,
		OldValue:    oldValue,
		NewValue:    newValue,
		AmountMinor: amountMinor,
	}
	if err := s.repo.InsertAuditRecord(ctx, rec); err != nil {
		s.log.Error("failed to write audit record",
			slog.String("action", action), sl.Err(err))
	}
}

// List возвращает последние записи журнала с пагинацией.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	const op = "services.audit.List"
	records, err := s.repo.ListAuditRecords(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}
