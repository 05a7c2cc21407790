// Package plan реализует операции над каталогом тарифных планов.
package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/isp-billing/internal/cache"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// ErrPlanNotFound возвращается при обращении к несуществующему тарифу.
var ErrPlanNotFound = errors.New("plan not found")

// plansCacheKey — ключ кэша списка тарифов. Каталог маленький и читается
// часто, поэтому кэшируется целиком.
const plansCacheKey = "plans:all"

const plansCacheTTL = 5 * time.Minute

// Repository описывает операции хранилища тарифов.
type Repository interface {
	CreatePlan(ctx context.Context, plan models.Plan) (string, error)
	ReadPlan(ctx context.Context, id string) (*models.Plan, error)
	UpdatePlan(ctx context.Context, plan models.Plan, id string) (int, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	DeletePlan(ctx context.Context, id string) (int, error)
	CountSubscribersOnPlan(ctx context.Context, planID string) (int, error)
}

// Auditor пишет записи журнала действий.
type Auditor interface {
	Record(ctx context.Context, actorUID, action, oldValue, newValue string, amountMinor *int64)
}

// Service — сервис каталога тарифов.
type Service struct {
	log     *slog.Logger
	repo    Repository
	cache   *cache.Cache
	auditor Auditor
}

// New создает новый сервис каталога тарифов.
func New(log *slog.Logger, repo Repository, c *cache.Cache, auditor Auditor) *Service {
	return &Service{log: log, repo: repo, cache: c, auditor: auditor}
}

// Create добавляет новый тариф в каталог.
func (s *Service) Create(ctx context.Context, actorUID string, dto models.DummyPlan) (string, error) {
	const op = "services.plan.Create"

	plan := models.Plan{
		Name:      dto.Name,
		SpeedMbps: dto.SpeedMbps,
		CostMinor: dto.CostMinor,
	}
	id, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache()
	s.auditor.Record(ctx, actorUID, "Plan Create", "", dto.Name, &dto.CostMinor)
	return id, nil
}

// Read возвращает тариф по ID.
func (s *Service) Read(ctx context.Context, id string) (*models.Plan, error) {
	const op = "services.plan.Read"
	plan, err := s.repo.ReadPlan(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// Update изменяет тариф. Изменение стоимости попадает в журнал действий:
// для неоплаченных записей реестра его разнесёт ближайший прогон реконсиляции.
func (s *Service) Update(ctx context.Context, actorUID, id string, dto models.DummyPlan) error {
	const op = "services.plan.Update"

	old, err := s.Read(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	plan := models.Plan{
		Name:      dto.Name,
		SpeedMbps: dto.SpeedMbps,
		CostMinor: dto.CostMinor,
	}
	affected, err := s.repo.UpdatePlan(ctx, plan, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPlanNotFound)
	}

	s.invalidateCache()
	if old.CostMinor != dto.CostMinor {
		s.auditor.Record(ctx, actorUID, "Plan Cost Update",
			fmt.Sprintf("%d", old.CostMinor), fmt.Sprintf("%d", dto.CostMinor), &dto.CostMinor)
	}
	return nil
}

// List возвращает каталог тарифов, по возможности из кэша.
func (s *Service) List(ctx context.Context) ([]*models.Plan, error) {
	const op = "services.plan.List"

	if s.cache != nil {
		var cached []*models.Plan
		found, err := s.cache.Get(plansCacheKey, &cached)
		if err != nil {
			s.log.Warn("plans cache read failed", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(plansCacheKey, plans, plansCacheTTL); err != nil {
			s.log.Warn("plans cache write failed", sl.Err(err))
		}
	}
	return plans, nil
}

// Delete удаляет тариф из каталога. Удаление разрешено и при наличии
// абонентов на тарифе: их записи заархивирует ближайший прогон реконсиляции,
// а сам факт удаления занятого тарифа фиксируется в журнале.
func (s *Service) Delete(ctx context.Context, actorUID, id string) error {
	const op = "services.plan.Delete"

	old, err := s.Read(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.repo.CountSubscribersOnPlan(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if count > 0 {
		s.log.Warn("deleting plan that still has subscribers",
			slog.String("plan_id", id), slog.Int("subscribers", count))
	}

	affected, err := s.repo.DeletePlan(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPlanNotFound)
	}

	s.invalidateCache()
	s.auditor.Record(ctx, actorUID, "Plan Delete", old.Name, "", nil)
	return nil
}

func (s *Service) invalidateCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(plansCacheKey); err != nil {
		s.log.Warn("plans cache invalidation failed", sl.Err(err))
	}
}
