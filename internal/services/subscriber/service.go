// Package subscriber реализует операции над абонентами провайдера.
package subscriber

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

// Ошибки сервиса абонентов.
var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrPlanNotFound       = errors.New("referenced plan not found")
)

const subscriberCacheTTL = 5 * time.Minute

// Repository описывает операции хранилища абонентов.
type Repository interface {
	CreateSubscriber(ctx context.Context, sub models.Subscriber) (string, error)
	ReadSubscriber(ctx context.Context, id string) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, sub models.Subscriber, id string) (int, error)
	ListSubscribers(ctx context.Context, limit, offset int) ([]*models.Subscriber, error)
	DeactivateSubscriber(ctx context.Context, id string) (int, error)
}

// PlanReader проверяет существование тарифа при назначении его абоненту.
type PlanReader interface {
	ReadPlan(ctx context.Context, id string) (*models.Plan, error)
}

// Auditor пишет записи журнала действий.
type Auditor interface {
	Record(ctx context.Context, actorUID, action, oldValue, newValue string, amountMinor *int64)
}

// Service — сервис абонентов.
type Service struct {
	log     *slog.Logger
	repo    Repository
	plans   PlanReader
	cache   *cache.Cache
	auditor Auditor
}

// New создает новый сервис абонентов.
func New(log *slog.Logger, repo Repository, plans PlanReader, c *cache.Cache, auditor Auditor) *Service {
	return &Service{log: log, repo: repo, plans: plans, cache: c, auditor: auditor}
}

func subscriberCacheKey(id string) string {
	return "subscriber:" + id
}

// Create добавляет нового абонента. Назначаемый тариф обязан существовать:
// висячая ссылка допустима только как следствие удаления тарифа, не как
// результат опечатки оператора.
func (s *Service) Create(ctx context.Context, actorUID string, dto models.DummySubscriber) (string, error) {
	const op = "services.subscriber.Create"

	sub := models.Subscriber{
		Name:          dto.Name,
		Phone:         dto.Phone,
		Address:       dto.Address,
		DiscountMinor: dto.DiscountMinor,
		DiscountType:  dto.DiscountType,
		Active:        true,
	}
	if sub.DiscountType == "" {
		sub.DiscountType = models.DiscountOneTime
	}
	if dto.PlanID != "" {
		if err := s.checkPlanExists(ctx, dto.PlanID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		sub.PlanID = &dto.PlanID
	}

	id, err := s.repo.CreateSubscriber(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.auditor.Record(ctx, actorUID, "Subscriber Create", "", dto.Name, nil)
	return id, nil
}

// Read возвращает абонента по ID, по возможности из кэша.
func (s *Service) Read(ctx context.Context, id string) (*models.Subscriber, error) {
	const op = "services.subscriber.Read"

	if s.cache != nil {
		var cached models.Subscriber
		found, err := s.cache.Get(subscriberCacheKey(id), &cached)
		if err != nil {
			s.log.Warn("subscriber cache read failed", sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	sub, err := s.repo.ReadSubscriber(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(subscriberCacheKey(id), sub, subscriberCacheTTL); err != nil {
			s.log.Warn("subscriber cache write failed", sl.Err(err))
		}
	}
	return sub, nil
}

// Update изменяет абонента. Смена тарифа и скидки фиксируется в журнале;
// перенос изменений на неоплаченные записи реестра выполнит ближайший
// прогон реконсиляции.
func (s *Service) Update(ctx context.Context, actorUID, id string, dto models.DummySubscriber) error {
	const op = "services.subscriber.Update"

	old, err := s.Read(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sub := models.Subscriber{
		Name:          dto.Name,
		Phone:         dto.Phone,
		Address:       dto.Address,
		DiscountMinor: dto.DiscountMinor,
		DiscountType:  dto.DiscountType,
		Active:        old.Active,
	}
	if sub.DiscountType == "" {
		sub.DiscountType = old.DiscountType
	}
	if dto.PlanID != "" {
		if err := s.checkPlanExists(ctx, dto.PlanID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		sub.PlanID = &dto.PlanID
	}

	affected, err := s.repo.UpdateSubscriber(ctx, sub, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}

	s.invalidate(id)
	if oldPlan, newPlan := planRef(old.PlanID), dto.PlanID; oldPlan != newPlan {
		s.auditor.Record(ctx, actorUID, "Subscriber Plan Change", oldPlan, newPlan, nil)
	}
	if old.DiscountMinor != dto.DiscountMinor {
		s.auditor.Record(ctx, actorUID, "Subscriber Discount Change",
			fmt.Sprintf("%d", old.DiscountMinor), fmt.Sprintf("%d", dto.DiscountMinor), nil)
	}
	return nil
}

// List возвращает абонентов с пагинацией.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Subscriber, error) {
	const op = "services.subscriber.List"
	subs, err := s.repo.ListSubscribers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Deactivate мягко отключает абонента: строка остаётся, история платежей
// сохраняется, новые записи реестра с этого момента не генерируются.
func (s *Service) Deactivate(ctx context.Context, actorUID, id string) error {
	const op = "services.subscriber.Deactivate"

	affected, err := s.repo.DeactivateSubscriber(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}

	s.invalidate(id)
	s.auditor.Record(ctx, actorUID, "Subscriber Deactivate", "active", "inactive", nil)
	return nil
}

func (s *Service) checkPlanExists(ctx context.Context, planID string) error {
	_, err := s.plans.ReadPlan(ctx, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlanNotFound
	}
	return err
}

func (s *Service) invalidate(id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(subscriberCacheKey(id)); err != nil {
		s.log.Warn("subscriber cache invalidation failed", sl.Err(err))
	}
}

func planRef(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
