package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/isp-billing/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) AcquireReconcileLock(ctx context.Context) (func(), bool, error) {
	args := m.Called(ctx)
	var release func()
	if args.Get(0) != nil {
		release = args.Get(0).(func())
	}
	return release, args.Bool(1), args.Error(2)
}

func (m *MockRepository) RecountPlanUsage(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockRepository) ListAllSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscriber), args.Error(1)
}

func (m *MockRepository) ArchiveSubscriberPayments(ctx context.Context, subscriberID string) (int, error) {
	args := m.Called(ctx, subscriberID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) UpdateUnpaidSnapshots(ctx context.Context, subscriberID, planID, planName string,
	costMinor, discountMinor, amountMinor int64) (int, error) {
	args := m.Called(ctx, subscriberID, planID, planName, costMinor, discountMinor, amountMinor)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ExistsEntryForPeriod(ctx context.Context, subscriberID string, from, to time.Time) (bool, error) {
	args := m.Called(ctx, subscriberID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreatePayment(ctx context.Context, p models.Payment) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PaymentCreated(event models.PaymentEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestService(repo *MockRepository, pub *MockPublisher) *Service {
	var publisher EventPublisher
	if pub != nil {
		publisher = pub
	}
	svc := New(discardLogger(), repo, publisher)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func expectLockAcquired(repo *MockRepository) {
	repo.On("AcquireReconcileLock", mock.Anything).Return(func() {}, true, nil)
}

func planID(s string) *string { return &s }

func TestReconcile_CreatesEntryForActiveSubscriber(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := newTestService(repo, pub)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), DiscountMinor: 10000, Active: true}

	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	nextPeriod := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-1", "Базовый",
		int64(100000), int64(10000), int64(90000)).Return(0, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-1", periodStart, nextPeriod).Return(false, nil)
	repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
		return p.SubscriberID == "sub-1" &&
			p.PlanName == "Базовый" &&
			p.AmountMinor == 90000 &&
			p.Status == models.StatusPending &&
			p.PeriodStart.Equal(fixedNow) &&
			p.DueDate.Equal(fixedNow.AddDate(0, 1, 0))
	})).Return("pay-1", nil)
	pub.On("PaymentCreated", mock.MatchedBy(func(e models.PaymentEvent) bool {
		return e.PaymentID == "pay-1" && e.AmountMinor == 90000
	})).Return(nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1, Created: 1}, summary)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestReconcile_MidMonthEntryKeepsFullPaymentWindow(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-1", "Базовый",
		int64(100000), int64(0), int64(100000)).Return(0, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-1", mock.Anything, mock.Anything).Return(false, nil)

	var created models.Payment
	repo.On("CreatePayment", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(models.Payment)
	}).Return("pay-1", nil)

	_, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	// Запись середины месяца датируется моментом прогона, а срок оплаты
	// отстоит от него на полный календарный месяц, а не до первого числа
	assert.Equal(t, fixedNow, created.PeriodStart)
	assert.Equal(t, time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC), created.DueDate)
}

func TestReconcile_SecondRunCreatesNothing(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-1", "Базовый",
		int64(100000), int64(0), int64(100000)).Return(0, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-1", mock.Anything, mock.Anything).Return(true, nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1}, summary)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestReconcile_ArchivesWhenPlanMissing(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-gone"), Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("ArchiveSubscriberPayments", mock.Anything, "sub-1").Return(3, nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1, Archived: 1}, summary)
	repo.AssertNotCalled(t, "ExistsEntryForPeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestReconcile_InactiveSubscriberGetsNoNewEntry(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), Active: false}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-1", "Базовый",
		int64(100000), int64(0), int64(100000)).Return(1, nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1}, summary)
	repo.AssertNotCalled(t, "ExistsEntryForPeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestReconcile_SubscriberWithoutPlanIsSkipped(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	sub := &models.Subscriber{ID: "sub-1", Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1}, summary)
	repo.AssertNotCalled(t, "ArchiveSubscriberPayments", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestReconcile_DiscountFloorsAtZero(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Социальный", CostMinor: 50}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), DiscountMinor: 80, Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-1", "Социальный",
		int64(50), int64(80), int64(0)).Return(0, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-1", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
		return p.AmountMinor == 0 && p.CostMinor == 50 && p.DiscountMinor == 80
	})).Return("pay-1", nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	repo.AssertExpectations(t)
}

func TestReconcile_PlanSwitchRewritesUnpaidSnapshots(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	// Абонент переведен со старого тарифа (1000.00) на новый (1500.00),
	// скидка 100.00: неоплаченные записи должны получить сумму 1400.00
	newPlan := &models.Plan{ID: "plan-new", Name: "Турбо", CostMinor: 150000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-new"), DiscountMinor: 10000, Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{newPlan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{sub}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-1", "plan-new", "Турбо",
		int64(150000), int64(10000), int64(140000)).Return(2, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-1", mock.Anything, mock.Anything).Return(true, nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 1}, summary)
	repo.AssertExpectations(t)
}

func TestReconcile_LockHeldReturnsErrRunInProgress(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	repo.On("AcquireReconcileLock", mock.Anything).Return(nil, false, nil)

	_, err := svc.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	repo.AssertNotCalled(t, "RecountPlanUsage", mock.Anything)
}

func TestReconcile_SubscriberFailureDoesNotAbortRun(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	broken := &models.Subscriber{ID: "sub-broken", PlanID: planID("plan-1"), Active: true}
	healthy := &models.Subscriber{ID: "sub-ok", PlanID: planID("plan-1"), Active: true}

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Return([]*models.Subscriber{broken, healthy}, nil)
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-broken", "plan-1", "Базовый",
		int64(100000), int64(0), int64(100000)).Return(0, errors.New("connection reset"))
	repo.On("UpdateUnpaidSnapshots", mock.Anything, "sub-ok", "plan-1", "Базовый",
		int64(100000), int64(0), int64(100000)).Return(0, nil)
	repo.On("ExistsEntryForPeriod", mock.Anything, "sub-ok", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("CreatePayment", mock.Anything, mock.Anything).Return("pay-1", nil)

	summary, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileSummary{Processed: 2, Created: 1, Failed: 1}, summary)
}

func TestReconcile_CanceledContextStopsRun(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	plan := &models.Plan{ID: "plan-1", Name: "Базовый", CostMinor: 100000}
	sub := &models.Subscriber{ID: "sub-1", PlanID: planID("plan-1"), Active: true}

	ctx, cancel := context.WithCancel(context.Background())

	expectLockAcquired(repo)
	repo.On("RecountPlanUsage", mock.Anything).Return(nil)
	repo.On("ListPlans", mock.Anything).Return([]*models.Plan{plan}, nil)
	repo.On("ListAllSubscribers", mock.Anything).Run(func(_ mock.Arguments) {
		cancel()
	}).Return([]*models.Subscriber{sub}, nil)

	_, err := svc.Reconcile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}
