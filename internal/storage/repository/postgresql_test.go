package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/isp-billing/internal/lib/billingperiod"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

func TestCreatePayment_IdempotentPerPeriod(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	planID := factory.CreatePlan(t, "Базовый", 100, 100000)
	subID := factory.CreateSubscriber(t, "Иванов", "+79990001122", &planID, 0, models.DiscountOneTime, true)

	period := billingperiod.Start(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	payment := models.Payment{
		SubscriberID:  subID,
		PlanID:        &planID,
		PlanName:      "Базовый",
		CostMinor:     100000,
		DiscountMinor: 0,
		AmountMinor:   100000,
		Status:        models.StatusPending,
		PeriodStart:   period,
		DueDate:       billingperiod.DueDate(period),
	}

	id, err := storage.CreatePayment(ctx, payment)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Повторная вставка за тот же месяц не создает дубликат
	id2, err := storage.CreatePayment(ctx, payment)
	require.NoError(t, err)
	assert.Empty(t, id2)

	// Другой день того же месяца тоже считается тем же периодом
	payment.PeriodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id3, err := storage.CreatePayment(ctx, payment)
	require.NoError(t, err)
	assert.Empty(t, id3)
}

func TestExistsEntryForPeriod_CountsDeletedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	planID := factory.CreatePlan(t, "Базовый", 100, 100000)
	subID := factory.CreateSubscriber(t, "Петров", "+79990002233", &planID, 0, models.DiscountOneTime, true)

	period := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	factory.CreatePayment(t, subID, &planID, "Базовый", 100000, 0, 100000,
		models.StatusPending, period, true)

	from, to := billingperiod.Bounds(period)
	exists, err := storage.ExistsEntryForPeriod(ctx, subID, from, to)
	require.NoError(t, err)
	assert.True(t, exists, "удаленная запись все равно занимает период")

	from, to = billingperiod.Bounds(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	exists, err = storage.ExistsEntryForPeriod(ctx, subID, from, to)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUnpaidSnapshots_SkipsPaidAndDeleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	oldPlan := factory.CreatePlan(t, "Старый", 50, 100000)
	newPlan := factory.CreatePlan(t, "Новый", 200, 150000)
	subID := factory.CreateSubscriber(t, "Сидоров", "+79990003344", &newPlan, 10000, models.DiscountRecurring, true)

	pendingID := factory.CreatePayment(t, subID, &oldPlan, "Старый", 100000, 10000, 90000,
		models.StatusPending, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), false)
	paidID := factory.CreatePayment(t, subID, &oldPlan, "Старый", 100000, 10000, 90000,
		models.StatusPaid, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false)
	deletedID := factory.CreatePayment(t, subID, &oldPlan, "Старый", 100000, 10000, 90000,
		models.StatusPending, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true)

	updated, err := storage.UpdateUnpaidSnapshots(ctx, subID, newPlan, "Новый", 150000, 10000, 140000)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	pending, err := storage.ReadPayment(ctx, pendingID)
	require.NoError(t, err)
	assert.Equal(t, "Новый", pending.PlanName)
	assert.Equal(t, int64(150000), pending.CostMinor)
	assert.Equal(t, int64(140000), pending.AmountMinor)

	paid, err := storage.ReadPayment(ctx, paidID)
	require.NoError(t, err)
	assert.Equal(t, "Старый", paid.PlanName, "оплаченная запись неизменна")
	assert.Equal(t, int64(90000), paid.AmountMinor)

	// Повторный прогон ничего не меняет
	updated, err = storage.UpdateUnpaidSnapshots(ctx, subID, newPlan, "Новый", 150000, 10000, 140000)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	_ = deletedID
}

func TestArchiveSubscriberPayments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	planID := factory.CreatePlan(t, "Исчезающий", 100, 100000)
	subID := factory.CreateSubscriber(t, "Козлов", "+79990004455", &planID, 0, models.DiscountOneTime, true)

	entryID := factory.CreatePayment(t, subID, &planID, "Исчезающий", 100000, 0, 100000,
		models.StatusPending, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), false)
	paidID := factory.CreatePayment(t, subID, &planID, "Исчезающий", 100000, 0, 100000,
		models.StatusPaid, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), false)

	archived, err := storage.ArchiveSubscriberPayments(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	entry, err := storage.ReadPayment(ctx, entryID)
	require.NoError(t, err)
	assert.True(t, entry.Archived)
	assert.Equal(t, models.DeletedPlanName, entry.PlanName)

	// Архивируются все записи, включая оплаченные, но денежный снапшот
	// оплаченной записи остается нетронутым
	paid, err := storage.ReadPayment(ctx, paidID)
	require.NoError(t, err)
	assert.True(t, paid.Archived)
	assert.Equal(t, models.DeletedPlanName, paid.PlanName)
	assert.Equal(t, int64(100000), paid.AmountMinor)

	// Повторная архивация ничего не трогает
	archived, err = storage.ArchiveSubscriberPayments(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, 0, archived)
}

func TestRecountPlanUsage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	planA := factory.CreatePlan(t, "A", 100, 100000)
	planB := factory.CreatePlan(t, "B", 200, 150000)

	factory.CreateSubscriber(t, "Первый", "+79991110001", &planA, 0, models.DiscountOneTime, true)
	factory.CreateSubscriber(t, "Второй", "+79991110002", &planA, 0, models.DiscountOneTime, false)
	factory.CreateSubscriber(t, "Третий", "+79991110003", nil, 0, models.DiscountOneTime, true)

	err := storage.RecountPlanUsage(ctx)
	require.NoError(t, err)

	a, err := storage.ReadPlan(ctx, planA)
	require.NoError(t, err)
	assert.Equal(t, 2, a.UsersCount, "неактивные абоненты тоже занимают тариф")

	b, err := storage.ReadPlan(ctx, planB)
	require.NoError(t, err)
	assert.Equal(t, 0, b.UsersCount)
}

func TestReconcileLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	conn1, err := storage.DB.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = conn1.Close() }()

	acquired, err := TryAcquireReconcileLock(ctx, conn1)
	require.NoError(t, err)
	assert.True(t, acquired)

	conn2, err := storage.DB.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = conn2.Close() }()

	acquired2, err := TryAcquireReconcileLock(ctx, conn2)
	require.NoError(t, err)
	assert.False(t, acquired2, "второй запуск должен быть отклонен")

	require.NoError(t, ReleaseReconcileLock(ctx, conn1))

	acquired3, err := TryAcquireReconcileLock(ctx, conn2)
	require.NoError(t, err)
	assert.True(t, acquired3)
	require.NoError(t, ReleaseReconcileLock(ctx, conn2))
}
