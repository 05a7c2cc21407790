package models

import "time"

// Payment представляет одну запись платёжного реестра: обязательство абонента
// за один расчётный период (календарный месяц).
//
// Поля-снапшоты (PlanName, CostMinor, DiscountMinor, AmountMinor) фиксируют
// состояние тарифа и скидки на момент записи. Для неоплаченных записей движок
// реконсиляции переписывает их при смене тарифа или скидки; после перехода в
// Paid запись заморожена.
type Payment struct {
	ID            string        // Уникальный идентификатор записи
	SubscriberID  string        // Абонент
	PlanID        *string       // Тариф на момент записи (nil после удаления тарифа)
	PlanName      string        // Снапшот названия тарифа
	CostMinor     int64         // Снапшот стоимости тарифа
	DiscountMinor int64         // Снапшот скидки
	AmountMinor   int64         // Итог к оплате: max(CostMinor-DiscountMinor, 0)
	Status        PaymentStatus // Pending, Overdue или Paid
	PeriodStart   time.Time     // Дата генерации, определяет расчётный период
	DueDate       time.Time     // Срок оплаты: PeriodStart + 1 календарный месяц
	PaidDate      *time.Time    // Момент перехода в Paid
	Archived      bool          // Тариф записи удалён из каталога
	Deleted       bool          // Мягкое удаление
	CreatedAt     time.Time     // Дата создания строки
	UpdatedAt     time.Time     // Дата последнего изменения
}

// Amount вычисляет итог к оплате по снапшотам стоимости и скидки.
// Результат не бывает отрицательным.
func Amount(costMinor, discountMinor int64) int64 {
	if discountMinor >= costMinor {
		return 0
	}
	return costMinor - discountMinor
}

// DummyStatusUpdate используется для приёма нового статуса записи из JSON-запроса.
type DummyStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=Pending Overdue Paid"` // Новый статус
}

// PaymentEvent — полезная нагрузка событий биллинга, публикуемых в RabbitMQ.
type PaymentEvent struct {
	PaymentID    string    `json:"payment_id"`
	SubscriberID string    `json:"subscriber_id"`
	PlanName     string    `json:"plan_name"`
	AmountMinor  int64     `json:"amount_minor"`
	Status       string    `json:"status"`
	PeriodStart  time.Time `json:"period_start"`
	DueDate      time.Time `json:"due_date"`
}
