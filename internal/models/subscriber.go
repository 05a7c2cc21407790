package models

import "time"

// Типы скидок абонента. Скидка вычитается из стоимости тарифа фиксированной
// суммой; политика "one-time" хранится как флаг, но записи генерируются с
// текущей скидкой в обоих случаях.
const (
	DiscountOneTime   = "one-time"
	DiscountRecurring = "recurring"
)

// Subscriber представляет абонента провайдера.
// PlanID может быть nil — абонент без назначенного тарифа.
type Subscriber struct {
	ID            string     // Уникальный идентификатор абонента
	Name          string     // Имя абонента
	Phone         string     // Телефон (уникальный)
	Address       string     // Адрес подключения
	PlanID        *string    // Идентификатор текущего тарифа
	DiscountMinor int64      // Скидка в минорных единицах, >= 0
	DiscountType  string     // Тип скидки: one-time или recurring
	Active        bool       // Неактивным абонентам новые записи не генерируются
	CreatedAt     time.Time  // Дата создания
	UpdatedAt     time.Time  // Дата последнего изменения
}

// DummySubscriber используется для приёма данных абонента из JSON-запроса
// до их валидации и преобразования в Subscriber.
type DummySubscriber struct {
	Name          string `json:"name" validate:"required"`                                 // Имя абонента
	Phone         string `json:"phone" validate:"required"`                                // Телефон
	Address       string `json:"address" validate:"omitempty"`                             // Адрес
	PlanID        string `json:"plan_id" validate:"omitempty,uuid"`                        // Тариф (опционально)
	DiscountMinor int64  `json:"discount_minor" validate:"omitempty,gte=0"`                // Скидка
	DiscountType  string `json:"discount_type" validate:"omitempty,oneof=one-time recurring"` // Тип скидки
}
