package models

import "time"

// Plan представляет тарифный план.
// UsersCount — производное значение, которым монопольно владеет движок
// реконсиляции: счётчик пересчитывается целиком при каждом запуске.
type Plan struct {
	ID         string    // Уникальный идентификатор тарифа
	Name       string    // Название тарифа
	SpeedMbps  int       // Скорость в Мбит/с
	CostMinor  int64     // Месячная стоимость в минорных единицах, >= 0
	UsersCount int       // Число абонентов на тарифе (пересчитывается движком)
	CreatedAt  time.Time // Дата создания
	UpdatedAt  time.Time // Дата последнего изменения
}

// DeletedPlanName подставляется в снапшот названия тарифа для записей,
// чей тариф был удалён из каталога.
const DeletedPlanName = "Deleted Plan"

// DummyPlan используется для приёма данных тарифа из JSON-запроса.
type DummyPlan struct {
	Name      string `json:"name" validate:"required"`            // Название тарифа
	SpeedMbps int    `json:"speed_mbps" validate:"required,gt=0"` // Скорость в Мбит/с
	CostMinor int64  `json:"cost_minor" validate:"required,gte=0"` // Месячная стоимость
}
