package models

import "time"

// ReconcileSummary — итог одного запуска движка реконсиляции.
// Нулевые Created и Archived при Failed == 0 означают, что реестр уже был
// согласован, а не то, что запуск не состоялся.
type ReconcileSummary struct {
	Processed int `json:"processed"` // Обработано абонентов
	Created   int `json:"created"`   // Создано новых записей
	Archived  int `json:"archived"`  // Абонентов с заархивированными записями
	Failed    int `json:"failed"`    // Абонентов, обработка которых завершилась ошибкой
}

// BillingReport — агрегаты по платёжному реестру за период.
type BillingReport struct {
	PaidAmountMinor        int64 `json:"paid_amount_minor"`        // Сумма оплаченного
	OutstandingAmountMinor int64 `json:"outstanding_amount_minor"` // Сумма неоплаченного
	PaidSubscribers        int   `json:"paid_subscribers"`         // Абонентов, оплативших период
	OutstandingSubscribers int   `json:"outstanding_subscribers"`  // Абонентов с задолженностью
}

// ReportFilter — границы периода для отчёта, [From, To).
type ReportFilter struct {
	From time.Time
	To   time.Time
}

// DummyReportFilter используется для приёма границ периода из JSON-запроса.
// Даты приходят строками в формате 2006-01-02.
type DummyReportFilter struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"` // Начало периода
	To   string `json:"to" validate:"required,datetime=2006-01-02"`   // Конец периода
}
