package models

import "time"

// AuditRecord — запись журнала действий операторов.
// Пишется в режиме fire-and-forget: сбой записи журнала не влияет на операцию.
type AuditRecord struct {
	ID          int64     // Идентификатор записи
	ActorUID    string    // Кто выполнил действие
	Action      string    // Например "Payment Status Update"
	OldValue    string    // Старое значение
	NewValue    string    // Новое значение
	AmountMinor *int64    // Сумма, если действие связано с платежом
	CreatedAt   time.Time // Момент действия
}
