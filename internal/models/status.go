// Package models содержит доменные структуры биллинга: абоненты, тарифы,
// записи платёжного реестра, а также вспомогательные типы для приёма данных
// из JSON-запросов.
package models

import "fmt"

// PaymentStatus — закрытый тип статуса записи платёжного реестра.
// Использование произвольных строк вместо констант ниже считается ошибкой.
type PaymentStatus string

// Допустимые статусы записи.
const (
	StatusPending PaymentStatus = "Pending"
	StatusOverdue PaymentStatus = "Overdue"
	StatusPaid    PaymentStatus = "Paid"
)

// Valid сообщает, является ли значение одним из допустимых статусов.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Оплаченная запись финальна: из Paid переходов нет.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusOverdue || next == StatusPaid
	case StatusOverdue:
		return next == StatusPaid || next == StatusPending
	case StatusPaid:
		return false
	}
	return false
}

// ErrInvalidTransition возвращается сервисом платежей при недопустимом переходе статуса.
type ErrInvalidTransition struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
