// Package billingperiod содержит функции для вычисления календарных
// расчётных периодов. Расчётный период — это календарный месяц,
// идентифицируемый своим первым днём в UTC.
package billingperiod

import "time"

// Start возвращает первый день месяца, в который попадает t, в UTC.
func Start(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Next возвращает первый день следующего месяца после t в UTC.
func Next(t time.Time) time.Time {
	return Start(t).AddDate(0, 1, 0)
}

// Bounds возвращает полуинтервал [начало месяца, начало следующего месяца)
// для момента t.
func Bounds(t time.Time) (time.Time, time.Time) {
	return Start(t), Next(t)
}

// DueDate возвращает срок оплаты для записи, сгенерированной в момент t:
// ровно один календарный месяц спустя.
func DueDate(t time.Time) time.Time {
	return t.UTC().AddDate(0, 1, 0)
}

// Same сообщает, относятся ли два момента к одному расчётному периоду.
func Same(a, b time.Time) bool {
	return Start(a).Equal(Start(b))
}
