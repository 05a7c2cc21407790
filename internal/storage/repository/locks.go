package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// reconcileLockKey — ключ advisory-блокировки запуска реконсиляции.
// Один ключ на всю базу: параллельные запуски движка исключены.
const reconcileLockKey = 815001

// TryAcquireReconcileLock пытается захватить блокировку запуска реконсиляции
// на переданном соединении. Advisory-блокировка привязана к сессии, поэтому
// захват и освобождение обязаны идти через одно и то же соединение.
// Возвращает false без ожидания, если блокировку держит другой запуск.
func TryAcquireReconcileLock(ctx context.Context, conn *sql.Conn) (bool, error) {
	const op = "storage.TryAcquireReconcileLock"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var acquired bool
	err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, reconcileLockKey).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return acquired, nil
}

// ReleaseReconcileLock освобождает блокировку запуска реконсиляции.
func ReleaseReconcileLock(ctx context.Context, conn *sql.Conn) error {
	const op = "storage.ReleaseReconcileLock"

	var released bool
	err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, reconcileLockKey).Scan(&released)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !released {
		return fmt.Errorf("%s: lock was not held", op)
	}
	return nil
}

// AcquireReconcileLock выделяет соединение из пула и захватывает на нем
// блокировку запуска. Возвращает функцию освобождения, которую вызывающая
// сторона обязана выполнить по завершении прогона. Если блокировка занята,
// возвращает acquired=false и уже закрытое соединение.
func (s *Storage) AcquireReconcileLock(ctx context.Context) (release func(), acquired bool, err error) {
	const op = "storage.AcquireReconcileLock"

	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	acquired, err = TryAcquireReconcileLock(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	release = func() {
		// Освобождаем на фоновом контексте: отмена прогона
		// не должна оставлять блокировку висеть до закрытия пула.
		_ = ReleaseReconcileLock(context.Background(), conn)
		_ = conn.Close()
	}
	return release, true, nil
}
