package models

import "time"

// User представляет учётную запись оператора бэк-офиса.
type User struct {
	UUID         string    // Уникальный идентификатор
	Email        string    // Электронная почта
	Username     string    // Имя пользователя (уникальное)
	PasswordHash string    // Хэш пароля
	Role         string    // Роль: admin или user
	CreatedAt    time.Time // Дата создания
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`       // Электронная почта
	Username string `json:"username" validate:"required,alphanum"` // Имя пользователя
	Password string `json:"password" validate:"required,min=8"`    // Пароль
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Username string `json:"username" validate:"required"` // Имя пользователя
	Password string `json:"password" validate:"required"` // Пароль
}
