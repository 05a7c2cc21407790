// Package auth реализует регистрацию и вход операторов бэк-офиса.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/isp-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/isp-billing/internal/lib/password"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре логин-пароль.
// Несуществующий пользователь и неверный пароль неразличимы для клиента.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает операции хранилища пользователей.
type Repository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service — сервис аутентификации операторов.
type Service struct {
	log   *slog.Logger
	repo  Repository
	maker jwt.Maker
}

// New создает новый сервис аутентификации.
func New(log *slog.Logger, repo Repository, maker jwt.Maker) *Service {
	return &Service{log: log, repo: repo, maker: maker}
}

// Register создает учётную запись оператора с ролью user и возвращает её UID.
func (s *Service) Register(ctx context.Context, dto models.DummyRegister) (string, error) {
	const op = "services.auth.Register"

	hash, err := password.GetHash(dto.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        dto.Email,
		Username:     dto.Username,
		PasswordHash: hash,
		Role:         "user",
	}
	uid, err := s.repo.RegisterUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// Login проверяет пару логин-пароль и возвращает подписанный JWT.
func (s *Service) Login(ctx context.Context, dto models.DummyLogin) (string, error) {
	const op = "services.auth.Login"

	user, err := s.repo.GetUserByUsername(ctx, dto.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, dto.Password); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.maker.GenerateToken(user.Username, user.Role, user.UUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}
