// Package login реализует HTTP-обработчик входа оператора.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/services/auth"
)

// Handler управляет HTTP-запросами на вход операторов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Login(ctx context.Context, dto models.DummyLogin) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход оператора
// @Description Проверяет пару логин-пароль и возвращает JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.DummyLogin true "Данные входа"
// @Success 200 {object} map[string]any "Токен доступа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверный логин или пароль"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Warn("invalid credentials", slog.String("username", req.Username))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid username or password"))
		return
	}
	if err != nil {
		log.Error("failed to login", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not login"))
		return
	}

	log.Info("user logged in", slog.String("username", req.Username))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
	}))
}
