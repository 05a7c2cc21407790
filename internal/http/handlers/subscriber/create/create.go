// Package create реализует HTTP-обработчик создания абонента.
//
// Handler принимает JSON-запрос с данными абонента, валидирует их,
// извлекает uid оператора из контекста, вызывает бизнес-логику создания
// абонента через сервис и возвращает ID созданной записи в JSON-формате.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/isp-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/services/subscriber"
)

// Handler управляет HTTP-запросами на создание абонентов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания абонента.
type Service interface {
	Create(ctx context.Context, actorUID string, dto models.DummySubscriber) (string, error)
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
// @Summary Создать абонента
// @Description Создает нового абонента. Возвращает ID созданной записи.
// @Tags Subscribers
// @Accept  json
// @Produce  json
// @Param request body models.DummySubscriber true "Данные нового абонента"
// @Success 200 {object} map[string]any "Успешное создание абонента"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Назначенный тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании абонента"
// @Security BearerAuth
// @Router /subscribers [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriber.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubscriber
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	actorUID, _ := r.Context().Value(middlewarectx.UserUID).(string)

	id, err := h.service.Create(r.Context(), actorUID, req)
	if errors.Is(err, subscriber.ErrPlanNotFound) {
		log.Warn("referenced plan not found", slog.String("plan_id", req.PlanID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("referenced plan not found"))
		return
	}
	if err != nil {
		log.Error("failed to create subscriber", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create subscriber"))
		return
	}

	log.Info("subscriber created", slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id": id,
	}))
}
