// Package status реализует HTTP-обработчик смены статуса записи реестра.
//
// Переходы статусов проверяются сервисом: оплаченная запись финальна,
// попытка изменить её возвращает HTTP 409 Conflict.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/isp-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/storage/repository"
)

// Handler управляет HTTP-запросами на смену статуса записей реестра.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики смены статуса.
type Service interface {
	UpdateStatus(ctx context.Context, actorUID, id string, next models.PaymentStatus) error
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
// @Summary Сменить статус записи реестра
// @Description Переводит запись в новый статус. Переход из Paid запрещён.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param id path string true "ID записи реестра"
// @Param request body models.DummyStatusUpdate true "Новый статус"
// @Success 200 {object} response.Response "Статус изменён"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход статуса"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /payments/{id}/status [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Error("invalid id format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	var req models.DummyStatusUpdate
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

	actorUID, _ := r.Context().Value(middlewarectx.UserUID).(string)

	err := h.service.UpdateStatus(r.Context(), actorUID, id, models.PaymentStatus(req.Status))

	var transitionErr *models.ErrInvalidTransition
	switch {
	case errors.Is(err, repository.ErrPaymentNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	case errors.As(err, &transitionErr):
		log.Warn("invalid status transition",
			slog.String("from", string(transitionErr.From)),
			slog.String("to", string(transitionErr.To)))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error(transitionErr.Error()))
		return
	case err != nil:
		log.Error("failed to update payment status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update payment status"))
		return
	}

	log.Info("payment status updated",
		slog.String("id", id), slog.String("status", req.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":     id,
		"status": req.Status,
	}))
}
