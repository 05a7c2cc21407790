// Package remove реализует HTTP-обработчик удаления тарифного плана.
//
// Удаление жёсткое и разрешено даже при наличии абонентов на тарифе:
// их записи реестра заархивирует ближайший прогон реконсиляции.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/isp-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/services/plan"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Delete(ctx context.Context, actorUID, id string) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.remove"

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

	actorUID, _ := r.Context().Value(middlewarectx.UserUID).(string)

	err := h.service.Delete(r.Context(), actorUID, id)
	if errors.Is(err, plan.ErrPlanNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	}
	if err != nil {
		log.Error("failed to delete plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to delete plan"))
		return
	}

	log.Info("plan deleted", slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id": id,
	}))
}
