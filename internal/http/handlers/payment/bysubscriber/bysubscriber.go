package bysubscriber

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	ListBySubscriber(ctx context.Context, subscriberID string) ([]*models.Payment, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.bysubscriber"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subscriberID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(subscriberID); err != nil {
		log.Error("invalid subscriber id format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid subscriber id"))
		return
	}

	payments, err := h.service.ListBySubscriber(r.Context(), subscriberID)
	if err != nil {
		log.Error("failed to list subscriber payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list subscriber payments"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payments": payments,
		"count":    len(payments),
	}))
}
