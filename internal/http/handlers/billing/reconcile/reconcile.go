// Package reconcile реализует HTTP-обработчик ручного запуска реконсиляции.
//
// Запуск синхронный: ответ возвращается после завершения прогона и содержит
// его итог. Если прогон уже идёт, возвращается HTTP 409 Conflict.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/services/reconciler"
)

// Handler управляет HTTP-запросами на запуск реконсиляции.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс движка реконсиляции.
type Service interface {
	Reconcile(ctx context.Context) (models.ReconcileSummary, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить реконсиляцию реестра
// @Description Синхронно выполняет прогон реконсиляции и возвращает его итог.
// @Tags Billing
// @Produce  json
// @Success 200 {object} models.ReconcileSummary "Итог прогона"
// @Failure 409 {object} response.ErrorResponse "Прогон уже выполняется"
// @Failure 500 {object} response.ErrorResponse "Ошибка прогона"
// @Security BearerAuth
// @Router /billing/reconcile [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.reconcile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	summary, err := h.service.Reconcile(r.Context())
	if errors.Is(err, reconciler.ErrRunInProgress) {
		log.Warn("reconciliation already in progress")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("reconciliation run already in progress"))
		return
	}
	if err != nil {
		log.Error("reconciliation run failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("reconciliation run failed"))
		return
	}

	log.Info("reconciliation run finished",
		slog.Int("processed", summary.Processed),
		slog.Int("created", summary.Created))
	render.JSON(w, r, response.StatusOKWithData(summary))
}
