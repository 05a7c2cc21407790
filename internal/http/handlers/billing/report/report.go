// Package report реализует HTTP-обработчик отчёта по платёжному реестру.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/isp-billing/internal/http/response"
	"github.com/magabrotheeeer/isp-billing/internal/lib/sl"
	"github.com/magabrotheeeer/isp-billing/internal/models"
)

// Handler управляет HTTP-запросами на построение отчётов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики отчётов.
type Service interface {
	Report(ctx context.Context, filter models.ReportFilter) (*models.BillingReport, error)
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
// @Summary Отчёт по платёжному реестру
// @Description Возвращает суммы оплаченного и неоплаченного за период [from, to).
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummyReportFilter true "Границы периода"
// @Success 200 {object} models.BillingReport "Агрегаты за период"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/report [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.report"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyReportFilter
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

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid from date"))
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid to date"))
		return
	}
	if !from.Before(to) {
		log.Error("from date is not before to date")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("from must be before to"))
		return
	}

	reportData, err := h.service.Report(r.Context(), models.ReportFilter{From: from, To: to})
	if err != nil {
		log.Error("failed to build report", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to build report"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(reportData))
}
