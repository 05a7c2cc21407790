// Package ispbilling предоставляет маршруты для основного приложения.
package ispbilling

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	auditlist "github.com/magabrotheeeer/isp-billing/internal/http/handlers/audit/list"
	"github.com/magabrotheeeer/isp-billing/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/isp-billing/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/isp-billing/internal/http/handlers/billing/reconcile"
	"github.com/magabrotheeeer/isp-billing/internal/http/handlers/billing/report"
	"github.com/magabrotheeeer/isp-billing/internal/http/handlers/health"
	paymentbysubscriber "github.com/magabrotheeeer/isp-billing/internal/http/handlers/payment/bysubscriber"
	paymentlist "github.com/magabrotheeeer/isp-billing/internal/http/handlers/payment/list"
	paymentread "github.com/magabrotheeeer/isp-billing/internal/http/handlers/payment/read"
	paymentremove "github.com/magabrotheeeer/isp-billing/internal/http/handlers/payment/remove"
	paymentstatus "github.com/magabrotheeeer/isp-billing/internal/http/handlers/payment/status"
	plancreate "github.com/magabrotheeeer/isp-billing/internal/http/handlers/plan/create"
	planlist "github.com/magabrotheeeer/isp-billing/internal/http/handlers/plan/list"
	planread "github.com/magabrotheeeer/isp-billing/internal/http/handlers/plan/read"
	planremove "github.com/magabrotheeeer/isp-billing/internal/http/handlers/plan/remove"
	planupdate "github.com/magabrotheeeer/isp-billing/internal/http/handlers/plan/update"
	subcreate "github.com/magabrotheeeer/isp-billing/internal/http/handlers/subscriber/create"
	sublist "github.com/magabrotheeeer/isp-billing/internal/http/handlers/subscriber/list"
	subread "github.com/magabrotheeeer/isp-billing/internal/http/handlers/subscriber/read"
	subremove "github.com/magabrotheeeer/isp-billing/internal/http/handlers/subscriber/remove"
	subupdate "github.com/magabrotheeeer/isp-billing/internal/http/handlers/subscriber/update"
	"github.com/magabrotheeeer/isp-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/isp-billing/internal/lib/jwt"
	auditservice "github.com/magabrotheeeer/isp-billing/internal/services/audit"
	authservice "github.com/magabrotheeeer/isp-billing/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/isp-billing/internal/services/payment"
	planservice "github.com/magabrotheeeer/isp-billing/internal/services/plan"
	reconcilerservice "github.com/magabrotheeeer/isp-billing/internal/services/reconciler"
	subscriberservice "github.com/magabrotheeeer/isp-billing/internal/services/subscriber"
)

// Services — набор сервисов, необходимых маршрутам приложения.
type Services struct {
	Auth       *authservice.Service
	Plan       *planservice.Service
	Subscriber *subscriberservice.Service
	Payment    *paymentservice.Service
	Reconciler *reconcilerservice.Service
	Audit      *auditservice.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker, s *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Get("/plans", planlist.New(logger, s.Plan).ServeHTTP)
			r.Get("/plans/{id}", planread.New(logger, s.Plan).ServeHTTP)

			r.Get("/subscribers", sublist.New(logger, s.Subscriber).ServeHTTP)
			r.Get("/subscribers/{id}", subread.New(logger, s.Subscriber).ServeHTTP)
			r.Get("/subscribers/{id}/payments", paymentbysubscriber.New(logger, s.Payment).ServeHTTP)

			r.Get("/payments", paymentlist.New(logger, s.Payment).ServeHTTP)
			r.Get("/payments/{id}", paymentread.New(logger, s.Payment).ServeHTTP)

			r.Post("/billing/report", report.New(logger, s.Payment).ServeHTTP)

			// Мутирующие операции доступны только администраторам
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))

				r.Post("/plans", plancreate.New(logger, s.Plan).ServeHTTP)
				r.Put("/plans/{id}", planupdate.New(logger, s.Plan).ServeHTTP)
				r.Delete("/plans/{id}", planremove.New(logger, s.Plan).ServeHTTP)

				r.Post("/subscribers", subcreate.New(logger, s.Subscriber).ServeHTTP)
				r.Put("/subscribers/{id}", subupdate.New(logger, s.Subscriber).ServeHTTP)
				r.Delete("/subscribers/{id}", subremove.New(logger, s.Subscriber).ServeHTTP)

				r.Put("/payments/{id}/status", paymentstatus.New(logger, s.Payment).ServeHTTP)
				r.Delete("/payments/{id}", paymentremove.New(logger, s.Payment).ServeHTTP)

				r.Post("/billing/reconcile", reconcile.New(logger, s.Reconciler).ServeHTTP)
				r.Get("/audit", auditlist.New(logger, s.Audit).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
