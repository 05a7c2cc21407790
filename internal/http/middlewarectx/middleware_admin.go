package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/isp-billing/internal/http/response"
)

// AdminOnlyMiddleware пропускает дальше только запросы с ролью admin.
// Используется для мутирующих операций: смены статусов, удалений,
// ручного запуска реконсиляции.
func AdminOnlyMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(Role).(string)
			if !ok || role != "admin" {
				log.Warn("access denied for non-admin user",
					slog.String("role", role))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
