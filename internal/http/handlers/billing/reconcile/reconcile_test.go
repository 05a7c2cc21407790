package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/services/reconciler"
)

// MockService реализует интерфейс reconcile.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Reconcile(ctx context.Context) (models.ReconcileSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.ReconcileSummary), args.Error(1)
}

func TestReconcileHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный прогон",
			setupMock: func(m *MockService) {
				m.On("Reconcile", mock.Anything).
					Return(models.ReconcileSummary{Processed: 10, Created: 3, Archived: 1}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"created":3`,
		},
		{
			name: "прогон уже выполняется",
			setupMock: func(m *MockService) {
				m.On("Reconcile", mock.Anything).
					Return(models.ReconcileSummary{}, reconciler.ErrRunInProgress)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `already in progress`,
		},
		{
			name: "ошибка прогона",
			setupMock: func(m *MockService) {
				m.On("Reconcile", mock.Anything).
					Return(models.ReconcileSummary{}, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"reconciliation run failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/billing/reconcile", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
