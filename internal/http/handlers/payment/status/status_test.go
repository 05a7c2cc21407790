package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/isp-billing/internal/models"
	"github.com/magabrotheeeer/isp-billing/internal/storage/repository"
)

// MockService реализует интерфейс status.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) UpdateStatus(ctx context.Context, actorUID, id string, next models.PaymentStatus) error {
	args := m.Called(ctx, actorUID, id, next)
	return args.Error(0)
}

const paymentID = "3f2f4f3e-9c1a-4ad9-8f60-0a5b1f6f2a11"

func TestStatusHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		id             string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный перевод в Paid",
			id:   paymentID,
			body: `{"status":"Paid"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, mock.Anything, paymentID, models.StatusPaid).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "некорректный id в URL",
			id:             "abc",
			body:           `{"status":"Paid"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"invalid id"`,
		},
		{
			name:           "недопустимый статус в теле",
			id:             paymentID,
			body:           `{"status":"Cancelled"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"status":"Error"`,
		},
		{
			name: "переход из Paid запрещен",
			id:   paymentID,
			body: `{"status":"Pending"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, mock.Anything, paymentID, models.StatusPending).
					Return(&models.ErrInvalidTransition{From: models.StatusPaid, To: models.StatusPending})
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `invalid status transition`,
		},
		{
			name: "запись не найдена",
			id:   paymentID,
			body: `{"status":"Paid"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, mock.Anything, paymentID, models.StatusPaid).
					Return(repository.ErrPaymentNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"payment not found"`,
		},
		{
			name: "ошибка сервиса",
			id:   paymentID,
			body: `{"status":"Paid"}`,
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, mock.Anything, paymentID, models.StatusPaid).
					Return(errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"could not update payment status"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPut, "/payments/"+tt.id+"/status", strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
