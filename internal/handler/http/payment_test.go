package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkornev/keymart/internal/handler/http/mocks"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/service"
)

func TestPaymentHandler_CreateInvoice(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockInvoiceService
		wantStatusCode int
		wantBody       *createInvoiceResponse
	}{
		{
			name: "valid_request_return_200",
			body: `{"amount":7.90,"currency":"USD","customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(&service.CreateInvoiceResult{
					InvoiceID:   "inv_1",
					PaymentLink: "https://pay.example/tok_1",
					PublicToken: "tok_1",
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantBody: &createInvoiceResponse{
				Success:     true,
				InvoiceID:   "inv_1",
				PaymentLink: "https://pay.example/tok_1",
				PublicToken: "tok_1",
			},
		},
		{
			name: "malformed_json_return_400",
			body: `{not json`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "invalid_amount_return_400",
			body: `{"amount":0,"customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(nil, models.ErrInvalidAmount).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "duplicate_order_return_409",
			body: `{"amount":7.90,"customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(nil, models.ErrConflictData).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name: "rate_limited_return_429",
			body: `{"amount":7.90,"customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).
					Return(nil, models.NewTooManyRequestsError(30*time.Second)).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusTooManyRequests,
		},
		{
			name: "provider_down_return_502",
			body: `{"amount":7.90,"customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(nil, models.ErrProviderInternal).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusBadGateway,
		},
		{
			name: "internal_error_return_500",
			body: `{"amount":7.90,"customer_email":"a@b.com","order_id":"ORD-1"}`,
			setup: func(t *testing.T) *mocks.MockInvoiceService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockInvoiceService(ctrl)
				svcMock.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(nil, models.ErrInternalError).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, "/api/payments/invoice", strings.NewReader(tt.body))
			require.NoError(t, err)

			w := httptest.NewRecorder()
			st := tt.setup(t)

			handler := NewPaymentHandler(st, nil)
			h := handler.CreateInvoice()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody != nil {
				resBody, err := io.ReadAll(res.Body)
				require.NoError(t, err)

				var got createInvoiceResponse
				require.NoError(t, json.Unmarshal(resBody, &got))

				if diff := cmp.Diff(*tt.wantBody, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestPaymentHandler_CheckStatus(t *testing.T) {
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		target         string
		setup          func(t *testing.T) *mocks.MockStatusService
		wantStatusCode int
		wantBody       *statusResponse
	}{
		{
			name:   "paid_token_return_200",
			target: "/api/payments/status?token=tok_1",
			setup: func(t *testing.T) *mocks.MockStatusService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockStatusService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), "tok_1").Return(&service.StatusResult{
					Paid:        true,
					Status:      models.OrderStatusCompleted,
					AmountCents: 790,
					Currency:    "USD",
					PaymentID:   "pay_1",
					PaidAt:      &paidAt,
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantBody: &statusResponse{
				Success:     true,
				Paid:        true,
				Status:      models.OrderStatusCompleted,
				AmountCents: 790,
				Currency:    "USD",
				PaidAt:      paidAt.Format(time.RFC3339),
				PaymentID:   "pay_1",
			},
		},
		{
			name:   "missing_token_return_400",
			target: "/api/payments/status",
			setup: func(t *testing.T) *mocks.MockStatusService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockStatusService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), "").Return(nil, models.ErrEmptyToken).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "unknown_token_return_404",
			target: "/api/payments/status?token=tok_ghost",
			setup: func(t *testing.T) *mocks.MockStatusService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockStatusService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), "tok_ghost").Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:   "rate_limited_return_429",
			target: "/api/payments/status?token=tok_1",
			setup: func(t *testing.T) *mocks.MockStatusService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockStatusService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), "tok_1").
					Return(nil, models.NewTooManyRequestsError(60*time.Second)).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			st := tt.setup(t)

			handler := NewPaymentHandler(nil, st)
			h := handler.CheckStatus()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody != nil {
				resBody, err := io.ReadAll(res.Body)
				require.NoError(t, err)

				var got statusResponse
				require.NoError(t, json.Unmarshal(resBody, &got))

				if diff := cmp.Diff(*tt.wantBody, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
