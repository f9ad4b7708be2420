//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"finance-tracker/internal/config"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/usecase"
)

const (
	testJWTSecret = "test-jwt-secret"
	testAdminKey  = "test-admin-key"
)

func newTestRouter(t *testing.T, pay *mockPaymentUC, subs *mockSubscriptionUC) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	if subs == nil {
		subs = &mockSubscriptionUC{}
	}
	h := NewHandlers(pay, &mockPricingUC{}, subs, &mockStatsUC{}, &logger)
	return NewRouter(ServerDeps{
		Handlers: h,
		Auth:     config.AuthConfig{JWTSecret: testJWTSecret, AdminAPIKey: testAdminKey},
		Logger:   &logger,
	})
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, router http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderHandler(t *testing.T) {
	pay := &mockPaymentUC{
		CreateOrderFunc: func(ctx context.Context, userID string, plan model.Plan, currency string) (*usecase.OrderDetails, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			return &usecase.OrderDetails{
				ProviderOrderID: "order_1", Provider: model.ProviderRazorpay,
				Amount: 49900, Currency: "INR", Receipt: "rcpt_1",
			}, nil
		},
	}
	router := newTestRouter(t, pay, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/orders",
		`{"plan":"PRO_MONTHLY","currency":"INR"}`, userToken(t, "user-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OrderID != "order_1" || resp.Amount != 49900 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateOrderHandlerValidation(t *testing.T) {
	pay := &mockPaymentUC{}
	router := newTestRouter(t, pay, nil)
	token := userToken(t, "user-1")

	for _, body := range []string{
		``,
		`{"plan":"PRO_MONTHLY"}`,
		`{"plan":"PRO_MONTHLY","currency":"RUPEES"}`,
	} {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/orders", body, token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateOrderHandlerUnauthorized(t *testing.T) {
	router := newTestRouter(t, &mockPaymentUC{}, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/orders", `{}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, router, http.MethodPost, "/api/v1/payments/orders", `{}`, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestVerifyPaymentHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown order", domain.ErrPaymentNotFound, http.StatusNotFound},
		{"foreign payment", domain.ErrForbidden, http.StatusForbidden},
		{"bad signature", domain.ErrInvalidSignature, http.StatusBadRequest},
		{"claim conflict", domain.ErrPaymentAlreadyClaimed, http.StatusConflict},
		{"gateway down", domain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pay := &mockPaymentUC{
				VerifyPaymentFunc: func(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Payment, error) {
					return nil, tt.err
				},
			}
			router := newTestRouter(t, pay, nil)
			rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/verify",
				`{"order_id":"order_1","payment_id":"pay_1","signature":"sig"}`, userToken(t, "user-1"))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestVerifyPaymentHandlerSuccess(t *testing.T) {
	ppid := "pay_1"
	pay := &mockPaymentUC{
		VerifyPaymentFunc: func(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Payment, error) {
			return &model.Payment{
				ID: "p-1", UserID: userID, Plan: model.PlanProMonthly,
				Provider: model.ProviderRazorpay, Amount: 49900, Currency: "INR",
				ProviderOrderID: orderID, ProviderPaymentID: &ppid,
				Status: model.PaymentStatusCompleted,
			}, nil
		},
	}
	router := newTestRouter(t, pay, nil)
	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/verify",
		`{"order_id":"order_1","payment_id":"pay_1","signature":"sig"}`, userToken(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp paymentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "completed" {
		t.Errorf("status = %q", resp.Status)
	}
}

// Webhook responses follow redelivery semantics: 2xx for anything redelivery
// cannot fix, including bad signatures.
func TestWebhookHandlerStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"processed", nil, http.StatusOK},
		{"bad signature acked", domain.ErrInvalidSignature, http.StatusOK},
		{"unparseable body", domain.ErrInvalidArgument, http.StatusBadRequest},
		{"unknown provider", domain.ErrUnknownProvider, http.StatusBadRequest},
		{"internal error retried", domain.ErrOperationFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pay := &mockPaymentUC{
				HandleWebhookFunc: func(ctx context.Context, provider model.PaymentProvider, body []byte, sig string) error {
					if provider != model.ProviderRazorpay {
						t.Errorf("provider = %q", provider)
					}
					return tt.err
				},
			}
			router := newTestRouter(t, pay, nil)
			rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/webhook/razorpay", `{"event":"x"}`, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestMySubscriptionHandler(t *testing.T) {
	subs := &mockSubscriptionUC{
		CurrentFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
			return &model.Subscription{
				ID: "sub-1", UserID: userID, Plan: model.PlanProMonthly,
				Status:    model.SubscriptionStatusActive,
				ExpiresAt: time.Now().Add(-time.Hour), // lapsed but never flipped in storage
			}, nil
		},
	}
	router := newTestRouter(t, &mockPaymentUC{}, subs)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/subscriptions/me", "", userToken(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp subscriptionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "expired" {
		t.Errorf("lazy expiry not applied: status = %q, want expired", resp.Status)
	}
	if resp.HasAccess {
		t.Error("lapsed subscription must not report access")
	}
}

func TestMySubscriptionHandlerNotFound(t *testing.T) {
	router := newTestRouter(t, &mockPaymentUC{}, &mockSubscriptionUC{})
	rec := doRequest(t, router, http.MethodGet, "/api/v1/subscriptions/me", "", userToken(t, "user-1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	router := newTestRouter(t, &mockPaymentUC{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "", "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}
	// A user JWT is not an admin key.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "", userToken(t, "user-1"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("user token on admin route: status = %d, want 401", rec.Code)
	}
}

func TestAdminRefundHandler(t *testing.T) {
	pay := &mockPaymentUC{
		RefundFunc: func(ctx context.Context, paymentID string) (*model.Payment, error) {
			if paymentID != "p-1" {
				return nil, domain.ErrPaymentNotFound
			}
			return &model.Payment{ID: "p-1", Status: model.PaymentStatusRefunded, Provider: model.ProviderRazorpay}, nil
		},
	}
	router := newTestRouter(t, pay, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/payments/p-1/refund", "", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, http.MethodPost, "/api/v1/admin/payments/p-404/refund", "", testAdminKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing payment: status = %d, want 404", rec.Code)
	}
}

func TestAdminListPaymentsTimeFilter(t *testing.T) {
	var gotFilter *repository.PaymentFilter
	pay := &mockPaymentUC{
		ListPaymentsFunc: func(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, int, error) {
			gotFilter = &f
			return nil, 0, nil
		},
	}
	router := newTestRouter(t, pay, nil)

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/admin/payments?from=2026-03-01T00:00:00Z&to=2026-04-01T00:00:00Z", "", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotFilter == nil || gotFilter.From == nil || gotFilter.To == nil {
		t.Fatalf("time bounds not passed through: %+v", gotFilter)
	}

	// A typo'd timestamp must be rejected, not dropped into an
	// unfiltered listing.
	gotFilter = nil
	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/payments?from=2026-03-99", "", testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad from: status = %d, want 400", rec.Code)
	}
	if gotFilter != nil {
		t.Error("listing executed despite invalid filter")
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/payments?to=yesterday", "", testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad to: status = %d, want 400", rec.Code)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	router := newTestRouter(t, &mockPaymentUC{}, nil)
	if rec := doRequest(t, router, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}
