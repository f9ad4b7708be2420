//go:build !integration

package web

import (
	"context"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/usecase"
)

type mockPaymentUC struct {
	CreateOrderFunc   func(ctx context.Context, userID string, plan model.Plan, currency string) (*usecase.OrderDetails, error)
	VerifyPaymentFunc func(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Payment, error)
	HandleWebhookFunc func(ctx context.Context, provider model.PaymentProvider, body []byte, sig string) error
	ListPaymentsFunc  func(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, int, error)
	RefundFunc        func(ctx context.Context, paymentID string) (*model.Payment, error)
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) CreateOrder(ctx context.Context, userID string, plan model.Plan, currency string) (*usecase.OrderDetails, error) {
	return m.CreateOrderFunc(ctx, userID, plan, currency)
}

func (m *mockPaymentUC) VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Payment, error) {
	return m.VerifyPaymentFunc(ctx, userID, orderID, paymentID, signature)
}

func (m *mockPaymentUC) HandleWebhook(ctx context.Context, provider model.PaymentProvider, body []byte, sig string) error {
	return m.HandleWebhookFunc(ctx, provider, body, sig)
}

func (m *mockPaymentUC) ListPayments(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, int, error) {
	if m.ListPaymentsFunc != nil {
		return m.ListPaymentsFunc(ctx, f)
	}
	return nil, 0, nil
}

func (m *mockPaymentUC) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, paymentID)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentUC) ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	return 0, nil
}

type mockPricingUC struct {
	ListActiveFunc func(ctx context.Context) ([]*model.PlanPricing, error)
}

var _ usecase.PricingUseCase = (*mockPricingUC)(nil)

func (m *mockPricingUC) Resolve(ctx context.Context, plan model.Plan, currency string) (*model.PlanPricing, error) {
	return nil, domain.ErrPricingNotFound
}

func (m *mockPricingUC) ListActive(ctx context.Context) ([]*model.PlanPricing, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockPricingUC) ListAll(ctx context.Context) ([]*model.PlanPricing, error) { return nil, nil }

func (m *mockPricingUC) Create(ctx context.Context, plan model.Plan, currency string, amount int64, durationDays int, name, description string) (*model.PlanPricing, error) {
	return nil, domain.ErrInvalidArgument
}

func (m *mockPricingUC) Update(ctx context.Context, id string, patch usecase.PricingPatch) (*model.PlanPricing, error) {
	return nil, domain.ErrNotFound
}

type mockSubscriptionUC struct {
	CurrentFunc func(ctx context.Context, userID string) (*model.Subscription, error)
	CancelFunc  func(ctx context.Context, userID string) (*model.Subscription, error)
}

var _ usecase.SubscriptionUseCase = (*mockSubscriptionUC)(nil)

func (m *mockSubscriptionUC) EnsurePending(ctx context.Context, tx repository.Tx, userID string, plan model.Plan) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockSubscriptionUC) Activate(ctx context.Context, tx repository.Tx, id string, plan model.Plan, durationDays int, now time.Time) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockSubscriptionUC) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, userID)
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *mockSubscriptionUC) Current(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx, userID)
	}
	return nil, domain.ErrSubscriptionNotFound
}

type mockStatsUC struct{}

var _ usecase.StatsUseCase = (*mockStatsUC)(nil)

func (m *mockStatsUC) Revenue(ctx context.Context) (*usecase.RevenueTotals, error) {
	return &usecase.RevenueTotals{
		Week:  map[string]int64{"INR": 49900},
		Month: map[string]int64{"INR": 149700},
		Year:  map[string]int64{"INR": 499000},
	}, nil
}
