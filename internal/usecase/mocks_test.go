//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
	"finance-tracker/internal/domain/ports/repository"
)

// MockPaymentRepo is an in-memory PaymentRepository. Guarded transitions
// behave like the SQL implementation: status guards and the unique
// provider_payment_id constraint are enforced under a mutex, so concurrent
// callers observe first-writer-wins.
type MockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	SaveFunc          func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	MarkCompletedFunc func(ctx context.Context, tx repository.Tx, id, providerPaymentID string, paidAt time.Time) (bool, error)
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) clone(p *model.Payment) *model.Payment {
	cp := *p
	return &cp
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.payments {
		if other.ID != p.ID && other.ProviderOrderID == p.ProviderOrderID {
			return domain.ErrAlreadyExists
		}
	}
	m.payments[p.ID] = m.clone(p)
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.clone(p), nil
}

func (m *MockPaymentRepo) FindByProviderOrderID(ctx context.Context, tx repository.Tx, providerOrderID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderOrderID == providerOrderID {
			return m.clone(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, providerPaymentID string, paidAt time.Time) (bool, error) {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, tx, id, providerPaymentID, paidAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	for _, other := range m.payments {
		if other.ID != id && other.ProviderPaymentID != nil && *other.ProviderPaymentID == providerPaymentID {
			return false, domain.ErrPaymentAlreadyClaimed
		}
	}
	p.Status = model.PaymentStatusCompleted
	p.ProviderPaymentID = &providerPaymentID
	t := paidAt
	p.PaidAt = &t
	p.UpdatedAt = paidAt
	return true, nil
}

func (m *MockPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	return true, nil
}

func (m *MockPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusCompleted {
		return false, nil
	}
	p.Status = model.PaymentStatusRefunded
	return true, nil
}

func (m *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, m.clone(p))
	}
	return out, len(out), nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			out = append(out, m.clone(p))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]int64)
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusCompleted {
			totals[p.Currency] += p.Amount
		}
	}
	return totals, nil
}

// MockSubscriptionRepo is an in-memory SubscriptionRepository enforcing the
// unique user_id constraint.
type MockSubscriptionRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Subscription

	SaveFunc          func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	MarkCancelledFunc func(ctx context.Context, tx repository.Tx, id string) (bool, error)
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{byID: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) clone(s *model.Subscription) *model.Subscription {
	cp := *s
	return &cp
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.ID != s.ID && other.UserID == s.UserID {
			return domain.ErrAlreadyExists
		}
	}
	m.byID[s.ID] = m.clone(s)
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.clone(s), nil
}

// MarkCancelled mutates only the status of the live row, mirroring the
// guarded single-column UPDATE of the real repository.
func (m *MockSubscriptionRepo) MarkCancelled(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if m.MarkCancelledFunc != nil {
		return m.MarkCancelledFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.Status == model.SubscriptionStatusCancelled {
		return false, nil
	}
	s.Status = model.SubscriptionStatusCancelled
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.UserID == userID {
			return m.clone(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

// MockPlanPricingRepo is an in-memory PlanPricingRepository.
type MockPlanPricingRepo struct {
	mu   sync.Mutex
	rows []*model.PlanPricing
}

func NewMockPlanPricingRepo(rows ...*model.PlanPricing) *MockPlanPricingRepo {
	return &MockPlanPricingRepo{rows: rows}
}

func (m *MockPlanPricingRepo) Save(ctx context.Context, tx repository.Tx, p *model.PlanPricing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == p.ID || (row.Plan == p.Plan && row.Currency == p.Currency) {
			cp := *p
			m.rows[i] = &cp
			return nil
		}
	}
	cp := *p
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockPlanPricingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanPricingRepo) FindActive(ctx context.Context, tx repository.Tx, plan model.Plan, currency string) (*model.PlanPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.PlanPricing
	for _, row := range m.rows {
		if row.Plan != plan || row.Currency != currency || !row.Active {
			continue
		}
		if best == nil || row.UpdatedAt.After(best.UpdatedAt) {
			best = row
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockPlanPricingRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PlanPricing
	for _, row := range m.rows {
		if row.Active {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanPricingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PlanPricing, 0, len(m.rows))
	for _, row := range m.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

// MockTxManager serializes transactional sections with a mutex, standing in
// for the row locks a real database would take.
type MockTxManager struct {
	mu sync.Mutex

	WithTxFunc func(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *MockTxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opts, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// MockGateway is a scriptable PaymentGateway.
type MockGateway struct {
	NameVal model.PaymentProvider

	CreateRemoteOrderFunc func(ctx context.Context, amount int64, currency, receipt string) (adapter.RemoteOrder, error)
	VerifySignatureFunc   func(providerOrderID, providerPaymentID, signature string) bool
	ParseWebhookEventFunc func(body []byte, signatureHeader string) (*adapter.WebhookEvent, error)
	FetchOrderStatusFunc  func(ctx context.Context, providerOrderID string) (*adapter.WebhookEvent, error)
	RefundFunc            func(ctx context.Context, providerPaymentID string, amount int64) (string, error)
}

func (m *MockGateway) Name() model.PaymentProvider {
	if m.NameVal == "" {
		return model.ProviderRazorpay
	}
	return m.NameVal
}

func (m *MockGateway) CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (adapter.RemoteOrder, error) {
	if m.CreateRemoteOrderFunc != nil {
		return m.CreateRemoteOrderFunc(ctx, amount, currency, receipt)
	}
	return adapter.RemoteOrder{ProviderOrderID: "order_" + receipt}, nil
}

func (m *MockGateway) VerifySignature(providerOrderID, providerPaymentID, signature string) bool {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(providerOrderID, providerPaymentID, signature)
	}
	return signature == "valid"
}

func (m *MockGateway) ParseWebhookEvent(body []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	if m.ParseWebhookEventFunc != nil {
		return m.ParseWebhookEventFunc(body, signatureHeader)
	}
	return nil, domain.ErrInvalidSignature
}

func (m *MockGateway) FetchOrderStatus(ctx context.Context, providerOrderID string) (*adapter.WebhookEvent, error) {
	if m.FetchOrderStatusFunc != nil {
		return m.FetchOrderStatusFunc(ctx, providerOrderID)
	}
	return nil, nil
}

func (m *MockGateway) Refund(ctx context.Context, providerPaymentID string, amount int64) (string, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, providerPaymentID, amount)
	}
	return "rfnd_" + providerPaymentID, nil
}
