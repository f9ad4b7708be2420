// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// OrderDetails is what the client needs to start gateway checkout. ClientKey
// is the provider's frontend credential (Razorpay key id, Stripe client
// secret).
type OrderDetails struct {
	ProviderOrderID string
	Provider        model.PaymentProvider
	Amount          int64
	Currency        string
	Receipt         string
	ClientKey       string
}

// PaymentUseCase orchestrates order creation, client-side verification and
// asynchronous webhook notifications into one consistent Payment +
// Subscription state. Verify and webhook can race for the same payment; the
// status-guarded update plus the provider_payment_id unique constraint decide
// the winner, and the loser observes the same terminal state without error.
type PaymentUseCase interface {
	CreateOrder(ctx context.Context, userID string, plan model.Plan, currency string) (*OrderDetails, error)
	VerifyPayment(ctx context.Context, userID, providerOrderID, providerPaymentID, signature string) (*model.Payment, error)
	// HandleWebhook processes a raw provider notification. It is safe to call
	// any number of times with the same event. An ErrInvalidSignature return
	// still expects a 2xx response upstream: redelivering a bad signature
	// cannot succeed.
	HandleWebhook(ctx context.Context, provider model.PaymentProvider, body []byte, signatureHeader string) error

	ListPayments(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, int, error)
	Refund(ctx context.Context, paymentID string) (*model.Payment, error)
	// ReconcilePending finalizes stale pending payments by asking the gateway
	// for their order state. Returns how many payments reached a terminal
	// status.
	ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	pricing  PricingUseCase
	subs     SubscriptionUseCase
	gateways map[model.PaymentProvider]adapter.PaymentGateway
	routing  map[string]model.PaymentProvider // currency -> provider
	fallback model.PaymentProvider
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	pricing PricingUseCase,
	subs SubscriptionUseCase,
	gateways []adapter.PaymentGateway,
	routing map[string]model.PaymentProvider,
	fallback model.PaymentProvider,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	byName := make(map[model.PaymentProvider]adapter.PaymentGateway, len(gateways))
	for _, g := range gateways {
		byName[g.Name()] = g
	}
	norm := make(map[string]model.PaymentProvider, len(routing))
	for c, p := range routing {
		norm[strings.ToUpper(c)] = p
	}
	return &paymentUC{
		payments: payments,
		pricing:  pricing,
		subs:     subs,
		gateways: byName,
		routing:  norm,
		fallback: fallback,
		tm:       tm,
		log:      logger,
	}
}

func (u *paymentUC) gatewayFor(currency string) (adapter.PaymentGateway, error) {
	name, ok := u.routing[strings.ToUpper(currency)]
	if !ok {
		name = u.fallback
	}
	g, ok := u.gateways[name]
	if !ok {
		return nil, domain.ErrUnsupportedCurrency
	}
	return g, nil
}

func (u *paymentUC) gatewayByName(name model.PaymentProvider) (adapter.PaymentGateway, error) {
	g, ok := u.gateways[name]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return g, nil
}

// CreateOrder resolves the price, reserves a gateway order and persists the
// PENDING payment. Nothing is written before the gateway call succeeds, so a
// GatewayUnavailable failure leaves no row to roll back; the caller retries.
func (u *paymentUC) CreateOrder(ctx context.Context, userID string, plan model.Plan, currency string) (*OrderDetails, error) {
	quote, err := u.pricing.Resolve(ctx, plan, currency)
	if err != nil {
		return nil, err
	}
	gw, err := u.gatewayFor(quote.Currency)
	if err != nil {
		return nil, err
	}

	receipt := "rcpt_" + ulid.Make().String()
	remote, err := gw.CreateRemoteOrder(ctx, quote.Amount, quote.Currency, receipt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Payment{
		ID:              uuid.NewString(),
		UserID:          userID,
		Plan:            plan,
		Provider:        gw.Name(),
		Amount:          quote.Amount,
		Currency:        quote.Currency,
		DurationDays:    quote.DurationDays,
		Receipt:         receipt,
		ProviderOrderID: remote.ProviderOrderID,
		Status:          model.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.EnsurePending(ctx, tx, userID, plan)
		if err != nil {
			return err
		}
		p.SubscriptionID = &sub.ID
		return u.payments.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending), string(gw.Name()))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("user_id", userID).
		Str("provider_order_id", p.ProviderOrderID).
		Str("plan", string(plan)).
		Int64("amount", p.Amount).
		Str("currency", p.Currency).
		Msg("payment order created")

	return &OrderDetails{
		ProviderOrderID: p.ProviderOrderID,
		Provider:        p.Provider,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Receipt:         receipt,
		ClientKey:       remote.ClientKey,
	}, nil
}

// VerifyPayment is the synchronous notification path. A payment the webhook
// already completed returns success without re-processing.
func (u *paymentUC) VerifyPayment(ctx context.Context, userID, providerOrderID, providerPaymentID, signature string) (*model.Payment, error) {
	p, err := u.payments.FindByProviderOrderID(ctx, repository.NoTX, providerOrderID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if p.Status == model.PaymentStatusCompleted {
		return p, nil
	}

	gw, err := u.gatewayByName(p.Provider)
	if err != nil {
		return nil, err
	}
	if !gw.VerifySignature(providerOrderID, providerPaymentID, signature) {
		u.log.Warn().
			Str("security", "signature_mismatch").
			Str("payment_id", p.ID).
			Str("user_id", userID).
			Str("provider_order_id", providerOrderID).
			Msg("client-side payment signature rejected")
		return nil, domain.ErrInvalidSignature
	}

	if err := u.complete(ctx, p.ID, providerPaymentID); err != nil {
		return nil, err
	}
	return u.payments.FindByID(ctx, repository.NoTX, p.ID)
}

// complete marks the payment completed and activates the subscription in one
// transaction. Re-invocation for an already-completed payment is a no-op;
// a concurrent claim of the same provider payment id resolves to success for
// both callers.
func (u *paymentUC) complete(ctx context.Context, paymentID, providerPaymentID string) error {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		switch p.Status {
		case model.PaymentStatusCompleted:
			return nil
		case model.PaymentStatusPending:
		default:
			return domain.ErrPaymentNotPending
		}

		now := time.Now()
		ok, err := u.payments.MarkCompleted(ctx, tx, p.ID, providerPaymentID, now)
		if err != nil {
			return err
		}
		if !ok {
			// Guard did not match: somebody finished this payment between our
			// read and write. Re-read outside the switch below.
			return domain.ErrPaymentAlreadyClaimed
		}

		subID := ""
		if p.SubscriptionID != nil {
			subID = *p.SubscriptionID
		} else {
			sub, err := u.subs.EnsurePending(ctx, tx, p.UserID, p.Plan)
			if err != nil {
				return err
			}
			subID = sub.ID
		}
		if _, err := u.subs.Activate(ctx, tx, subID, p.Plan, p.DurationDays, now); err != nil {
			return err
		}

		metrics.IncPayment(string(model.PaymentStatusCompleted), string(p.Provider))
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
		u.log.Info().
			Str("payment_id", p.ID).
			Str("provider_payment_id", providerPaymentID).
			Str("subscription_id", subID).
			Msg("payment completed")
		return nil
	})
	if err == domain.ErrPaymentAlreadyClaimed {
		// Idempotency seam: losing the race is success when the winner reached
		// the same terminal state for the same provider payment.
		p, ferr := u.payments.FindByID(ctx, repository.NoTX, paymentID)
		if ferr != nil {
			return err
		}
		if p.Status == model.PaymentStatusCompleted &&
			p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID {
			return nil
		}
		return err
	}
	return err
}

// HandleWebhook is the asynchronous notification path. Gateways redeliver on
// non-2xx, so every write here is guarded to make re-application a no-op.
func (u *paymentUC) HandleWebhook(ctx context.Context, provider model.PaymentProvider, body []byte, signatureHeader string) error {
	gw, err := u.gatewayByName(provider)
	if err != nil {
		return err
	}
	evt, err := gw.ParseWebhookEvent(body, signatureHeader)
	if err != nil {
		if err == domain.ErrInvalidSignature {
			metrics.IncWebhookEvent(string(provider), "unknown", "bad_signature")
			u.log.Warn().
				Str("security", "webhook_signature_mismatch").
				Str("provider", string(provider)).
				Msg("webhook signature rejected")
		}
		return err
	}

	switch evt.Type {
	case adapter.WebhookPaymentCaptured, adapter.WebhookPaymentFailed:
	default:
		// Authenticated but not an event we act on; its payload may not even
		// carry an order reference. Acknowledge so the gateway stops.
		metrics.IncWebhookEvent(string(provider), string(evt.Type), "ignored")
		return nil
	}

	p, err := u.payments.FindByProviderOrderID(ctx, repository.NoTX, evt.ProviderOrderID)
	if err != nil {
		if err == domain.ErrNotFound {
			// Defensive: webhook for an order we never created (test traffic,
			// another environment). Acknowledge and move on.
			metrics.IncWebhookEvent(string(provider), string(evt.Type), "unknown_order")
			u.log.Info().
				Str("provider", string(provider)).
				Str("provider_order_id", evt.ProviderOrderID).
				Msg("webhook for unknown order ignored")
			return nil
		}
		return err
	}

	if evt.Type == adapter.WebhookPaymentCaptured {
		return u.applyCaptured(ctx, p, evt)
	}
	return u.applyFailed(ctx, p, evt)
}

func (u *paymentUC) applyCaptured(ctx context.Context, p *model.Payment, evt *adapter.WebhookEvent) error {
	if p.Status == model.PaymentStatusCompleted {
		metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "duplicate")
		return nil
	}

	// The webhook's signature authenticated the payload, but the money must
	// still match what we recorded at order time. A disagreement fails the
	// payment and never activates the subscription.
	if evt.Amount != p.Amount || !strings.EqualFold(evt.Currency, p.Currency) {
		reason := fmt.Sprintf("amount mismatch: gateway reported %d %s, recorded %d %s",
			evt.Amount, evt.Currency, p.Amount, p.Currency)
		if _, err := u.payments.MarkFailed(ctx, repository.NoTX, p.ID, reason); err != nil {
			return err
		}
		metrics.IncPayment(string(model.PaymentStatusFailed), string(p.Provider))
		metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "amount_mismatch")
		u.log.Error().
			Str("security", "amount_mismatch").
			Str("payment_id", p.ID).
			Int64("recorded_amount", p.Amount).
			Int64("reported_amount", evt.Amount).
			Str("recorded_currency", p.Currency).
			Str("reported_currency", evt.Currency).
			Msg("webhook amount disagrees with recorded payment; manual review required")
		return nil
	}

	if err := u.complete(ctx, p.ID, evt.ProviderPaymentID); err != nil {
		if err == domain.ErrPaymentNotPending {
			// Late capture for a payment already failed (e.g. marked abandoned
			// or amount-mismatched). Terminal states never regress.
			metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "stale")
			u.log.Warn().Str("payment_id", p.ID).Msg("capture event for non-pending payment ignored")
			return nil
		}
		return err
	}
	metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "processed")
	return nil
}

func (u *paymentUC) applyFailed(ctx context.Context, p *model.Payment, evt *adapter.WebhookEvent) error {
	// A completed payment never regresses on a late/out-of-order failure event.
	reason := evt.FailureReason
	if reason == "" {
		reason = "payment failed at gateway"
	}
	ok, err := u.payments.MarkFailed(ctx, repository.NoTX, p.ID, reason)
	if err != nil {
		return err
	}
	if ok {
		metrics.IncPayment(string(model.PaymentStatusFailed), string(p.Provider))
		metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "processed")
		u.log.Info().Str("payment_id", p.ID).Str("reason", reason).Msg("payment failed")
	} else {
		metrics.IncWebhookEvent(string(p.Provider), string(evt.Type), "duplicate")
	}
	return nil
}

func (u *paymentUC) ListPayments(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, int, error) {
	return u.payments.List(ctx, repository.NoTX, f)
}

// Refund drives COMPLETED -> REFUNDED through the gateway's refund API.
func (u *paymentUC) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status != model.PaymentStatusCompleted || p.ProviderPaymentID == nil {
		return nil, domain.ErrPaymentNotRefundable
	}
	gw, err := u.gatewayByName(p.Provider)
	if err != nil {
		return nil, err
	}
	refundID, err := gw.Refund(ctx, *p.ProviderPaymentID, p.Amount)
	if err != nil {
		return nil, err
	}
	ok, err := u.payments.MarkRefunded(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPaymentNotRefundable
	}
	metrics.IncPayment(string(model.PaymentStatusRefunded), string(p.Provider))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("refund_id", refundID).
		Int64("amount", p.Amount).
		Msg("payment refunded")
	return u.payments.FindByID(ctx, repository.NoTX, p.ID)
}

// ReconcilePending covers the gap where both notification paths were lost:
// the client never verified and the webhook never arrived. Each stale pending
// payment is checked against the gateway; captured orders complete through
// the same idempotent path as the webhook, failed ones are marked failed, and
// orders still awaiting payment are left alone.
func (u *paymentUC) ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	pending, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, limit)
	if err != nil {
		return 0, err
	}
	finalized := 0
	for _, p := range pending {
		gw, err := u.gatewayByName(p.Provider)
		if err != nil {
			continue
		}
		evt, err := gw.FetchOrderStatus(ctx, p.ProviderOrderID)
		if err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile: gateway lookup failed")
			continue
		}
		if evt == nil {
			continue
		}
		switch evt.Type {
		case adapter.WebhookPaymentCaptured:
			err = u.applyCaptured(ctx, p, evt)
		case adapter.WebhookPaymentFailed:
			err = u.applyFailed(ctx, p, evt)
		default:
			continue
		}
		if err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile: finalize failed")
			continue
		}
		finalized++
	}
	return finalized, nil
}
