package adapter

import (
	"context"

	"finance-tracker/internal/domain/model"
)

type WebhookEventType string

const (
	WebhookPaymentCaptured WebhookEventType = "payment.captured"
	WebhookPaymentFailed   WebhookEventType = "payment.failed"
)

// WebhookEvent is a provider webhook payload normalized after its signature
// has been verified. Amount is in the smallest currency unit.
type WebhookEvent struct {
	Type              WebhookEventType
	ProviderOrderID   string
	ProviderPaymentID string
	Amount            int64
	Currency          string
	FailureReason     string
}

// RemoteOrder is the gateway-side order created before the user pays.
// ClientKey is whatever the frontend checkout needs to start payment: the
// Razorpay key id, or the Stripe client secret.
type RemoteOrder struct {
	ProviderOrderID string
	ClientKey       string
	Raw             []byte // untouched provider response, for audit logging
}

// PaymentGateway is the hex port for payment providers. One implementation
// per provider; the orchestrator selects by currency at construction time.
//
// VerifySignature and ParseWebhookEvent are pure/local: they never touch the
// network, so the security-critical boundary stays unit-testable offline.
type PaymentGateway interface {
	Name() model.PaymentProvider

	// CreateRemoteOrder reserves an order with the gateway. Transport and 5xx
	// failures map to ErrGatewayUnavailable (retryable by the caller);
	// gateway-side rejections map to ErrGatewayRejected.
	CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (RemoteOrder, error)

	// VerifySignature checks the client-submitted signature over
	// (orderID, paymentID) against the provider secret.
	VerifySignature(providerOrderID, providerPaymentID, signature string) bool

	// ParseWebhookEvent authenticates the raw webhook body against the
	// provider's webhook secret (a distinct secret from client-side
	// verification) and decodes a normalized event. A bad signature is
	// ErrInvalidSignature; an undecodable body is ErrInvalidArgument.
	// A signed event of a type this service does not consume is returned
	// with the provider's raw type, never an error, so the caller can
	// acknowledge it and stop the gateway from redelivering.
	ParseWebhookEvent(body []byte, signatureHeader string) (*WebhookEvent, error)

	// FetchOrderStatus asks the gateway for the current state of an order.
	// Used only by reconciliation. A nil event means the order is still
	// awaiting payment.
	FetchOrderStatus(ctx context.Context, providerOrderID string) (*WebhookEvent, error)

	// Refund refunds a captured payment and returns the provider refund id.
	Refund(ctx context.Context, providerPaymentID string, amount int64) (string, error)
}
