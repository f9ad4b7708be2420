package payment

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
)

// StripeGateway drives the Stripe PaymentIntents API. The intent id doubles
// as the provider order id.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	log           *zerolog.Logger
}

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

func NewStripeGateway(secretKey, webhookSecret string, logger *zerolog.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		log:           logger,
	}
}

func (g *StripeGateway) Name() model.PaymentProvider {
	return model.ProviderStripe
}

func (g *StripeGateway) CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (adapter.RemoteOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"receipt": receipt},
	}
	params.Context = ctx
	pi, err := paymentintent.New(params)
	if err != nil {
		return adapter.RemoteOrder{}, g.mapErr(err, "create payment intent")
	}
	raw, _ := json.Marshal(pi)
	return adapter.RemoteOrder{ProviderOrderID: pi.ID, ClientKey: pi.ClientSecret, Raw: raw}, nil
}

// VerifySignature checks the server-minted confirmation token the client
// echoes back after checkout. Stripe has no Razorpay-style client signature,
// so the token is an HMAC over the id pair keyed with the API secret.
func (g *StripeGateway) VerifySignature(providerOrderID, providerPaymentID, signature string) bool {
	expected := hmacHex([]byte(g.secretKey), []byte(providerOrderID+"|"+providerPaymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *StripeGateway) ParseWebhookEvent(body []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	// Version pinning on the webhook endpoint is an account-level setting;
	// a mismatch with the SDK's pin must not look like a forged signature.
	event, err := webhook.ConstructEventWithOptions(body, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		// Signed event of a type this service does not consume; hand back
		// the raw type for the caller to acknowledge.
		return &adapter.WebhookEvent{Type: adapter.WebhookEventType(event.Type)}, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: undecodable event payload", domain.ErrInvalidArgument)
	}
	if event.Type == "payment_intent.succeeded" {
		return g.intentEvent(&pi, adapter.WebhookPaymentCaptured), nil
	}
	ev := g.intentEvent(&pi, adapter.WebhookPaymentFailed)
	if pi.LastPaymentError != nil {
		ev.FailureReason = pi.LastPaymentError.Msg
	}
	return ev, nil
}

func (g *StripeGateway) FetchOrderStatus(ctx context.Context, providerOrderID string) (*adapter.WebhookEvent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(providerOrderID, params)
	if err != nil {
		return nil, g.mapErr(err, "fetch payment intent")
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return g.intentEvent(pi, adapter.WebhookPaymentCaptured), nil
	case stripe.PaymentIntentStatusCanceled:
		ev := g.intentEvent(pi, adapter.WebhookPaymentFailed)
		ev.FailureReason = string(pi.CancellationReason)
		return ev, nil
	default:
		return nil, nil
	}
}

func (g *StripeGateway) Refund(ctx context.Context, providerPaymentID string, amount int64) (string, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(providerPaymentID),
		Amount: stripe.Int64(amount),
	}
	params.Context = ctx
	rf, err := refund.New(params)
	if err != nil {
		return "", g.mapErr(err, "create refund")
	}
	return rf.ID, nil
}

func (g *StripeGateway) intentEvent(pi *stripe.PaymentIntent, typ adapter.WebhookEventType) *adapter.WebhookEvent {
	paymentID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		paymentID = pi.LatestCharge.ID
	}
	return &adapter.WebhookEvent{
		Type:              typ,
		ProviderOrderID:   pi.ID,
		ProviderPaymentID: paymentID,
		Amount:            pi.Amount,
		Currency:          strings.ToUpper(string(pi.Currency)),
	}
}

func (g *StripeGateway) mapErr(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %s: %s", domain.ErrGatewayUnavailable, op, stripeErr.Code)
		}
		g.log.Warn().Str("code", string(stripeErr.Code)).Str("op", op).Msg("stripe rejected request")
		return fmt.Errorf("%w: %s: %s", domain.ErrGatewayRejected, op, stripeErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, op, err)
}
