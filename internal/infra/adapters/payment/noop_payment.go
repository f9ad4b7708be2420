package payment

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
)

// NoOpGateway is a loopback provider for development runs with no gateway
// credentials. Orders are never charged; signatures use a fixed dev secret.
type NoOpGateway struct {
	secret string
}

var _ adapter.PaymentGateway = (*NoOpGateway)(nil)

func NewNoOpGateway() *NoOpGateway {
	return &NoOpGateway{secret: "dev-secret"}
}

func (g *NoOpGateway) Name() model.PaymentProvider {
	return model.ProviderRazorpay
}

func (g *NoOpGateway) CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (adapter.RemoteOrder, error) {
	id := fmt.Sprintf("order_dev_%d", time.Now().UnixNano())
	raw, _ := json.Marshal(map[string]interface{}{"id": id, "amount": amount, "currency": currency, "receipt": receipt})
	return adapter.RemoteOrder{ProviderOrderID: id, ClientKey: "dev-key", Raw: raw}, nil
}

func (g *NoOpGateway) VerifySignature(providerOrderID, providerPaymentID, signature string) bool {
	expected := hmacHex([]byte(g.secret), []byte(providerOrderID+"|"+providerPaymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *NoOpGateway) ParseWebhookEvent(body []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	expected := hmacHex([]byte(g.secret), body)
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return nil, domain.ErrInvalidSignature
	}
	var ev adapter.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: undecodable webhook body", domain.ErrInvalidArgument)
	}
	return &ev, nil
}

func (g *NoOpGateway) FetchOrderStatus(ctx context.Context, providerOrderID string) (*adapter.WebhookEvent, error) {
	return nil, nil
}

func (g *NoOpGateway) Refund(ctx context.Context, providerPaymentID string, amount int64) (string, error) {
	return "rfnd_dev_" + providerPaymentID, nil
}
