package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
)

const razorpayBaseURL = "https://api.razorpay.com"

// RazorpayGateway talks to the Razorpay Orders REST API. Client-side
// signatures are HMAC-SHA256 over "orderID|paymentID" with the key secret;
// webhook signatures are HMAC-SHA256 over the raw body with the webhook
// secret.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	log           *zerolog.Logger
}

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

func NewRazorpayGateway(keyID, keySecret, webhookSecret string, logger *zerolog.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       razorpayBaseURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           logger,
	}
}

func (g *RazorpayGateway) Name() model.PaymentProvider {
	return model.ProviderRazorpay
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (adapter.RemoteOrder, error) {
	body, err := g.call(ctx, http.MethodPost, "/v1/orders", razorpayOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return adapter.RemoteOrder{}, err
	}
	var resp razorpayOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return adapter.RemoteOrder{}, fmt.Errorf("%w: undecodable order response", domain.ErrGatewayUnavailable)
	}
	return adapter.RemoteOrder{ProviderOrderID: resp.ID, ClientKey: g.keyID, Raw: body}, nil
}

func (g *RazorpayGateway) VerifySignature(providerOrderID, providerPaymentID, signature string) bool {
	expected := hmacHex([]byte(g.keySecret), []byte(providerOrderID+"|"+providerPaymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type razorpayWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				Currency         string `json:"currency"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (g *RazorpayGateway) ParseWebhookEvent(body []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	expected := hmacHex([]byte(g.webhookSecret), body)
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return nil, domain.ErrInvalidSignature
	}
	var payload razorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable webhook body", domain.ErrInvalidArgument)
	}
	entity := payload.Payload.Payment.Entity
	switch payload.Event {
	case "payment.captured":
		return &adapter.WebhookEvent{
			Type:              adapter.WebhookPaymentCaptured,
			ProviderOrderID:   entity.OrderID,
			ProviderPaymentID: entity.ID,
			Amount:            entity.Amount,
			Currency:          entity.Currency,
		}, nil
	case "payment.failed":
		return &adapter.WebhookEvent{
			Type:              adapter.WebhookPaymentFailed,
			ProviderOrderID:   entity.OrderID,
			ProviderPaymentID: entity.ID,
			Amount:            entity.Amount,
			Currency:          entity.Currency,
			FailureReason:     entity.ErrorDescription,
		}, nil
	default:
		// Signed and well-formed, just not an event this service consumes
		// (payment.authorized, order.paid, ...). Surface the raw type so the
		// caller can acknowledge it; erroring here would make the gateway
		// redeliver forever.
		return &adapter.WebhookEvent{Type: adapter.WebhookEventType(payload.Event)}, nil
	}
}

type razorpayPaymentsList struct {
	Items []struct {
		ID               string `json:"id"`
		OrderID          string `json:"order_id"`
		Status           string `json:"status"`
		Amount           int64  `json:"amount"`
		Currency         string `json:"currency"`
		ErrorDescription string `json:"error_description"`
	} `json:"items"`
}

func (g *RazorpayGateway) FetchOrderStatus(ctx context.Context, providerOrderID string) (*adapter.WebhookEvent, error) {
	body, err := g.call(ctx, http.MethodGet, "/v1/orders/"+providerOrderID+"/payments", nil)
	if err != nil {
		return nil, err
	}
	var list razorpayPaymentsList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: undecodable payments list", domain.ErrGatewayUnavailable)
	}
	// Captured wins over any failed attempt on the same order.
	var failed *adapter.WebhookEvent
	for _, item := range list.Items {
		switch item.Status {
		case "captured":
			return &adapter.WebhookEvent{
				Type:              adapter.WebhookPaymentCaptured,
				ProviderOrderID:   item.OrderID,
				ProviderPaymentID: item.ID,
				Amount:            item.Amount,
				Currency:          item.Currency,
			}, nil
		case "failed":
			failed = &adapter.WebhookEvent{
				Type:              adapter.WebhookPaymentFailed,
				ProviderOrderID:   item.OrderID,
				ProviderPaymentID: item.ID,
				Amount:            item.Amount,
				Currency:          item.Currency,
				FailureReason:     item.ErrorDescription,
			}
		}
	}
	return failed, nil
}

type razorpayRefundResponse struct {
	ID string `json:"id"`
}

func (g *RazorpayGateway) Refund(ctx context.Context, providerPaymentID string, amount int64) (string, error) {
	body, err := g.call(ctx, http.MethodPost, "/v1/payments/"+providerPaymentID+"/refund",
		map[string]int64{"amount": amount})
	if err != nil {
		return "", err
	}
	var resp razorpayRefundResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return "", fmt.Errorf("%w: undecodable refund response", domain.ErrGatewayUnavailable)
	}
	return resp.ID, nil
}

// call performs an authenticated request and normalizes transport and HTTP
// failures onto the domain gateway sentinels.
func (g *RazorpayGateway) call(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: razorpay returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var apiErr razorpayErrorResponse
		_ = json.Unmarshal(raw, &apiErr)
		g.log.Warn().
			Int("status", resp.StatusCode).
			Str("code", apiErr.Error.Code).
			Str("path", path).
			Msg("razorpay rejected request")
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, apiErr.Error.Description)
	}
	return raw, nil
}

func hmacHex(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
