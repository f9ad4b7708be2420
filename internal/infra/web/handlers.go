package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/infra/metrics"
	"finance-tracker/internal/usecase"
)

type Handlers struct {
	payments usecase.PaymentUseCase
	pricing  usecase.PricingUseCase
	subs     usecase.SubscriptionUseCase
	stats    usecase.StatsUseCase
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewHandlers(payments usecase.PaymentUseCase, pricing usecase.PricingUseCase, subs usecase.SubscriptionUseCase, stats usecase.StatsUseCase, logger *zerolog.Logger) *Handlers {
	return &Handlers{
		payments: payments,
		pricing:  pricing,
		subs:     subs,
		stats:    stats,
		validate: validator.New(),
		log:      logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Unmapped errors
// are logged and surfaced as opaque 500s.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrPricingNotFound):
		writeError(w, http.StatusNotFound, "no active price for this plan and currency")
	case errors.Is(err, domain.ErrPaymentNotFound), errors.Is(err, domain.ErrSubscriptionNotFound), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "verification failed")
	case errors.Is(err, domain.ErrPaymentAlreadyClaimed), errors.Is(err, domain.ErrPaymentNotPending), errors.Is(err, domain.ErrPaymentNotRefundable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
	case errors.Is(err, domain.ErrGatewayRejected), errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedCurrency), errors.Is(err, domain.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- public ---

type planResponse struct {
	ID           string `json:"id"`
	Plan         string `json:"plan"`
	Currency     string `json:"currency"`
	Amount       int64  `json:"amount"`
	DurationDays int    `json:"duration_days"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

func toPlanResponse(pp *model.PlanPricing) planResponse {
	return planResponse{
		ID:           pp.ID,
		Plan:         string(pp.Plan),
		Currency:     pp.Currency,
		Amount:       pp.Amount,
		DurationDays: pp.DurationDays,
		Name:         pp.Name,
		Description:  pp.Description,
	}
}

func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.pricing.ListActive(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, pp := range plans {
		out = append(out, toPlanResponse(pp))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
}

// Webhook acknowledges events per provider redelivery semantics: a bad
// signature or an event for an unknown order still gets a 2xx because
// redelivery cannot fix either. Only a structurally unreadable request is a
// client error.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := model.PaymentProvider(chi.URLParam(r, "provider"))
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	sig := r.Header.Get("X-Razorpay-Signature")
	if sig == "" {
		sig = r.Header.Get("Stripe-Signature")
	}

	err = h.payments.HandleWebhook(r.Context(), provider, body, sig)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrInvalidSignature):
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case errors.Is(err, domain.ErrUnknownProvider), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("provider", string(provider)).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- user ---

type createOrderRequest struct {
	Plan     string `json:"plan" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type orderResponse struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"key_id"` // frontend checkout credential
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.payments.CreateOrder(r.Context(), userIDFrom(r.Context()), model.Plan(req.Plan), req.Currency)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{
		OrderID:  order.ProviderOrderID,
		Provider: string(order.Provider),
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		KeyID:    order.ClientKey,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type paymentResponse struct {
	ID             string     `json:"id"`
	Plan           string     `json:"plan"`
	Provider       string     `json:"provider"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	SubscriptionID *string    `json:"subscription_id,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		Plan:           string(p.Plan),
		Provider:       string(p.Provider),
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		SubscriptionID: p.SubscriptionID,
		FailureReason:  p.FailureReason,
		PaidAt:         p.PaidAt,
		CreatedAt:      p.CreatedAt,
	}
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "ok", ""
	defer func() {
		metrics.PaymentVerifyRequests.WithLabelValues(result, reason).Inc()
		metrics.PaymentVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result, reason = "fail", "bad_json"
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		result, reason = "fail", "bad_json"
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.payments.VerifyPayment(r.Context(), userIDFrom(r.Context()), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		result = "fail"
		switch {
		case errors.Is(err, domain.ErrPaymentNotFound):
			reason = "not_found"
		case errors.Is(err, domain.ErrForbidden):
			reason = "forbidden"
		case errors.Is(err, domain.ErrInvalidSignature):
			reason = "bad_signature"
		case errors.Is(err, domain.ErrPaymentAlreadyClaimed):
			reason = "claim_conflict"
		default:
			reason = "internal"
		}
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handlers) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilterFromQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	f.UserID = userIDFrom(r.Context())
	payments, total, err := h.payments.ListPayments(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writePaymentPage(w, payments, total, f)
}

type subscriptionResponse struct {
	ID        string    `json:"id"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	HasAccess bool      `json:"has_access"`
}

func toSubscriptionResponse(s *model.Subscription, now time.Time) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		Plan:      string(s.Plan),
		Status:    string(s.EffectiveStatus(now)),
		ExpiresAt: s.ExpiresAt,
		HasAccess: s.HasAccess(now),
	}
}

func (h *Handlers) MySubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subs.Current(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub, time.Now()))
}

func (h *Handlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subs.Cancel(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub, time.Now()))
}

// --- admin ---

func paymentFilterFromQuery(r *http.Request) (repository.PaymentFilter, error) {
	q := r.URL.Query()
	f := repository.PaymentFilter{
		Status:    model.PaymentStatus(q.Get("status")),
		Plan:      model.Plan(q.Get("plan")),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	// A typo'd timestamp must not silently widen the listing.
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: from must be RFC3339", domain.ErrInvalidArgument)
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: to must be RFC3339", domain.ErrInvalidArgument)
		}
		f.To = &t
	}
	return f, nil
}

func (h *Handlers) writePaymentPage(w http.ResponseWriter, payments []*model.Payment, total int, f repository.PaymentFilter) {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": out,
		"total":    total,
		"page":     page,
	})
}

func (h *Handlers) AdminListPayments(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilterFromQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	f.UserID = r.URL.Query().Get("user_id")
	payments, total, err := h.payments.ListPayments(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writePaymentPage(w, payments, total, f)
}

func (h *Handlers) AdminRefundPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Refund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handlers) AdminListPricing(w http.ResponseWriter, r *http.Request) {
	plans, err := h.pricing.ListAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, pp := range plans {
		out = append(out, toPlanResponse(pp))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
}

type createPricingRequest struct {
	Plan         string `json:"plan" validate:"required"`
	Currency     string `json:"currency" validate:"required,len=3,alpha"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0"`
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
}

func (h *Handlers) AdminCreatePricing(w http.ResponseWriter, r *http.Request) {
	var req createPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pp, err := h.pricing.Create(r.Context(), model.Plan(req.Plan), req.Currency, req.Amount, req.DurationDays, req.Name, req.Description)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(pp))
}

type updatePricingRequest struct {
	Amount       *int64  `json:"amount" validate:"omitempty,gt=0"`
	DurationDays *int    `json:"duration_days" validate:"omitempty,gt=0"`
	Active       *bool   `json:"active"`
	Name         *string `json:"name"`
	Description  *string `json:"description"`
}

func (h *Handlers) AdminUpdatePricing(w http.ResponseWriter, r *http.Request) {
	var req updatePricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pp, err := h.pricing.Update(r.Context(), chi.URLParam(r, "id"), usecase.PricingPatch{
		Amount:       req.Amount,
		DurationDays: req.DurationDays,
		Active:       req.Active,
		Name:         req.Name,
		Description:  req.Description,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(pp))
}

func (h *Handlers) AdminRevenueStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.stats.Revenue(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"week":  totals.Week,
		"month": totals.Month,
		"year":  totals.Year,
	})
}
