package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/infra/adapters/p24"
	"devportal-billing/internal/infra/logging"
	"devportal-billing/internal/infra/metrics"
)

const webhookBodyLimit = 1 << 20 // 1MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type createPaymentRequest struct {
	Plan   string `json:"plan"`
	Period string `json:"period"`
}

type createPaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	log := logging.With(r.Context(), s.log)
	intent, redirectURL, err := s.checkoutUC.Initiate(r.Context(), principal, model.PlanType(req.Plan), model.BillingPeriod(req.Period))
	if err != nil {
		var gwErr *adapter.GatewayError
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid plan or period selection")
		case errors.As(err, &gwErr):
			metrics.IncPayment("failed")
			log.Error().Err(err).Msg("gateway registration failed")
			writeError(w, http.StatusBadGateway, "payment provider unavailable")
		default:
			log.Error().Err(err).Msg("payment creation failed")
			writeError(w, http.StatusInternalServerError, "payment creation failed")
		}
		return
	}

	metrics.IncPayment("initialized")
	writeJSON(w, http.StatusOK, createPaymentResponse{
		PaymentID:   intent.ID,
		SessionID:   intent.SessionID,
		RedirectURL: redirectURL,
	})
}

type paymentStatusResponse struct {
	PaymentID string `json:"payment_id"`
	SessionID string `json:"session_id"`
	Plan      string `json:"plan"`
	Period    string `json:"period"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	intent, err := s.checkoutUC.FindIntent(r.Context(), principal, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, paymentStatusResponse{
		PaymentID: intent.ID,
		SessionID: intent.SessionID,
		Plan:      string(intent.Plan),
		Period:    string(intent.Period),
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Status:    string(intent.Status),
	})
}

type subscriptionResponse struct {
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	PeriodEnd time.Time `json:"period_end"`
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	sub, err := s.subscriptionUC.CurrentSubscription(r.Context(), principal)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no subscription")
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Msg("subscription lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		Plan:      string(sub.Plan),
		Status:    string(sub.Status),
		PeriodEnd: sub.PeriodEnd,
	})
}

// handleWebhook consumes the gateway's settlement notification. The contract
// with the gateway: any non-2xx response (or a missing ack body) triggers
// redelivery, so only inconclusive outcomes are allowed to fail the request.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		s.finishWebhook(w, start, http.StatusBadRequest, "reject", "bad_form")
		return
	}

	// Secondary signature scheme: checked against the raw body before any
	// gateway verification call.
	if sig := r.Header.Get("X-Signature"); sig != "" && s.webhookSecret != "" {
		if !p24.VerifyWebhookSignature(s.webhookSecret, body, sig) {
			log.Warn().Msg("webhook signature mismatch")
			s.finishWebhook(w, start, http.StatusUnauthorized, "reject", "bad_signature")
			return
		}
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		s.finishWebhook(w, start, http.StatusBadRequest, "reject", "bad_form")
		return
	}
	n, err := parseNotification(form)
	if err != nil {
		s.finishWebhook(w, start, http.StatusBadRequest, "reject", "bad_form")
		return
	}
	ctx := logging.WithSessionID(r.Context(), n.SessionID)
	log = logging.With(ctx, s.log)

	applied, err := s.settlementUC.Settle(ctx, n)
	var gwErr *adapter.GatewayError
	switch {
	case err == nil && applied:
		metrics.IncPayment("completed")
		metrics.AddPaymentRevenue(n.Currency, n.Amount)
		s.ack(w, start, "applied")
	case err == nil:
		s.ack(w, start, "duplicate")
	case errors.Is(err, domain.ErrVerificationFailed):
		// Terminal business outcome: acknowledge so the gateway stops
		// redelivering a genuinely rejected settlement.
		metrics.IncPayment("failed")
		s.ack(w, start, "business_failed")
	case errors.Is(err, domain.ErrInvalidArgument):
		s.finishWebhook(w, start, http.StatusBadRequest, "reject", "bad_form")
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("webhook for unknown session")
		s.finishWebhook(w, start, http.StatusNotFound, "reject", "unknown_session")
	case errors.As(err, &gwErr):
		// Inconclusive verification: no ack, the gateway will retry.
		s.finishWebhook(w, start, http.StatusBadGateway, "retry", "gateway_error")
	default:
		log.Error().Err(err).Msg("webhook processing failed")
		s.finishWebhook(w, start, http.StatusInternalServerError, "retry", "store_error")
	}
}

func (s *Server) ack(w http.ResponseWriter, start time.Time, reason string) {
	metrics.WebhookRequests.WithLabelValues("ack", reason).Inc()
	metrics.WebhookDuration.WithLabelValues("ack").Observe(time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) finishWebhook(w http.ResponseWriter, start time.Time, code int, result, reason string) {
	metrics.WebhookRequests.WithLabelValues(result, reason).Inc()
	metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	writeError(w, code, reason)
}

// parseNotification accepts both the plain field names and the gateway's
// p24_-prefixed variants.
func parseNotification(form url.Values) (model.Notification, error) {
	pick := func(names ...string) string {
		for _, name := range names {
			if v := form.Get(name); v != "" {
				return v
			}
		}
		return ""
	}

	rawAmount := pick("amount", "p24_amount")
	n := model.Notification{
		SessionID: pick("sessionId", "p24_session_id"),
		OrderID:   pick("orderId", "p24_order_id"),
		Currency:  pick("currency", "p24_currency"),
	}
	if n.SessionID == "" || n.OrderID == "" || rawAmount == "" || n.Currency == "" {
		return model.Notification{}, domain.ErrInvalidArgument
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || amount <= 0 {
		return model.Notification{}, domain.ErrInvalidArgument
	}
	n.Amount = amount
	return n, nil
}
