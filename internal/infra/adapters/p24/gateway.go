package p24

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"devportal-billing/internal/config"
	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*Gateway)(nil)

// Gateway implements adapter.PaymentGateway against the Przelewy24 REST API.
// It owns the HTTP transport and the merchant credentials; the sandbox flag
// switches the host. No call is retried here: retrying a register could
// create a duplicate charge, so retry policy belongs to the caller.
type Gateway struct {
	merchantID int
	posID      int
	crc        string
	apiKey     string
	sandbox    bool
	returnURL  string
	statusURL  string
	client     *http.Client
	baseURL    string // overrides the host selection; used by tests
}

func NewGateway(cfg config.GatewayConfig) (*Gateway, error) {
	if cfg.MerchantID == 0 || cfg.PosID == 0 {
		return nil, errors.New("merchant id and pos id are required")
	}
	if cfg.CRC == "" || cfg.APIKey == "" {
		return nil, errors.New("crc and api key are required")
	}
	return &Gateway{
		merchantID: cfg.MerchantID,
		posID:      cfg.PosID,
		crc:        cfg.CRC,
		apiKey:     cfg.APIKey,
		sandbox:    cfg.Sandbox,
		returnURL:  cfg.CallbackBase + "/payments/return",
		statusURL:  cfg.CallbackBase + "/api/v1/payments/webhook",
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *Gateway) Name() string { return "przelewy24" }

func (g *Gateway) host() string {
	if g.baseURL != "" {
		return g.baseURL
	}
	if g.sandbox {
		return "https://sandbox.przelewy24.pl"
	}
	return "https://secure.przelewy24.pl"
}

type registerRequest struct {
	MerchantID  int    `json:"merchantId"`
	PosID       int    `json:"posId"`
	SessionID   string `json:"sessionId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Client      string `json:"client"`
	URLReturn   string `json:"urlReturn"`
	URLStatus   string `json:"urlStatus"`
	Sign        string `json:"sign"`
}

// Register creates the transaction at the gateway and returns the opaque
// token plus the hosted-checkout redirect URL built from it.
func (g *Gateway) Register(ctx context.Context, intent *model.PaymentIntent) (adapter.RegisterResult, error) {
	body := registerRequest{
		MerchantID:  g.merchantID,
		PosID:       g.posID,
		SessionID:   intent.SessionID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Description: fmt.Sprintf("%s plan, %s billing", intent.Plan, intent.Period),
		Email:       intent.Email,
		Client:      intent.Email,
		URLReturn:   g.returnURL,
		URLStatus:   g.statusURL,
		Sign:        RegistrationSign(intent.SessionID, g.merchantID, intent.Amount, intent.Currency, g.crc),
	}

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := g.call(ctx, http.MethodPost, "/api/v1/transaction/register", body, &out); err != nil {
		return adapter.RegisterResult{}, &adapter.GatewayError{Op: "register", Message: out.Error, Err: err}
	}
	if out.Data.Token == "" {
		return adapter.RegisterResult{}, &adapter.GatewayError{Op: "register", Message: out.Error, Err: errors.New("response missing token")}
	}
	return adapter.RegisterResult{
		Token:       out.Data.Token,
		RedirectURL: fmt.Sprintf("%s/trnRequest/%s", g.host(), out.Data.Token),
	}, nil
}

type verifyRequest struct {
	MerchantID int    `json:"merchantId"`
	PosID      int    `json:"posId"`
	SessionID  string `json:"sessionId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OrderID    string `json:"orderId"`
	Sign       string `json:"sign"`
}

// Verify confirms a settled transaction with the gateway. An explicit
// non-success status yields (false, nil); any transport or protocol-shape
// failure yields a *GatewayError so the caller can arrange redelivery.
func (g *Gateway) Verify(ctx context.Context, sessionID string, amount int64, orderID string) (bool, error) {
	body := verifyRequest{
		MerchantID: g.merchantID,
		PosID:      g.posID,
		SessionID:  sessionID,
		Amount:     amount,
		Currency:   model.CurrencyPLN,
		OrderID:    orderID,
		Sign:       VerificationSign(sessionID, orderID, amount, model.CurrencyPLN, g.crc),
	}

	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := g.call(ctx, http.MethodPut, "/api/v1/transaction/verify", body, &out); err != nil {
		// A 4xx with an explicit gateway status is a business rejection, not
		// an inconclusive call; everything else stays a GatewayError.
		var httpErr *httpStatusError
		if errors.As(err, &httpErr) && httpErr.status == http.StatusBadRequest && out.Error != "" {
			return false, nil
		}
		return false, &adapter.GatewayError{Op: "verify", Message: out.Error, Err: err}
	}
	return out.Data.Status == "success", nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("http status %d", e.status) }

// call issues one authenticated JSON request and decodes the response into
// out. The response body is decoded even on non-2xx so upstream error
// messages survive into the GatewayError.
func (g *Gateway) call(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.host()+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(fmt.Sprintf("%d", g.posID), g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode}
	}
	return decodeErr
}

// LookupOrder asks the gateway for its record of a transaction by our
// session id. Only settled transactions carry an order id.
func (g *Gateway) LookupOrder(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		Data struct {
			OrderID int64  `json:"orderId"`
			Status  int    `json:"status"`
		} `json:"data"`
		Error string `json:"error"`
	}
	path := "/api/v1/transaction/by/sessionId/" + url.PathEscape(sessionID)
	if err := g.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		var httpErr *httpStatusError
		if errors.As(err, &httpErr) && httpErr.status == http.StatusNotFound {
			return "", domain.ErrNotFound
		}
		return "", &adapter.GatewayError{Op: "lookup", Message: out.Error, Err: err}
	}
	if out.Data.OrderID == 0 {
		return "", domain.ErrNotFound
	}
	return fmt.Sprintf("%d", out.Data.OrderID), nil
}
