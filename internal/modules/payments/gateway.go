package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Verify status codes. Success is discriminated by the numeric value, never
// by string comparison.
const (
	verifyStatusOK       int64 = 1
	verifyStatusVerified int64 = 101 // transaction verified on an earlier call
)

type InitiateRequest struct {
	// Amount must already be in the gateway's minor currency unit (rial).
	Amount        int64
	CorrelationID string
	ReturnURL     string
}

type VerifyResult struct {
	OK            bool
	Status        int64
	CorrelationID string
	Amount        int64
}

// Gateway is the pure request/response boundary to the hosted payment
// provider. No local state, no retries; callers own the retry policy.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (sessionID int64, err error)
	Verify(ctx context.Context, sessionID, transID string) (VerifyResult, error)
	RedirectURL(sessionID int64) string
}

type GatewayConfig struct {
	APIKey      string
	InitiateURL string
	VerifyURL   string
	RedirectURL string
	Timeout     time.Duration
}

// HTTPGateway implements the redirect gateway protocol: form-encoded POST
// for initiate (plain-text numeric session id) and verify (JSON body,
// numeric status).
type HTTPGateway struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewHTTPGateway(cfg GatewayConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Initiate(ctx context.Context, req InitiateRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, &GatewayError{Reason: ReasonRejected, Err: fmt.Errorf("non-positive amount %d", req.Amount)}
	}

	form := url.Values{}
	form.Set("api_key", g.cfg.APIKey)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("redirect", req.ReturnURL)
	form.Set("correlation_id", req.CorrelationID)

	body, status, err := g.postForm(ctx, g.cfg.InitiateURL, form)
	if err != nil {
		return 0, &GatewayError{Reason: ReasonUnreachable, Err: err}
	}

	// Body is a bare numeric session id; > 0 means the provider accepted.
	id, perr := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if perr == nil && id > 0 {
		return id, nil
	}
	if status < 200 || status >= 300 {
		return 0, &GatewayError{Reason: ReasonUnreachable, Err: fmt.Errorf("initiate status %d", status)}
	}
	return 0, &GatewayError{Reason: ReasonRejected, Err: fmt.Errorf("initiate response %q", truncate(string(body), 64))}
}

type verifyResponse struct {
	Status        json.RawMessage `json:"status"`
	TransID       string          `json:"trans_id"`
	CorrelationID string          `json:"correlation_id"`
	Amount        json.RawMessage `json:"amount"`
}

// numericField parses a JSON field as a number whether the provider sends
// 1 or "1". The comparison downstream is always numeric.
func numericField(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing numeric field")
	}
	return strconv.ParseInt(s, 10, 64)
}

// Verify asks the provider for the outcome of one transaction. The protocol
// answers each transaction exactly once; a repeat returns the "already
// verified" status, surfaced as GatewayError{duplicate}.
func (g *HTTPGateway) Verify(ctx context.Context, sessionID, transID string) (VerifyResult, error) {
	form := url.Values{}
	form.Set("api_key", g.cfg.APIKey)
	form.Set("id_get", sessionID)
	form.Set("trans_id", transID)
	form.Set("json", "1")

	body, status, err := g.postForm(ctx, g.cfg.VerifyURL, form)
	if err != nil {
		return VerifyResult{}, &GatewayError{Reason: ReasonUnreachable, Err: err}
	}
	if status < 200 || status >= 300 {
		return VerifyResult{}, &GatewayError{Reason: ReasonUnreachable, Err: fmt.Errorf("verify status %d", status)}
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return VerifyResult{}, &GatewayError{Reason: ReasonUnreachable, Err: fmt.Errorf("verify body: %w", err)}
	}

	// Numeric comparison only; "1" vs 1 coercion bugs are not welcome here.
	// A parseable JSON body with a missing or malformed status is the
	// provider's answer, not a transport fault: it counts as a decline.
	code, err := numericField(vr.Status)
	if err != nil {
		return VerifyResult{
			OK:            false,
			CorrelationID: vr.CorrelationID,
		}, nil
	}

	if code == verifyStatusVerified {
		return VerifyResult{}, &GatewayError{Reason: ReasonDuplicate}
	}

	amount, _ := numericField(vr.Amount)
	return VerifyResult{
		OK:            code == verifyStatusOK,
		Status:        code,
		CorrelationID: vr.CorrelationID,
		Amount:        amount,
	}, nil
}

// RedirectURL builds the hosted payment page URL for a session.
func (g *HTTPGateway) RedirectURL(sessionID int64) string {
	return strings.TrimRight(g.cfg.RedirectURL, "/") + "/" + strconv.FormatInt(sessionID, 10)
}

func (g *HTTPGateway) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
