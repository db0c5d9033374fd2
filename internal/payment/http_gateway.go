package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPGateway habla con un gateway de pagos REST con credenciales basic. El
// llamador acota cada llamada con un deadline en el contexto.
type HTTPGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

func NewHTTPGateway(baseURL, clientID, clientSecret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{},
	}
}

type createIntentReq struct {
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"referenceId"`
	ReturnURL   string `json:"returnUrl,omitempty"`
	CancelURL   string `json:"cancelUrl,omitempty"`
}

type createIntentResp struct {
	ID          string `json:"id"`
	ApprovalURL string `json:"approvalUrl"`
}

type captureReq struct {
	PayerID string `json:"payerId"`
}

type captureResp struct {
	CaptureID   string `json:"captureId"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	ReferenceID string `json:"referenceId"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amount int64, rc ReturnContext) (*Intent, error) {
	var out createIntentResp
	err := g.do(ctx, "/v1/intents", "", createIntentReq{
		Amount:      amount,
		ReferenceID: rc.OrderID,
		ReturnURL:   rc.ReturnURL,
		CancelURL:   rc.CancelURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway returned intent without id")
	}
	return &Intent{ApprovalReference: out.ID, ApprovalURL: out.ApprovalURL}, nil
}

func (g *HTTPGateway) CaptureIntent(ctx context.Context, paymentReference, payerReference string) (*Capture, error) {
	var out captureResp
	path := "/v1/intents/" + url.PathEscape(paymentReference) + "/capture"
	// una captura reintentada no puede cobrar dos veces
	key := "capture:" + paymentReference
	if err := g.do(ctx, path, key, captureReq{PayerID: payerReference}, &out); err != nil {
		return nil, err
	}
	if out.Status != "COMPLETED" {
		return nil, fmt.Errorf("%w: capture status %s", ErrDeclined, out.Status)
	}
	return &Capture{CaptureID: out.CaptureID, Amount: out.Amount, OrderID: out.ReferenceID}, nil
}

func (g *HTTPGateway) do(ctx context.Context, path, idempotencyKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.clientID, g.clientSecret)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("gateway rejected client credentials: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		// el gateway no decidió nada; el resultado queda desconocido
		return fmt.Errorf("gateway throttled or timed out: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDeclined, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
