// Package gateway is the HTTP adapter for the remote payment processor. The
// payment state machine only ever sees the classified GatewayPort contract;
// swapping processors means swapping this package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ecomkit/orderflow/internal/config"
	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

type HTTPGatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) ports.GatewayPort {
	return &HTTPGatewayClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type linePayload struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Currency  string `json:"currency"`
}

type createPaymentPayload struct {
	Amount      amountPayload `json:"amount"`
	Description string        `json:"description"`
	RedirectURL string        `json:"redirect_url"`
	WebhookURL  string        `json:"webhook_url"`
	Lines       []linePayload `json:"lines,omitempty"`
}

type paymentResponse struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Amount     amountPayload `json:"amount"`
	PaymentURL string        `json:"payment_url"`
}

type refundPayload struct {
	Amount amountPayload `json:"amount"`
}

type refundResponse struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Amount amountPayload `json:"amount"`
}

func (c *HTTPGatewayClient) CreatePayment(ctx context.Context, req domain.RemotePaymentRequest, idempotencyKey string) (*domain.RemotePayment, error) {
	lines := make([]linePayload, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, linePayload{
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.Price.StringFixed(2),
			Currency:  item.Currency,
		})
	}
	payload := createPaymentPayload{
		Amount:      centsPayload(req.AmountCents, req.Currency),
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		WebhookURL:  req.WebhookURL,
		Lines:       lines,
	}

	url := fmt.Sprintf("%s/v1/payments", c.baseURL)
	resp, err := sendRequest[createPaymentPayload, paymentResponse](c, ctx, http.MethodPost, url, &payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return c.toRemotePayment(resp)
}

func (c *HTTPGatewayClient) GetPayment(ctx context.Context, remoteID string) (*domain.RemotePayment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, remoteID)
	resp, err := sendRequest[any, paymentResponse](c, ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	return c.toRemotePayment(resp)
}

func (c *HTTPGatewayClient) Refund(ctx context.Context, remoteID string, amountCents int64, idempotencyKey string) (int64, error) {
	payload := refundPayload{Amount: centsPayload(amountCents, "")}
	url := fmt.Sprintf("%s/v1/payments/%s/refunds", c.baseURL, remoteID)
	resp, err := sendRequest[refundPayload, refundResponse](c, ctx, http.MethodPost, url, &payload, idempotencyKey)
	if err != nil {
		return 0, err
	}
	return parseCents(resp.Amount.Value)
}

func (c *HTTPGatewayClient) toRemotePayment(resp *paymentResponse) (*domain.RemotePayment, error) {
	status, err := domain.ClassifyRemoteStatus(resp.Status)
	if err != nil {
		return nil, err
	}
	cents, err := parseCents(resp.Amount.Value)
	if err != nil {
		return nil, err
	}
	return &domain.RemotePayment{
		ID:          resp.ID,
		Status:      status,
		AmountCents: cents,
		Currency:    resp.Amount.Currency,
		PaymentURL:  resp.PaymentURL,
	}, nil
}

func centsPayload(cents int64, currency string) amountPayload {
	return amountPayload{
		Value:    decimal.New(cents, -2).StringFixed(2),
		Currency: currency,
	}
}

func parseCents(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing gateway amount %q: %w", value, err)
	}
	return d.Mul(decimal.NewFromInt(100)).IntPart(), nil
}

func sendRequest[Req any, Resp any](c *HTTPGatewayClient, ctx context.Context, method, url string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts and transport failures are retryable with the same
		// idempotency key; gateway-reported declines below are not.
		return nil, domain.NewGatewayUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var gwErrResp gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErrResp); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &GatewayError{
			Code:       gwErrResp.Err,
			Message:    gwErrResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var gwResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gwResp, nil
}
