package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
)

const (
	sandboxBase = "https://api-m.sandbox.paypal.com"
	liveBase    = "https://api-m.paypal.com"

	// Outbound calls never hang silently; a timeout surfaces as a gateway
	// error like any other transport failure.
	requestTimeout = 10 * time.Second
)

// Client wraps the PayPal orders API. Every operation fetches a fresh
// client-credentials token; tokens are not cached.
type Client struct {
	log      *slog.Logger
	env      string
	clientID string
	secret   string
	http     *http.Client

	// BaseURL overrides the environment-selected endpoint. Tests only.
	BaseURL string
}

func NewClient(log *slog.Logger, env, clientID, secret string) *Client {
	if env == "" {
		env = "sandbox"
	}
	return &Client{
		log:      log,
		env:      env,
		clientID: clientID,
		secret:   secret,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.env == "live" {
		return liveBase
	}
	return sandboxBase
}

// AccessToken exchanges the client credentials for a bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.secret == "" {
		return "", fmt.Errorf("%w: gateway credentials not set", application.ErrConfiguration)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", &application.GatewayError{StatusCode: http.StatusOK, Body: "empty access token"}
	}
	return resp.AccessToken, nil
}

// CreateOrder creates a CAPTURE-intent order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, amount, currency string) (application.OrderResource, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return application.OrderResource{}, err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{"amount": map[string]string{"currency_code": currency, "value": amount}},
		},
	}
	body, err := c.post(ctx, token, "/v2/checkout/orders", payload)
	if err != nil {
		return application.OrderResource{}, err
	}

	var order application.OrderResource
	if err := json.Unmarshal(body, &order); err != nil {
		return application.OrderResource{}, fmt.Errorf("decoding order response: %w", err)
	}
	if order.ID == "" {
		return application.OrderResource{}, &application.GatewayError{StatusCode: http.StatusOK, Body: string(body)}
	}
	return order, nil
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  *struct {
		Email string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Amount *struct {
			Value    string `json:"value"`
			Currency string `json:"currency_code"`
		} `json:"amount"`
		Payments *struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount *struct {
					Value    string `json:"value"`
					Currency string `json:"currency_code"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder captures an approved order and reports the provider's status
// and gross amount.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (application.CaptureResource, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return application.CaptureResource{}, err
	}

	body, err := c.post(ctx, token, "/v2/checkout/orders/"+orderID+"/capture", nil)
	if err != nil {
		return application.CaptureResource{}, err
	}

	var resp captureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return application.CaptureResource{}, fmt.Errorf("decoding capture response: %w", err)
	}

	out := application.CaptureResource{ID: resp.ID, Status: resp.Status, Amount: "0"}
	if resp.Payer != nil {
		out.PayerEmail = resp.Payer.Email
	}
	if len(resp.PurchaseUnits) > 0 {
		pu := resp.PurchaseUnits[0]
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 && pu.Payments.Captures[0].Amount != nil {
			out.Amount = pu.Payments.Captures[0].Amount.Value
			out.Currency = pu.Payments.Captures[0].Amount.Currency
		} else if pu.Amount != nil {
			out.Amount = pu.Amount.Value
			out.Currency = pu.Amount.Currency
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &application.GatewayError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &application.GatewayError{StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &application.GatewayError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
