package paypal

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
)

// APIVerifier authenticates webhook events through the provider's
// verify-webhook-signature endpoint.
type APIVerifier struct {
	log       *slog.Logger
	client    *Client
	webhookID string
}

func NewAPIVerifier(log *slog.Logger, client *Client, webhookID string) *APIVerifier {
	return &APIVerifier{log: log, client: client, webhookID: webhookID}
}

func (v *APIVerifier) Verify(ctx context.Context, req application.WebhookRequest) (bool, error) {
	token, err := v.client.AccessToken(ctx)
	if err != nil {
		return false, err
	}

	payload := map[string]any{
		"transmission_id":   req.TransmissionID,
		"transmission_time": req.TransmissionTime,
		"cert_url":          req.CertURL,
		"auth_algo":         "SHA256withRSA",
		"webhook_id":        v.webhookID,
		"webhook_event":     json.RawMessage(req.Body),
		"webhook_signature": req.Signature,
	}
	body, err := v.client.post(ctx, token, "/v1/notifications/verify-webhook-signature", payload)
	if err != nil {
		return false, err
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decoding verification response: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// CertVerifier authenticates webhook events locally: it fetches the
// provider's certificate from the event's declared URL and checks the
// detached SHA256withRSA signature over the canonical transmission string.
type CertVerifier struct {
	log       *slog.Logger
	webhookID string
	http      *http.Client
}

func NewCertVerifier(log *slog.Logger, webhookID string) *CertVerifier {
	return &CertVerifier{log: log, webhookID: webhookID, http: &http.Client{Timeout: requestTimeout}}
}

func (v *CertVerifier) Verify(ctx context.Context, req application.WebhookRequest) (bool, error) {
	pub, err := v.fetchKey(ctx, req.CertURL)
	if err != nil {
		return false, err
	}

	signed := fmt.Sprintf("%s|%s|%s|%s", req.TransmissionID, req.TransmissionTime, v.webhookID, req.Body)
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}

	digest := sha256.Sum256([]byte(signed))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		v.log.Warn("webhook signature rejected", "transmission_id", req.TransmissionID, "err", err)
		return false, nil
	}
	return true, nil
}

func (v *CertVerifier) fetchKey(ctx context.Context, certURL string) (*rsa.PublicKey, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching certificate: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in certificate from %s", certURL)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key is not RSA")
	}
	return pub, nil
}
