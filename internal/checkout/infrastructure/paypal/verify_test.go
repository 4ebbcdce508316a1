package paypal

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
)

func TestAPIVerifier(t *testing.T) {
	var gotPayload map[string]any
	status := "SUCCESS"
	srv := fakeProvider(t, map[string]http.HandlerFunc{
		"/v1/notifications/verify-webhook-signature": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": status})
		},
	})
	defer srv.Close()

	v := NewAPIVerifier(slog.Default(), testClient(t, srv), "WH-ID-1")
	req := application.WebhookRequest{
		TransmissionID:   "tx-1",
		TransmissionTime: "2026-09-01T00:00:00Z",
		CertURL:          "https://provider.example/cert.pem",
		Signature:        "c2ln",
		Body:             []byte(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`),
	}

	ok, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "WH-ID-1", gotPayload["webhook_id"])
	require.Equal(t, "SHA256withRSA", gotPayload["auth_algo"])
	require.Equal(t, "tx-1", gotPayload["transmission_id"])
	// event body forwarded as JSON, not a re-encoded string
	require.IsType(t, map[string]any{}, gotPayload["webhook_event"])

	status = "FAILURE"
	ok, err = v.Verify(context.Background(), req)
	require.NoError(t, err)
	require.False(t, ok)
}

// selfSignedCert returns a PEM certificate and its RSA private key.
func selfSignedCert(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "webhook.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key
}

func TestCertVerifier(t *testing.T) {
	certPEM, key := selfSignedCert(t)
	certSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(certPEM)
	}))
	defer certSrv.Close()

	const webhookID = "WH-ID-1"
	body := []byte(`{"id":"WH-EVT-1"}`)
	req := application.WebhookRequest{
		TransmissionID:   "tx-1",
		TransmissionTime: "2026-09-01T00:00:00Z",
		CertURL:          certSrv.URL,
		Body:             body,
	}

	signed := "tx-1|2026-09-01T00:00:00Z|" + webhookID + "|" + string(body)
	digest := sha256.Sum256([]byte(signed))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	req.Signature = base64.StdEncoding.EncodeToString(sig)

	v := NewCertVerifier(slog.Default(), webhookID)
	ok, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ok)

	// tampered body fails without error
	tampered := req
	tampered.Body = []byte(`{"id":"WH-EVT-2"}`)
	ok, err = v.Verify(context.Background(), tampered)
	require.NoError(t, err)
	require.False(t, ok)

	// garbage signature is an error
	garbage := req
	garbage.Signature = "%%%"
	_, err = v.Verify(context.Background(), garbage)
	require.Error(t, err)
}
