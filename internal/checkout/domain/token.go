package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// RandomToken returns n random bytes hex-encoded, upper-cased.
func RandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

func NewLicenseKey() string  { return "LIC-" + RandomToken(6) }
func NewPayoutID() string    { return "PO-" + RandomToken(6) }
func NewTransferID() string  { return "TXFR-" + RandomToken(6) }
func NewPaymentCode() string { return "PAY" + RandomToken(5) }
func NewKYCID() string       { return "KYC-" + RandomToken(6) }
