package domain

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLicenseDefaults(t *testing.T) {
	fees, err := DefaultFees.Calculate("25.00")
	require.NoError(t, err)

	lic := NewLicense("ORDER-1", "", "", "25.00", "COMPLETED", fees)
	require.Equal(t, "one-time", lic.Plan)
	require.Equal(t, "unknown", lic.Email)
	require.Equal(t, LicenseActive, lic.Status)
	require.Equal(t, "COMPLETED", lic.GatewayStatus)
	require.Regexp(t, regexp.MustCompile(`^LIC-[A-F0-9]{12}$`), lic.Key)
	require.False(t, lic.CreatedAt.IsZero())
}

func TestLicenseTransitions(t *testing.T) {
	lic := NewLicense("ORDER-1", "basic", "a@b.c", "25.00", "COMPLETED", FeeBreakdown{})

	require.NoError(t, lic.Transition(LicenseVerified))
	require.Equal(t, LicenseVerified, lic.Status)

	// verified is terminal
	require.Error(t, lic.Transition(LicenseActive))
	require.Error(t, lic.Transition(LicenseFailed))

	lic2 := NewLicense("ORDER-2", "basic", "a@b.c", "25.00", "COMPLETED", FeeBreakdown{})
	require.NoError(t, lic2.Transition(LicenseFailed))
	require.Error(t, lic2.Transition(LicenseVerified))
}

func TestMarkCapturedIdempotent(t *testing.T) {
	lic := NewLicense("ORDER-1", "basic", "a@b.c", "25.00", "COMPLETED", FeeBreakdown{})

	require.NoError(t, lic.MarkCaptured("CAP-1", "COMPLETED"))
	require.Equal(t, LicenseVerified, lic.Status)
	require.Equal(t, "CAP-1", lic.CaptureID)

	// replaying the same confirmation must not error
	require.NoError(t, lic.MarkCaptured("CAP-1", "COMPLETED"))
	require.Equal(t, LicenseVerified, lic.Status)

	// but a decline on a verified license is illegal
	require.Error(t, lic.MarkDeclined("CAP-1", "INSUFFICIENT_FUNDS"))
}

func TestMarkDeclined(t *testing.T) {
	lic := NewLicense("ORDER-1", "basic", "a@b.c", "25.00", "COMPLETED", FeeBreakdown{})

	require.NoError(t, lic.MarkDeclined("CAP-9", "INSUFFICIENT_FUNDS"))
	require.Equal(t, LicenseFailed, lic.Status)
	require.Equal(t, "INSUFFICIENT_FUNDS", lic.FailureReason)

	require.NoError(t, lic.MarkDeclined("CAP-9", "INSUFFICIENT_FUNDS"))
	require.Error(t, lic.MarkCaptured("CAP-9", "COMPLETED"))
}

func TestTokenFormats(t *testing.T) {
	require.Regexp(t, `^LIC-[A-F0-9]{12}$`, NewLicenseKey())
	require.Regexp(t, `^PO-[A-F0-9]{12}$`, NewPayoutID())
	require.Regexp(t, `^TXFR-[A-F0-9]{12}$`, NewTransferID())
	require.Regexp(t, `^PAY[A-F0-9]{10}$`, NewPaymentCode())
	require.Regexp(t, `^KYC-[A-F0-9]{12}$`, NewKYCID())

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		k := NewLicenseKey()
		require.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
