package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAgeAt(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 16, AgeAt(time.Date(2010, 9, 1, 0, 0, 0, 0, time.UTC), at))
	require.Equal(t, 15, AgeAt(time.Date(2010, 9, 2, 0, 0, 0, 0, time.UTC), at))
	require.Equal(t, 16, AgeAt(time.Date(2010, 8, 31, 0, 0, 0, 0, time.UTC), at))
	require.Equal(t, 40, AgeAt(time.Date(1986, 1, 15, 0, 0, 0, 0, time.UTC), at))
}

func TestNewKYCRecordDefaults(t *testing.T) {
	rec := NewKYCRecord("", []KYCFile{{Field: "file", Path: "/tmp/id.png", OriginalName: "id.png"}})
	require.Equal(t, "unknown", rec.License)
	require.Equal(t, KYCPending, rec.Status)
	require.Regexp(t, `^KYC-[A-F0-9]{12}$`, rec.ID)
	require.Len(t, rec.Files, 1)
}
