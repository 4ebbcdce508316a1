package domain

import "time"

type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

type KYCFile struct {
	Field        string `json:"field"`
	Path         string `json:"path"`
	OriginalName string `json:"originalName"`
}

type KYCRecord struct {
	ID         string     `json:"id"`
	License    string     `json:"license"`
	Files      []KYCFile  `json:"files"`
	Status     KYCStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	VerifiedBy string     `json:"verified_by,omitempty"`
}

func NewKYCRecord(license string, files []KYCFile) KYCRecord {
	if license == "" {
		license = "unknown"
	}
	return KYCRecord{
		ID:        NewKYCID(),
		License:   license,
		Files:     files,
		Status:    KYCPending,
		CreatedAt: time.Now().UTC(),
	}
}

// AgeAt returns the whole-year age for a birth date at the given time.
func AgeAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}
