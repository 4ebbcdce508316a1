package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
	"github.com/paylinkbridge/checkout/pkg/tracing"
)

var errDuplicateCapture = errors.New("duplicate capture")

// Config carries the lifecycle service's operational settings. Mode selects
// the gateway implementation explicitly instead of a compile-time fork.
type Config struct {
	Mode        string
	Currency    string
	PayoutEmail string
	BankAccount domain.BankAccount
	Fees        domain.FeeSchedule
}

// Service orchestrates the order lifecycle: create order, capture, fee
// computation, license mint, automatic payout, and the staged manual payout
// and bank-transfer workflows.
type Service struct {
	log     *slog.Logger
	store   Store
	gateway Gateway
	payouts PayoutSender
	cfg     Config
}

func NewService(log *slog.Logger, store Store, gateway Gateway, payouts PayoutSender, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "AUD"
	}
	if cfg.Fees.Percentage.IsZero() && cfg.Fees.Fixed.IsZero() {
		cfg.Fees = domain.DefaultFees
	}
	return &Service{log: log, store: store, gateway: gateway, payouts: payouts, cfg: cfg}
}

func (s *Service) Config() Config { return s.cfg }

// CreateOrder delegates order creation to the configured gateway. Nothing is
// stored locally until capture.
func (s *Service) CreateOrder(ctx context.Context, amount, currency, plan, email string) (OrderResource, error) {
	if amount == "" {
		return OrderResource{}, validationf("missing amount")
	}
	amt, err := domain.ParseAmount(amount)
	if err != nil {
		return OrderResource{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if currency == "" {
		currency = s.cfg.Currency
	}
	order, err := s.gateway.CreateOrder(ctx, amt, currency)
	if err != nil {
		return OrderResource{}, err
	}
	s.log.Info("order created", "order_id", order.ID, "amount", amt, "plan", plan, "email", email)
	return order, nil
}

// CaptureResult is the outcome of a capture: the minted (or pre-existing)
// license, its fee breakdown, and the automatic payout attempt.
type CaptureResult struct {
	License   domain.License
	Fees      domain.FeeBreakdown
	Payout    *domain.PayoutOutcome
	Duplicate bool
}

// CaptureOrder captures an approved order and mints exactly one license per
// order id. A repeated capture returns the existing license unchanged without
// calling the gateway again. Payout, email and ledger side effects never roll
// back the mint.
func (s *Service) CaptureOrder(ctx context.Context, orderID, payerEmail, plan string) (CaptureResult, error) {
	if orderID == "" {
		return CaptureResult{}, validationf("missing orderId")
	}
	if payerEmail == "" {
		return CaptureResult{}, validationf("missing payerEmail")
	}

	db, _, err := s.store.Load(ctx)
	if err != nil {
		return CaptureResult{}, err
	}
	if existing := db.LicenseByOrderID(orderID); existing != nil {
		s.log.Info("capture replay, returning existing license", "order_id", orderID, "license", existing.Key)
		return CaptureResult{License: *existing, Fees: existing.Fees, Payout: existing.Payout, Duplicate: true}, nil
	}

	captured, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return CaptureResult{}, err
	}
	if !strings.EqualFold(captured.Status, "COMPLETED") {
		return CaptureResult{}, &PaymentIncompleteError{Status: captured.Status}
	}

	fees, err := s.cfg.Fees.Calculate(captured.Amount)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("fee calculation: %w", err)
	}

	lic := domain.NewLicense(orderID, plan, payerEmail, captured.Amount, captured.Status, fees)
	var duplicate *domain.License
	err = UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		if existing := db.LicenseByOrderID(orderID); existing != nil {
			duplicate = existing
			return nil, errDuplicateCapture
		}
		for db.LicenseByKey(lic.Key) != nil {
			lic.Key = domain.NewLicenseKey()
		}
		db.Licenses = append(db.Licenses, lic)
		return []OutboxEntry{s.mintedEntry(ctx, lic, "", "paypal")}, nil
	})
	if errors.Is(err, errDuplicateCapture) {
		return CaptureResult{License: *duplicate, Fees: duplicate.Fees, Payout: duplicate.Payout, Duplicate: true}, nil
	}
	if err != nil {
		return CaptureResult{}, err
	}
	s.log.Info("license minted", "license", lic.Key, "order_id", orderID, "amount", captured.Amount)

	outcome := s.disburse(ctx, &lic, orderID, plan)
	return CaptureResult{License: lic, Fees: fees, Payout: outcome}, nil
}

// disburse sends the net amount to the configured payout destination and
// records the result on the license. Failures are recorded, never propagated.
func (s *Service) disburse(ctx context.Context, lic *domain.License, orderID, plan string) *domain.PayoutOutcome {
	if s.cfg.PayoutEmail == "" || lic.Fees.PayoutAmount <= 0 {
		return nil
	}
	note := fmt.Sprintf("Payout for %s plan - Order %s", lic.Plan, orderID)
	result, err := s.payouts.SendToEmail(ctx, s.cfg.PayoutEmail, lic.Fees.PayoutAmount, s.cfg.Currency, note)

	outcome := &domain.PayoutOutcome{
		Amount:      lic.Fees.PayoutAmount,
		RequestDate: time.Now().UTC(),
	}
	if err != nil {
		s.log.Error("payout initiation failed", "order_id", orderID, "err", err)
		outcome.Status = domain.PayoutOutcomeFailed
		outcome.Error = err.Error()
	} else {
		outcome.Status = domain.PayoutOutcomeInitiated
		outcome.PayoutID = result.BatchID
	}

	lic.Payout = outcome
	updateErr := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		if stored := db.LicenseByKey(lic.Key); stored != nil {
			stored.Payout = outcome
		}
		return nil, nil
	})
	if updateErr != nil {
		s.log.Error("recording payout outcome failed", "license", lic.Key, "err", updateErr)
	}
	return outcome
}

func (s *Service) mintedEntry(ctx context.Context, lic domain.License, fullName, method string) OutboxEntry {
	payload, _ := json.Marshal(domain.LicenseMinted{
		License:  lic.Key,
		OrderID:  lic.OrderID,
		Plan:     lic.Plan,
		Email:    lic.Email,
		FullName: fullName,
		Amount:   lic.Amount,
		Currency: s.cfg.Currency,
		Method:   method,
	})
	return OutboxEntry{
		AggregateType: "license",
		AggregateID:   lic.Key,
		Type:          "LicenseMinted",
		Payload:       payload,
		Traceparent:   tracing.Traceparent(ctx),
	}
}

// Quote returns the fee breakdown for an amount without touching the store.
func (s *Service) Quote(amount string) (domain.FeeBreakdown, error) {
	if amount == "" {
		return domain.FeeBreakdown{}, validationf("missing amount")
	}
	fees, err := s.cfg.Fees.Calculate(amount)
	if err != nil {
		return domain.FeeBreakdown{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fees, nil
}

// RequestPayout stages a manual payout request in pending state. The amount
// may never exceed the license's computed net.
func (s *Service) RequestPayout(ctx context.Context, license string, amount float64, receiver string) (domain.Payout, error) {
	if license == "" || amount <= 0 {
		return domain.Payout{}, validationf("missing license or amount")
	}
	if receiver == "" {
		receiver = s.cfg.PayoutEmail
	}
	payout := domain.NewPayoutRequest(license, amount, receiver)
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		if lic := db.LicenseByKey(license); lic != nil && amount > lic.Fees.PayoutAmount {
			return nil, validationf("amount %.2f exceeds license net %.2f", amount, lic.Fees.PayoutAmount)
		}
		db.Payouts = append(db.Payouts, payout)
		return nil, nil
	})
	if err != nil {
		return domain.Payout{}, err
	}
	return payout, nil
}

// ProcessPayout executes or cancels a staged payout. Cancel is only legal
// from pending; process submits the disbursement and records the provider
// response or the error state.
func (s *Service) ProcessPayout(ctx context.Context, payoutID, action string) (domain.Payout, error) {
	if payoutID == "" || action == "" {
		return domain.Payout{}, validationf("missing payout_id or action")
	}

	db, _, err := s.store.Load(ctx)
	if err != nil {
		return domain.Payout{}, err
	}
	stored := db.PayoutByID(payoutID)
	if stored == nil {
		return domain.Payout{}, fmt.Errorf("payout %s: %w", payoutID, ErrNotFound)
	}

	switch action {
	case "cancel":
		var out domain.Payout
		err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
			p := db.PayoutByID(payoutID)
			if p == nil {
				return nil, fmt.Errorf("payout %s: %w", payoutID, ErrNotFound)
			}
			if err := p.Transition(domain.PayoutCancelled); err != nil {
				return nil, validationf("%v", err)
			}
			out = *p
			return nil, nil
		})
		return out, err

	case "process":
		// Money leaves before the CAS write, so the transition has to be
		// legal on the stored copy first. The in-closure check below still
		// guards against a concurrent cancel.
		guard := *stored
		if terr := guard.Transition(domain.PayoutProcessed); terr != nil {
			return domain.Payout{}, validationf("%v", terr)
		}
		result, sendErr := s.payouts.SendToEmail(ctx, stored.Receiver, stored.Amount, s.cfg.Currency, "Payout "+stored.ID)
		var out domain.Payout
		now := time.Now().UTC()
		err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
			p := db.PayoutByID(payoutID)
			if p == nil {
				return nil, fmt.Errorf("payout %s: %w", payoutID, ErrNotFound)
			}
			if sendErr != nil {
				if terr := p.Transition(domain.PayoutError); terr != nil {
					return nil, validationf("%v", terr)
				}
				p.Error = sendErr.Error()
			} else {
				if terr := p.Transition(domain.PayoutProcessed); terr != nil {
					return nil, validationf("%v", terr)
				}
				p.ProcessedAt = &now
				p.Response = result.Raw
			}
			out = *p
			return nil, nil
		})
		if err != nil {
			return domain.Payout{}, err
		}
		if sendErr != nil {
			return out, sendErr
		}
		return out, nil

	default:
		return domain.Payout{}, validationf("unknown action %q", action)
	}
}

// MarkTransferred records that a processed payout landed in the operator's
// bank account.
func (s *Service) MarkTransferred(ctx context.Context, payoutID string) (domain.Payout, error) {
	if payoutID == "" {
		return domain.Payout{}, validationf("missing payoutId")
	}
	var out domain.Payout
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		p := db.PayoutByID(payoutID)
		if p == nil {
			return nil, fmt.Errorf("payout %s: %w", payoutID, ErrNotFound)
		}
		if err := p.Transition(domain.PayoutTransferred); err != nil {
			return nil, validationf("%v", err)
		}
		now := time.Now().UTC()
		p.TransferredAt = &now
		p.TransferReference = "REF-" + domain.RandomToken(6)
		out = *p
		return nil, nil
	})
	return out, err
}

// TrackPayment books a captured payment as a payout awaiting manual bank
// transfer.
func (s *Service) TrackPayment(ctx context.Context, orderID, amount, email, plan string) (domain.Payout, error) {
	if orderID == "" || amount == "" {
		return domain.Payout{}, validationf("missing required fields")
	}
	fees, err := s.cfg.Fees.Calculate(amount)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	payout := domain.NewTrackedPayout(orderID, email, plan, fees)
	err = UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		db.Payouts = append(db.Payouts, payout)
		return nil, nil
	})
	if err != nil {
		return domain.Payout{}, err
	}
	return payout, nil
}

// CreateBankTransfer stages a manual payment with a unique payment code the
// customer quotes in their transfer reference.
func (s *Service) CreateBankTransfer(ctx context.Context, email, fullName, planKey string) (domain.BankTransfer, error) {
	if email == "" || fullName == "" || planKey == "" {
		return domain.BankTransfer{}, validationf("missing required fields: email, fullName, plan")
	}
	plan, ok := domain.Plans[planKey]
	if !ok {
		return domain.BankTransfer{}, validationf("invalid plan: %s", planKey)
	}
	transfer := domain.NewBankTransfer(email, fullName, planKey, plan)
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		db.BankTransfers = append(db.BankTransfers, transfer)
		return nil, nil
	})
	if err != nil {
		return domain.BankTransfer{}, err
	}
	s.log.Info("bank transfer request created", "code", transfer.PaymentCode, "plan", planKey, "amount", transfer.Amount)
	return transfer, nil
}

// VerifyBankTransfer confirms receipt of a staged transfer, mints its license
// and marks it completed. Repeated verification is rejected.
func (s *Service) VerifyBankTransfer(ctx context.Context, paymentCode string) (domain.License, error) {
	if paymentCode == "" {
		return domain.License{}, validationf("missing payment code")
	}
	var lic domain.License
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		transfer := db.TransferByCode(paymentCode)
		if transfer == nil {
			return nil, fmt.Errorf("transfer %s: %w", paymentCode, ErrNotFound)
		}
		if transfer.Status == domain.TransferCompleted {
			return nil, validationf("transfer already completed")
		}
		fees, err := s.cfg.Fees.Calculate(fmt.Sprintf("%.2f", transfer.Amount))
		if err != nil {
			return nil, err
		}
		lic = domain.NewLicense("", transfer.Plan, transfer.Email, fmt.Sprintf("%.2f", transfer.Amount), "", fees)
		lic.TransferID = transfer.ID
		lic.PaymentCode = transfer.PaymentCode
		for db.LicenseByKey(lic.Key) != nil {
			lic.Key = domain.NewLicenseKey()
		}
		db.Licenses = append(db.Licenses, lic)

		now := time.Now().UTC()
		transfer.Status = domain.TransferCompleted
		transfer.CompletedAt = &now
		transfer.License = lic.Key

		return []OutboxEntry{s.mintedEntry(ctx, lic, transfer.FullName, "bank-transfer")}, nil
	})
	if err != nil {
		return domain.License{}, err
	}
	s.log.Info("bank transfer verified", "code", paymentCode, "license", lic.Key)
	return lic, nil
}

// SubmitKYC stores an identity verification request with its uploaded file
// metadata.
func (s *Service) SubmitKYC(ctx context.Context, license string, files []domain.KYCFile) (domain.KYCRecord, error) {
	rec := domain.NewKYCRecord(license, files)
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		db.KYC = append(db.KYC, rec)
		return nil, nil
	})
	if err != nil {
		return domain.KYCRecord{}, err
	}
	return rec, nil
}

// ReviewKYC approves or rejects a pending KYC record. Approval requires a
// date of birth and an age of at least 16.
func (s *Service) ReviewKYC(ctx context.Context, id, action, dob string) (domain.KYCRecord, error) {
	if id == "" || action == "" {
		return domain.KYCRecord{}, validationf("missing id or action")
	}
	var out domain.KYCRecord
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		rec := db.KYCByID(id)
		if rec == nil {
			return nil, fmt.Errorf("kyc %s: %w", id, ErrNotFound)
		}
		if action == "approve" {
			if dob == "" {
				return nil, validationf("dob required")
			}
			birth, err := time.Parse("2006-01-02", dob)
			if err != nil {
				return nil, validationf("invalid dob %q", dob)
			}
			if domain.AgeAt(birth, time.Now().UTC()) < 16 {
				return nil, ErrUnderage
			}
			now := time.Now().UTC()
			rec.Status = domain.KYCApproved
			rec.VerifiedAt = &now
			rec.VerifiedBy = "admin"
		} else {
			rec.Status = domain.KYCRejected
		}
		out = *rec
		return nil, nil
	})
	return out, err
}

// RecordCustomer appends a ledger entry for a minted license. Used by the
// notifier consuming LicenseMinted events; duplicate deliveries for the same
// license are ignored.
func (s *Service) RecordCustomer(ctx context.Context, minted domain.LicenseMinted) (domain.Customer, error) {
	customer := domain.NewCustomer(minted.Email, minted.FullName, minted.Plan, minted.Amount, minted.Currency, minted.License, minted.OrderID)
	customer.PaymentMethod = minted.Method
	var existing *domain.Customer
	err := UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		for i := range db.Customers {
			if db.Customers[i].License == minted.License {
				existing = &db.Customers[i]
				return nil, nil
			}
		}
		db.Customers = append(db.Customers, customer)
		if lic := db.LicenseByKey(minted.License); lic != nil && lic.TransferID != "" {
			for i := range db.BankTransfers {
				if db.BankTransfers[i].ID == lic.TransferID {
					db.BankTransfers[i].CustomerID = customer.ID
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return customer, nil
}

// AttachIssue records the tracker issue created for a customer.
func (s *Service) AttachIssue(ctx context.Context, customerID, issueURL string) error {
	return UpdateStore(ctx, s.store, func(db *domain.Database) ([]OutboxEntry, error) {
		if c := db.CustomerByID(customerID); c != nil {
			c.GithubIssueCreated = true
			c.GithubIssueURL = issueURL
		}
		return nil, nil
	})
}

// Snapshot returns the current document for the admin query surface.
func (s *Service) Snapshot(ctx context.Context) (domain.Database, error) {
	db, _, err := s.store.Load(ctx)
	return db, err
}
