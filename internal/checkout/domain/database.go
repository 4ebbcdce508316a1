package domain

// Database is the single persisted document. Collections are append-mostly
// ordered sequences; mutations go through Store.Update so concurrent writers
// never silently drop each other's changes.
type Database struct {
	Licenses      []License      `json:"licenses"`
	Payouts       []Payout       `json:"payouts"`
	KYC           []KYCRecord    `json:"kyc"`
	BankTransfers []BankTransfer `json:"bankTransfers"`
	WebhookEvents []WebhookEvent `json:"webhookEvents"`
	Customers     []Customer     `json:"customers"`
}

func (d *Database) LicenseByOrderID(orderID string) *License {
	for i := range d.Licenses {
		if d.Licenses[i].OrderID == orderID {
			return &d.Licenses[i]
		}
	}
	return nil
}

func (d *Database) LicenseByKey(key string) *License {
	for i := range d.Licenses {
		if d.Licenses[i].Key == key {
			return &d.Licenses[i]
		}
	}
	return nil
}

func (d *Database) PayoutByID(id string) *Payout {
	for i := range d.Payouts {
		if d.Payouts[i].ID == id {
			return &d.Payouts[i]
		}
	}
	return nil
}

func (d *Database) TransferByCode(code string) *BankTransfer {
	for i := range d.BankTransfers {
		if d.BankTransfers[i].PaymentCode == code {
			return &d.BankTransfers[i]
		}
	}
	return nil
}

func (d *Database) KYCByID(id string) *KYCRecord {
	for i := range d.KYC {
		if d.KYC[i].ID == id {
			return &d.KYC[i]
		}
	}
	return nil
}

func (d *Database) CustomerByID(id string) *Customer {
	for i := range d.Customers {
		if d.Customers[i].ID == id {
			return &d.Customers[i]
		}
	}
	return nil
}
