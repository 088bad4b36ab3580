package domain

import "github.com/shopspring/decimal"

// Direction tells whether money came in or went out.
type Direction string

const (
	Inflow  Direction = "entree"
	Outflow Direction = "sortie"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

// TransactionStatus is the approval state of a ledger entry.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionApproved, TransactionRejected:
		return true
	}
	return false
}

// Transaction is an income or expense entry of the association ledger.
//
// MemberName is recomputed from the member record on every read and is
// not a historical record of the owner's name.
type Transaction struct {
	ID          string            `json:"id"`
	Direction   Direction         `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Category    string            `json:"category"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Date        string            `json:"date"`
	MemberID    string            `json:"memberId"`
	MemberName  string            `json:"memberName"`
	Status      TransactionStatus `json:"status"`
	ReceiptURL  string            `json:"receiptUrl,omitempty"`
}

// SignedAmount returns the amount, negated for outflows.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == Outflow {
		return t.Amount.Neg()
	}
	return t.Amount
}

// NewTransaction holds the caller-supplied fields of a ledger entry.
// Identifier and owner name are assigned by the backend.
type NewTransaction struct {
	Direction   Direction
	Amount      decimal.Decimal
	Category    string
	Label       string
	Description string
	Date        string
	MemberID    string
	Status      TransactionStatus
	ReceiptURL  string
}

// Validate checks the fields the backend cannot check for us.
func (n NewTransaction) Validate() error {
	if !n.Direction.Valid() {
		return &ValidationError{Field: "type", Reason: "must be entree or sortie"}
	}
	if n.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if n.Label == "" {
		return &ValidationError{Field: "label", Reason: "required"}
	}
	if n.MemberID == "" {
		return &ValidationError{Field: "member_id", Reason: "required"}
	}
	if n.Status != "" && !n.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	return nil
}
