package domain

import "github.com/shopspring/decimal"

// ReimbursementStatus is the lifecycle state of a reimbursement request.
type ReimbursementStatus string

const (
	ReimbursementPending  ReimbursementStatus = "pending"
	ReimbursementApproved ReimbursementStatus = "approved"
	ReimbursementRejected ReimbursementStatus = "rejected"
	ReimbursementPaid     ReimbursementStatus = "paid"
)

var reimbursementTransitions = map[ReimbursementStatus][]ReimbursementStatus{
	ReimbursementPending:  {ReimbursementApproved, ReimbursementRejected},
	ReimbursementApproved: {ReimbursementPaid},
}

// Valid reports whether s is a known status.
func (s ReimbursementStatus) Valid() bool {
	switch s {
	case ReimbursementPending, ReimbursementApproved, ReimbursementRejected, ReimbursementPaid:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReimbursementStatus) Terminal() bool {
	return s == ReimbursementRejected || s == ReimbursementPaid
}

// CanTransitionTo reports whether a request in state s may move to next.
// Only pending -> approved|rejected and approved -> paid are allowed.
func (s ReimbursementStatus) CanTransitionTo(next ReimbursementStatus) bool {
	for _, allowed := range reimbursementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when s may not move to next.
func (s ReimbursementStatus) CheckTransition(next ReimbursementStatus) error {
	if !s.CanTransitionTo(next) {
		return &TransitionError{From: string(s), To: string(next)}
	}
	return nil
}

// ReimbursementRequest is a member's claim for money spent on behalf of the association.
type ReimbursementRequest struct {
	ID         string              `json:"id"`
	MemberID   string              `json:"memberId"`
	MemberName string              `json:"memberName"`
	Amount     decimal.Decimal     `json:"amount"`
	Reason     string              `json:"reason"`
	Status     ReimbursementStatus `json:"status"`
	Date       string              `json:"date"`
	ReceiptURL string              `json:"receiptUrl,omitempty"`
}

// NewReimbursement holds the caller-supplied fields of a request.
// New requests always start pending.
type NewReimbursement struct {
	MemberID   string
	Amount     decimal.Decimal
	Reason     string
	Date       string
	ReceiptURL string
}

// Validate checks amount sign and required fields.
func (n NewReimbursement) Validate() error {
	if n.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if n.MemberID == "" {
		return &ValidationError{Field: "member_id", Reason: "required"}
	}
	if n.Reason == "" {
		return &ValidationError{Field: "reason", Reason: "required"}
	}
	return nil
}
