package models

import "time"

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	TransactionPurchase TransactionKind = "purchase"
	TransactionUsage    TransactionKind = "usage"
	TransactionBonus    TransactionKind = "bonus"
	TransactionRefund   TransactionKind = "refund"
)

// Transaction is an immutable ledger entry. Amount is signed: negative for
// usage, positive for purchase/bonus/refund.
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Kind        TransactionKind   `json:"kind"`
	Amount      int               `json:"amount"`
	ExternalRef string            `json:"external_ref,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
