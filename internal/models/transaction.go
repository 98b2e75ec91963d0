package models

import (
	"time"
)

// Status is the lifecycle state of a transaction. It is monotonic:
// pending may move to completed or failed, terminal states never change.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind distinguishes peer-to-peer transfers from card payments to merchants.
type Kind string

const (
	KindPeerToPeer Kind = "p2p"
	KindMerchant   Kind = "merchant"
)

// Transaction represents one payment attempt and its outcome.
// Amount is in minor currency units (cents).
type Transaction struct {
	ID                 string    `json:"id" db:"id"`
	SenderID           string    `json:"senderId" db:"sender_id"`
	RecipientID        string    `json:"recipientId,omitempty" db:"recipient_id"`
	CounterpartyLabel  string    `json:"counterpartyLabel" db:"counterparty_label"`
	Amount             int64     `json:"amount" db:"amount"`
	Currency           string    `json:"currency" db:"currency"`
	Note               string    `json:"note,omitempty" db:"note"`
	Kind               Kind      `json:"kind" db:"kind"`
	Status             Status    `json:"status" db:"status"`
	ProcessorReference string    `json:"processorReference,omitempty" db:"processor_reference"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}
