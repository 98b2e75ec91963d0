package models

import "time"

// Receipt is a stored purchase record. The image itself lives in
// external storage; we keep a URL only.
type Receipt struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	MerchantName string    `json:"merchantName" db:"merchant_name"`
	Amount       int64     `json:"amount" db:"amount"` // minor units
	Currency     string    `json:"currency" db:"currency"`
	Date         string    `json:"date" db:"date"` // YYYY-MM-DD
	Category     string    `json:"category,omitempty" db:"category"`
	ImageURL     string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ReceiptScan is the prefill extracted from a receipt image by the
// OCR collaborator. Every field is best-effort.
type ReceiptScan struct {
	MerchantName string     `json:"merchantName,omitempty"`
	Amount       *float64   `json:"amount,omitempty"`
	Date         string     `json:"date,omitempty"`
	LineItems    []LineItem `json:"lineItems"`
	RawText      string     `json:"rawText"`
}

// LineItem is one recognised item/price pair on a receipt.
type LineItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}
