package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/payper/backend/internal/models"
	"github.com/payper/backend/internal/payments"
)

// Orchestrator drives one payment submission end to end.
type Orchestrator interface {
	Pay(ctx context.Context, submissionID string, draft payments.Draft, method payments.PaymentMethod) (*payments.Result, error)
}

// PaymentService is the HTTP surface for sending money and paying
// merchants. All orchestration lives behind the Orchestrator; this
// layer only decodes, validates, looks up recipients and maps errors.
type PaymentService struct {
	db           *sql.DB
	orchestrator Orchestrator
	validator    *ValidationHelper
}

func NewPaymentService(db *sql.DB, orchestrator Orchestrator) *PaymentService {
	return &PaymentService{
		db:           db,
		orchestrator: orchestrator,
		validator:    NewValidationHelper(),
	}
}

// MerchantPaymentRequest is a card payment to a merchant.
// @Description Merchant card payment request
type MerchantPaymentRequest struct {
	MerchantID    string  `json:"merchantId" validate:"required"`
	MerchantName  string  `json:"merchantName" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
	Note          string  `json:"note" validate:"max=200"`
	PaymentToken  string  `json:"paymentToken" validate:"required"`
	SubmissionID  string  `json:"submissionId" validate:"required"`
}

// P2PPaymentRequest is a direct transfer to another person.
// @Description Peer-to-peer transfer request
type P2PPaymentRequest struct {
	Recipient string  `json:"recipient" validate:"required"` // email, phone or free-text label
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"required,len=3"`
	Note      string  `json:"note" validate:"max=200"`
}

// PaymentResponse is returned for any finished payment.
type PaymentResponse struct {
	Success     bool                `json:"success"`
	Transaction *models.Transaction `json:"transaction"`
}

// PayMerchant processes a merchant card payment
// @Summary Pay a merchant
// @Description Run a card payment through intent reservation and confirmation
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body MerchantPaymentRequest true "Payment details"
// @Success 200 {object} PaymentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /payments/merchant [post]
func (ps *PaymentService) PayMerchant(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req MerchantPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Payment to %s", req.MerchantName)
	}

	draft := payments.Draft{
		SenderID:          userID,
		RecipientID:       req.MerchantID,
		CounterpartyLabel: req.MerchantName,
		Amount:            toMinorUnits(req.Amount),
		Currency:          normalizeCurrency(req.Currency),
		Note:              note,
		Kind:              models.KindMerchant,
	}

	result, err := ps.orchestrator.Pay(r.Context(), req.SubmissionID, draft, payments.PaymentMethod{Token: req.PaymentToken})
	if err != nil {
		ps.sendPaymentError(w, err)
		return
	}

	if result.ReconciliationFault {
		log.Printf("[PAYMENT] Transaction %s completed with reconciliation fault", result.Transaction.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PaymentResponse{Success: true, Transaction: result.Transaction})
}

// SendMoney processes a peer-to-peer transfer
// @Summary Send money
// @Description Transfer money directly to another person
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body P2PPaymentRequest true "Transfer details"
// @Success 200 {object} PaymentResponse
// @Failure 400 {object} ErrorResponse
// @Router /payments/p2p [post]
func (ps *PaymentService) SendMoney(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req P2PPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Resolve the counterparty: a known user gets a recipient id, an
	// unknown email/phone stays a plain label on the record.
	recipientID, err := ps.lookupRecipient(r.Context(), req.Recipient)
	if err != nil {
		log.Printf("[PAYMENT] Recipient lookup failed for %q: %v", req.Recipient, err)
		SendErrorResponse(w, "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}

	draft := payments.Draft{
		SenderID:          userID,
		RecipientID:       recipientID,
		CounterpartyLabel: req.Recipient,
		Amount:            toMinorUnits(req.Amount),
		Currency:          normalizeCurrency(req.Currency),
		Note:              req.Note,
		Kind:              models.KindPeerToPeer,
	}

	result, err := ps.orchestrator.Pay(r.Context(), "", draft, payments.PaymentMethod{})
	if err != nil {
		ps.sendPaymentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PaymentResponse{Success: true, Transaction: result.Transaction})
}

// lookupRecipient returns the profile id for a registered email, or
// empty when the counterparty is external.
func (ps *PaymentService) lookupRecipient(ctx context.Context, recipient string) (string, error) {
	var id string
	err := ps.db.QueryRowContext(ctx, `
        SELECT id FROM profiles WHERE email = $1 OR phone = $1 LIMIT 1
    `, recipient).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// sendPaymentError maps the orchestration error taxonomy onto a
// single JSON error surface.
func (ps *PaymentService) sendPaymentError(w http.ResponseWriter, err error) {
	retryable := payments.Retryable(err)

	var ve *payments.ValidationError
	if errors.As(err, &ve) {
		SendRetryableError(w, ve.Error(), http.StatusBadRequest, false)
		return
	}
	if errors.Is(err, payments.ErrRetriesExhausted) {
		SendRetryableError(w, "Payment attempt limit reached, please start over", http.StatusTooManyRequests, false)
		return
	}
	if errors.Is(err, payments.ErrCardDeclined) {
		SendRetryableError(w, "Card was declined", http.StatusPaymentRequired, retryable)
		return
	}

	var gw *payments.GatewayError
	var cf *payments.ClientFault
	if errors.As(err, &gw) || errors.As(err, &cf) {
		log.Printf("[PAYMENT] Infrastructure failure: %v", err)
		SendRetryableError(w, "Payment could not be processed, please try again", http.StatusBadGateway, retryable)
		return
	}

	log.Printf("[PAYMENT] Unexpected failure: %v", err)
	SendRetryableError(w, "Failed to process payment", http.StatusInternalServerError, false)
}

// decodeJSONBody applies the shared request-body rules: size cap,
// unknown fields rejected, exactly one JSON object.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
