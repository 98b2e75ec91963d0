package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/payper/backend/internal/models"
	"github.com/payper/backend/internal/payments"
)

// TransactionService serves transaction history. Reads only; every
// status mutation goes through the orchestration controller.
type TransactionService struct {
	db        *sql.DB
	ledger    payments.Ledger
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, ledger payments.Ledger) *TransactionService {
	return &TransactionService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// ListTransactions retrieves the caller's transactions
// @Summary List transactions
// @Description Get the authenticated user's transactions, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Filter by kind (p2p|merchant)"
// @Param status query string false "Filter by status (pending|completed|failed)"
// @Param limit query int false "Max results (default 50, max 100)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	kind := r.URL.Query().Get("kind")
	status := r.URL.Query().Get("status")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	transactions, err := ts.fetchTransactions(r, userID, kind, status, limit)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to list transactions for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID
// @Description Retrieve one of the caller's transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "txId")
	tx, err := ts.ledger.Get(r.Context(), txID)
	if err != nil {
		var nf *payments.NotFoundError
		if errors.As(err, &nf) {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	// History is visible to either side of the transfer.
	if tx.SenderID != userID && tx.RecipientID != userID {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

func (ts *TransactionService) fetchTransactions(r *http.Request, userID, kind, status string, limit int) ([]models.Transaction, error) {
	query := `
        SELECT id, sender_id, COALESCE(recipient_id, '') AS recipient_id, counterparty_label,
               amount, currency, COALESCE(note, '') AS note, kind, status,
               COALESCE(processor_reference, '') AS processor_reference, created_at, updated_at
        FROM transactions
        WHERE (sender_id = $1 OR recipient_id = $1)
    `
	args := []any{userID}
	argIndex := 2

	if kind != "" {
		query += ` AND kind = $` + strconv.Itoa(argIndex)
		args = append(args, kind)
		argIndex++
	}
	if status != "" {
		query += ` AND status = $` + strconv.Itoa(argIndex)
		args = append(args, status)
		argIndex++
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIndex)
	args = append(args, limit)

	rows, err := ts.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.SenderID, &tx.RecipientID, &tx.CounterpartyLabel,
			&tx.Amount, &tx.Currency, &tx.Note, &tx.Kind, &tx.Status,
			&tx.ProcessorReference, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}
