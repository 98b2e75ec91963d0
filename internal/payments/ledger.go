package payments

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payper/backend/internal/models"
)

// Draft is a validated-on-write request for a new transaction record.
type Draft struct {
	SenderID          string
	RecipientID       string
	CounterpartyLabel string
	Amount            int64 // minor units
	Currency          string
	Note              string
	Kind              models.Kind
}

// Patch is the narrow set of fields the controller may change after
// creation.
type Patch struct {
	Status             models.Status
	ProcessorReference string
}

// Ledger is the durable store of transaction records. Creation is
// append-only; updates are restricted to status and processor
// reference and must respect the monotonic lifecycle.
type Ledger interface {
	Create(ctx context.Context, draft Draft) (*models.Transaction, error)
	Update(ctx context.Context, id string, patch Patch) (*models.Transaction, error)
	Get(ctx context.Context, id string) (*models.Transaction, error)
}

// SQLLedger implements Ledger over Postgres.
type SQLLedger struct {
	db *sql.DB
}

func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

func validateDraft(d Draft) error {
	if d.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(d.SenderID) == "" {
		return &ValidationError{Field: "senderId", Reason: "required"}
	}
	if strings.TrimSpace(d.CounterpartyLabel) == "" {
		return &ValidationError{Field: "counterpartyLabel", Reason: "required"}
	}
	if len(d.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	switch d.Kind {
	case models.KindPeerToPeer, models.KindMerchant:
	default:
		return &ValidationError{Field: "kind", Reason: "must be p2p or merchant"}
	}
	return nil
}

// Create inserts a new record and returns it. Peer-to-peer transfers
// involve no external processor, so they are written completed in the
// same insert; merchant payments start pending.
func (l *SQLLedger) Create(ctx context.Context, draft Draft) (*models.Transaction, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	status := models.StatusPending
	if draft.Kind == models.KindPeerToPeer {
		status = models.StatusCompleted
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:                uuid.NewString(),
		SenderID:          draft.SenderID,
		RecipientID:       draft.RecipientID,
		CounterpartyLabel: draft.CounterpartyLabel,
		Amount:            draft.Amount,
		Currency:          strings.ToUpper(draft.Currency),
		Note:              draft.Note,
		Kind:              draft.Kind,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := l.db.ExecContext(ctx, `
        INSERT INTO transactions
        (id, sender_id, recipient_id, counterparty_label, amount, currency, note, kind, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, tx.ID, tx.SenderID, nullable(tx.RecipientID), tx.CounterpartyLabel, tx.Amount,
		tx.Currency, tx.Note, string(tx.Kind), string(tx.Status), tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}

	return tx, nil
}

// Update applies a status/processor-reference patch. Re-applying the
// status a record already holds is a no-op, so duplicate rollback
// signals do not error. Any other move off a terminal status is
// rejected.
func (l *SQLLedger) Update(ctx context.Context, id string, patch Patch) (*models.Transaction, error) {
	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == patch.Status {
		return current, nil
	}
	if current.Status.Terminal() {
		return nil, &InvalidTransitionError{ID: id, From: current.Status, To: patch.Status}
	}

	now := time.Now().UTC()
	ref := current.ProcessorReference
	if patch.ProcessorReference != "" {
		ref = patch.ProcessorReference
	}

	res, err := l.db.ExecContext(ctx, `
        UPDATE transactions
        SET status = $1, processor_reference = $2, updated_at = $3
        WHERE id = $4
    `, string(patch.Status), nullable(ref), now, id)
	if err != nil {
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{ID: id}
	}

	current.Status = patch.Status
	current.ProcessorReference = ref
	current.UpdatedAt = now
	return current, nil
}

// Get fetches one record by id.
func (l *SQLLedger) Get(ctx context.Context, id string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var recipientID, ref sql.NullString
	err := l.db.QueryRowContext(ctx, `
        SELECT id, sender_id, recipient_id, counterparty_label, amount, currency,
               COALESCE(note, '') AS note, kind, status, processor_reference, created_at, updated_at
        FROM transactions
        WHERE id = $1
    `, id).Scan(&tx.ID, &tx.SenderID, &recipientID, &tx.CounterpartyLabel, &tx.Amount,
		&tx.Currency, &tx.Note, &tx.Kind, &tx.Status, &ref, &tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	tx.RecipientID = recipientID.String
	tx.ProcessorReference = ref.String
	return tx, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
