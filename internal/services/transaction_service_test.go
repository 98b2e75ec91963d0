package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/payper/backend/internal/models"
	"github.com/payper/backend/internal/payments"
	"github.com/stretchr/testify/assert"
)

func transactionColumns() []string {
	return []string{
		"id", "sender_id", "recipient_id", "counterparty_label",
		"amount", "currency", "note", "kind", "status",
		"processor_reference", "created_at", "updated_at",
	}
}

func TestTransactionService_ListTransactions(t *testing.T) {
	now := time.Now().UTC()

	t.Run("returns caller transactions newest first", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(transactionColumns()).
			AddRow("tx-2", "user-1", "merchant_1", "Woolworths Online", 5000, "ZAR", "", "merchant", "completed", "pi_2", now, now).
			AddRow("tx-1", "user-2", "user-1", "thabo@example.com", 15000, "ZAR", "Lunch", "p2p", "completed", "", now.Add(-time.Hour), now.Add(-time.Hour))

		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("user-1", 50).
			WillReturnRows(rows)

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/transactions", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Transactions []models.Transaction `json:"transactions"`
			Count        int                  `json:"count"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, "tx-2", resp.Transactions[0].ID)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("applies kind and status filters", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("user-1", "merchant", "pending", 10).
			WillReturnRows(sqlmock.NewRows(transactionColumns()))

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/transactions?kind=merchant&status=pending&limit=10", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		service.ListTransactions(w, httptest.NewRequest("GET", "/transactions", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTransactionService_GetTransaction(t *testing.T) {
	now := time.Now().UTC()

	withURLParam := func(r *http.Request, key, value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(key, value)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("returns transaction visible to sender", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows(transactionColumns()).
				AddRow("tx-1", "user-1", "merchant_1", "Woolworths Online", 5000, "ZAR", "", "merchant", "completed", "pi_1", now, now))

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		r := withURLParam(authedRequest("GET", "/transactions/tx-1", nil), "txId", "tx-1")
		service.GetTransaction(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var tx models.Transaction
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &tx))
		assert.Equal(t, "tx-1", tx.ID)
	})

	t.Run("hides other users transactions", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-9").
			WillReturnRows(sqlmock.NewRows(transactionColumns()).
				AddRow("tx-9", "user-7", "user-8", "someone@example.com", 2000, "ZAR", "", "p2p", "completed", "", now, now))

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		r := withURLParam(authedRequest("GET", "/transactions/tx-9", nil), "txId", "tx-9")
		service.GetTransaction(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		dbMock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(transactionColumns()))

		service := NewTransactionService(db, payments.NewSQLLedger(db))
		w := httptest.NewRecorder()
		r := withURLParam(authedRequest("GET", "/transactions/missing", nil), "txId", "missing")
		service.GetTransaction(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
