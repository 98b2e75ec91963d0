package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/payper/backend/internal/models"
)

// ReceiptService stores purchase receipts and drives the OCR prefill.
// Receipt handling is deliberately independent of the payments core.
type ReceiptService struct {
	db        *sql.DB
	ocr       *OCRService
	validator *ValidationHelper
}

func NewReceiptService(db *sql.DB, ocr *OCRService) *ReceiptService {
	return &ReceiptService{
		db:        db,
		ocr:       ocr,
		validator: NewValidationHelper(),
	}
}

// CreateReceiptRequest is a new receipt record. The image itself is
// uploaded to external storage by the client; we keep its URL.
// @Description New receipt record
type CreateReceiptRequest struct {
	MerchantName string  `json:"merchantName" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Currency     string  `json:"currency" validate:"required,len=3"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Category     string  `json:"category" validate:"max=50"`
	ImageURL     string  `json:"imageUrl" validate:"omitempty,url"`
}

// ListReceipts retrieves the caller's receipts
// @Summary List receipts
// @Description Get the authenticated user's receipts, newest first
// @Tags receipts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{receipts=[]models.Receipt,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /receipts [get]
func (rs *ReceiptService) ListReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := rs.db.QueryContext(r.Context(), `
        SELECT id, user_id, merchant_name, amount, currency, date,
               COALESCE(category, '') AS category, COALESCE(image_url, '') AS image_url, created_at
        FROM receipts
        WHERE user_id = $1
        ORDER BY date DESC
    `, userID)
	if err != nil {
		log.Printf("[RECEIPT] Failed to list receipts for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch receipts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	receipts := []models.Receipt{}
	for rows.Next() {
		var rec models.Receipt
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MerchantName, &rec.Amount,
			&rec.Currency, &rec.Date, &rec.Category, &rec.ImageURL, &rec.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch receipts", http.StatusInternalServerError, nil)
			return
		}
		receipts = append(receipts, rec)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// CreateReceipt stores a receipt record
// @Summary Create receipt
// @Description Store a receipt record for the authenticated user
// @Tags receipts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param receipt body CreateReceiptRequest true "Receipt data"
// @Success 201 {object} models.Receipt
// @Failure 400 {object} ErrorResponse
// @Router /receipts [post]
func (rs *ReceiptService) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateReceiptRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := rs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	receipt := models.Receipt{
		ID:           uuid.NewString(),
		UserID:       userID,
		MerchantName: req.MerchantName,
		Amount:       toMinorUnits(req.Amount),
		Currency:     normalizeCurrency(req.Currency),
		Date:         req.Date,
		Category:     req.Category,
		ImageURL:     req.ImageURL,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := rs.db.ExecContext(r.Context(), `
        INSERT INTO receipts (id, user_id, merchant_name, amount, currency, date, category, image_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, receipt.ID, receipt.UserID, receipt.MerchantName, receipt.Amount,
		receipt.Currency, receipt.Date, receipt.Category, receipt.ImageURL, receipt.CreatedAt)
	if err != nil {
		log.Printf("[RECEIPT] Failed to store receipt for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to store receipt", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(receipt)
}

// DeleteReceipt removes a receipt record
// @Summary Delete receipt
// @Description Delete one of the authenticated user's receipts
// @Tags receipts
// @Security BearerAuth
// @Param receiptId path string true "Receipt ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /receipts/{receiptId} [delete]
func (rs *ReceiptService) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	receiptID := chi.URLParam(r, "receiptId")
	res, err := rs.db.ExecContext(r.Context(), `
        DELETE FROM receipts WHERE id = $1 AND user_id = $2
    `, receiptID, userID)
	if err != nil {
		log.Printf("[RECEIPT] Failed to delete receipt %s: %v", receiptID, err)
		SendErrorResponse(w, "Failed to delete receipt", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Receipt not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ScanReceipt extracts details from a receipt image
// @Summary Scan receipt image
// @Description Run OCR over an uploaded receipt image and return form prefill
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Receipt image"
// @Success 200 {object} models.ReceiptScan
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /receipts/scan [post]
func (rs *ReceiptService) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	// 10 MB cap for images
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		SendErrorResponse(w, "Invalid multipart body", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		SendErrorResponse(w, "Image file is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	scan, err := rs.ocr.Scan(r.Context(), header.Filename, file)
	if err != nil {
		log.Printf("[RECEIPT] OCR scan failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Could not read the receipt image", http.StatusBadGateway, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scan)
}
