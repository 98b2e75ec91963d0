package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/payper/backend/internal/services"
)

type PaylinkHandler struct {
	service   *services.PaylinkService
	validator *services.ValidationHelper
}

func NewPaylinkHandler(service *services.PaylinkService) *PaylinkHandler {
	return &PaylinkHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GeneratePaylink creates a QR payment request
// @Summary Generate payment request
// @Description Generate a short-lived QR payment request for the authenticated user
// @Tags paylinks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,currency=string,note=string} true "Payment request"
// @Success 200 {object} object{code=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /paylinks/generate [post]
func (h *PaylinkHandler) GeneratePaylink(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Currency string `json:"currency" validate:"required,len=3"`
		Note     string `json:"note" validate:"max=200"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, qrImage, err := h.service.Generate(r.Context(), userID, req.Amount, req.Currency, req.Note)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"code":    code,
		"qrImage": qrImage,
	})
}

// ResolvePaylink consumes a scanned payment request
// @Summary Resolve payment request
// @Description Resolve a scanned payment-request code into payment form prefill
// @Tags paylinks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Scanned code"
// @Success 200 {object} object{request=services.PaymentRequest}
// @Failure 400 {object} services.ErrorResponse
// @Router /paylinks/resolve [post]
func (h *PaylinkHandler) ResolvePaylink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	request, err := h.service.Resolve(r.Context(), req.Code)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"request": request,
	})
}
