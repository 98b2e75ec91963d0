package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/payper/backend/internal/config"
	"github.com/skip2/go-qrcode"
)

// PaylinkService issues short-lived, QR-encoded payment requests: a
// payee generates a code carrying their id and an amount, the payer
// scans it and the app prefills the payment form. Codes are single
// use and expire from Redis on their own.
type PaylinkService struct {
	redis *redis.Client
	cfg   *config.PaylinkConfig
}

func NewPaylinkService(redisClient *redis.Client, cfg *config.PaylinkConfig) *PaylinkService {
	return &PaylinkService{
		redis: redisClient,
		cfg:   cfg,
	}
}

// PaymentRequest is the payload encoded into a paylink code.
type PaymentRequest struct {
	UserID    string `json:"userId"`
	Amount    int64  `json:"amount"` // minor units
	Currency  string `json:"currency"`
	Note      string `json:"note,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

// Generate creates a payment-request code and its QR image (base64
// PNG). The code is stored in Redis under a TTL so stale requests
// cannot be paid.
func (s *PaylinkService) Generate(ctx context.Context, userID string, amount int64, currency, note string) (string, string, error) {
	if amount <= 0 || amount > s.cfg.MaxAmountMinor {
		return "", "", fmt.Errorf("amount out of range")
	}

	request := PaymentRequest{
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Note:      note,
		Timestamp: time.Now().Unix(),
		Nonce:     s.generateNonce(),
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("paylink:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, s.cfg.CodeTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.cfg.QRImageSize)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return code, qrImage, nil
}

// Resolve consumes a scanned code, returning the payment request it
// carries. A code resolves exactly once.
func (s *PaylinkService) Resolve(ctx context.Context, code string) (*PaymentRequest, error) {
	key := fmt.Sprintf("paylink:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired payment request")
	}
	if err != nil {
		return nil, err
	}

	var request PaymentRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &request, nil
}

func (s *PaylinkService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
