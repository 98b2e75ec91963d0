package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/payper/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func paylinkTestConfig() *config.PaylinkConfig {
	return &config.PaylinkConfig{
		CodeTTL:        5 * time.Minute,
		QRImageSize:    256,
		MaxAmountMinor: 1_000_000,
	}
}

func TestPaylinkService_Generate(t *testing.T) {
	t.Run("stores code and returns QR image", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.Regexp().ExpectSet(`paylink:.+`, `.+`, 5*time.Minute).SetVal("OK")

		service := NewPaylinkService(client, paylinkTestConfig())
		code, qrImage, err := service.Generate(context.Background(), "user-1", 5000, "ZAR", "Lunch")
		assert.NoError(t, err)
		assert.NotEmpty(t, qrImage)

		decoded, err := base64.URLEncoding.DecodeString(code)
		assert.NoError(t, err)
		var request PaymentRequest
		assert.NoError(t, json.Unmarshal(decoded, &request))
		assert.Equal(t, "user-1", request.UserID)
		assert.Equal(t, int64(5000), request.Amount)
		assert.NotEmpty(t, request.Nonce)

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("rejects out-of-range amounts", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		service := NewPaylinkService(client, paylinkTestConfig())

		_, _, err := service.Generate(context.Background(), "user-1", 0, "ZAR", "")
		assert.Error(t, err)

		_, _, err = service.Generate(context.Background(), "user-1", 2_000_000, "ZAR", "")
		assert.Error(t, err)

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestPaylinkService_Resolve(t *testing.T) {
	request := PaymentRequest{
		UserID:    "user-1",
		Amount:    5000,
		Currency:  "ZAR",
		Timestamp: time.Now().Unix(),
		Nonce:     "bm9uY2U",
	}
	payload, _ := json.Marshal(request)
	code := base64.URLEncoding.EncodeToString(payload)
	key := "paylink:" + code

	t.Run("resolves and consumes the code", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(key).SetVal(string(payload))
		redisMock.ExpectDel(key).SetVal(1)

		service := NewPaylinkService(client, paylinkTestConfig())
		resolved, err := service.Resolve(context.Background(), code)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", resolved.UserID)
		assert.Equal(t, int64(5000), resolved.Amount)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired or unknown code", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(key).RedisNil()

		service := NewPaylinkService(client, paylinkTestConfig())
		_, err := service.Resolve(context.Background(), code)
		assert.Error(t, err)
	})
}
