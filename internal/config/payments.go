package config

import (
	"os"
	"strconv"
	"time"
)

type PaymentsConfig struct {
	IntentGatewayURL string
	ProcessorURL     string
	APIKey           string
	GatewayTimeout   time.Duration
	MaxAttempts      int
}

type OCRConfig struct {
	URL      string
	APIKey   string
	Language string
	Timeout  time.Duration
}

type PaylinkConfig struct {
	CodeTTL        time.Duration
	QRImageSize    int
	MaxAmountMinor int64
}

func LoadPaymentsConfig() *PaymentsConfig {
	return &PaymentsConfig{
		IntentGatewayURL: getEnv("PAYMENT_INTENT_URL", "http://localhost:54321/functions/v1/create-payment-intent"),
		ProcessorURL:     getEnv("CARD_PROCESSOR_URL", "http://localhost:54321/functions/v1/confirm-card-payment"),
		APIKey:           getEnv("PAYMENT_API_KEY", ""),
		GatewayTimeout:   getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second),
		MaxAttempts:      getEnvAsInt("PAYMENT_MAX_ATTEMPTS", 3),
	}
}

func LoadOCRConfig() *OCRConfig {
	return &OCRConfig{
		URL:      getEnv("OCR_API_URL", "https://api.ocr.space/parse/image"),
		APIKey:   getEnv("OCR_API_KEY", ""),
		Language: getEnv("OCR_LANGUAGE", "eng"),
		Timeout:  getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
	}
}

func LoadPaylinkConfig() *PaylinkConfig {
	return &PaylinkConfig{
		CodeTTL:        getEnvAsDuration("PAYLINK_CODE_TTL", 5*time.Minute),
		QRImageSize:    getEnvAsInt("PAYLINK_QR_SIZE", 256),
		MaxAmountMinor: int64(getEnvAsInt("PAYLINK_MAX_AMOUNT", 100000000)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
