package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// IntentRequest reserves a charge with the external processor before
// card details are presented. Amount is in minor currency units.
type IntentRequest struct {
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	UserID           string `json:"userId"`
	MerchantID       string `json:"merchantId"`
	Description      string `json:"description"`
}

// IntentGateway requests a payment intent and returns the client
// secret needed for the confirmation step.
type IntentGateway interface {
	RequestIntent(ctx context.Context, req IntentRequest) (string, error)
}

// HTTPIntentGateway calls the hosted create-payment-intent function.
type HTTPIntentGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPIntentGateway(url, apiKey string, timeout time.Duration) *HTTPIntentGateway {
	return &HTTPIntentGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// RequestIntent posts the reservation. Any network error, non-2xx
// response, or response missing the secret is a GatewayError; the
// caller has written nothing processor-side yet.
func (g *HTTPIntentGateway) RequestIntent(ctx context.Context, req IntentRequest) (string, error) {
	if req.UserID == "" || req.MerchantID == "" {
		return "", &GatewayError{Reason: "userId and merchantId are required"}
	}
	req.Currency = strings.ToLower(req.Currency)

	body, err := json.Marshal(req)
	if err != nil {
		return "", &GatewayError{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", &GatewayError{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.Printf("[GATEWAY] Intent request failed: %v", err)
		return "", &GatewayError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[GATEWAY] Intent request returned status %d", resp.StatusCode)
		return "", &GatewayError{Reason: fmt.Sprintf("gateway returned status %d", resp.StatusCode)}
	}

	var result struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &GatewayError{Reason: "decode response", Err: err}
	}
	if result.ClientSecret == "" {
		return "", &GatewayError{Reason: "response missing clientSecret"}
	}

	return result.ClientSecret, nil
}
