package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Outcome is the processor's answer to a confirmation attempt.
// Declined and requires-action are ordinary values here, not errors;
// only transport faults travel the error channel.
type Outcome string

const (
	OutcomeSucceeded      Outcome = "succeeded"
	OutcomeRequiresAction Outcome = "requires_action"
	OutcomeDeclined       Outcome = "declined"
)

// ConfirmResult is the tagged result of presenting card details.
type ConfirmResult struct {
	Outcome            Outcome
	ProcessorReference string
}

// PaymentMethod is the opaque card handle collected by the client.
type PaymentMethod struct {
	Token string `json:"token"`
}

// CardConfirmer presents card details against a client secret. A call
// may block for a long time while the cardholder completes step-up
// authentication; callers must not impose their own deadline on that
// wait.
type CardConfirmer interface {
	Confirm(ctx context.Context, clientSecret string, method PaymentMethod) (ConfirmResult, error)
}

// HTTPCardConfirmer talks to the card processor's confirmation
// endpoint. Its HTTP client carries no timeout: requires-action waits
// are legitimate long suspensions, and cancellation arrives through
// the request context.
type HTTPCardConfirmer struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPCardConfirmer(url, apiKey string) *HTTPCardConfirmer {
	return &HTTPCardConfirmer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{},
	}
}

func (c *HTTPCardConfirmer) Confirm(ctx context.Context, clientSecret string, method PaymentMethod) (ConfirmResult, error) {
	payload := struct {
		ClientSecret  string        `json:"clientSecret"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
	}{clientSecret, method}

	body, err := json.Marshal(payload)
	if err != nil {
		return ConfirmResult{}, &ClientFault{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ConfirmResult{}, &ClientFault{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("[CONFIRM] Confirmation request failed: %v", err)
		return ConfirmResult{}, &ClientFault{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[CONFIRM] Confirmation returned status %d", resp.StatusCode)
		return ConfirmResult{}, &ClientFault{Reason: fmt.Sprintf("processor returned status %d", resp.StatusCode)}
	}

	var result struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ConfirmResult{}, &ClientFault{Reason: "decode response", Err: err}
	}

	switch result.Status {
	case "succeeded":
		return ConfirmResult{Outcome: OutcomeSucceeded, ProcessorReference: result.ID}, nil
	case "requires_action":
		return ConfirmResult{Outcome: OutcomeRequiresAction, ProcessorReference: result.ID}, nil
	case "failed":
		return ConfirmResult{Outcome: OutcomeDeclined, ProcessorReference: result.ID}, nil
	default:
		return ConfirmResult{}, &ClientFault{Reason: fmt.Sprintf("unrecognised status %q", result.Status)}
	}
}
