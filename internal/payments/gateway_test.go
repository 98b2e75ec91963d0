package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPIntentGateway_RequestIntent(t *testing.T) {
	t.Run("successful reservation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req IntentRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, int64(5000), req.AmountMinorUnits)
			assert.Equal(t, "zar", req.Currency) // lowercased on the wire

			json.NewEncoder(w).Encode(map[string]string{"clientSecret": "secret_abc"})
		}))
		defer server.Close()

		gateway := NewHTTPIntentGateway(server.URL, "test-key", 5*time.Second)
		secret, err := gateway.RequestIntent(context.Background(), IntentRequest{
			AmountMinorUnits: 5000,
			Currency:         "ZAR",
			UserID:           "user-1",
			MerchantID:       "merchant_1",
			Description:      "Payment to Woolworths Online",
		})

		assert.NoError(t, err)
		assert.Equal(t, "secret_abc", secret)
	})

	t.Run("missing secret is a gateway error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer server.Close()

		gateway := NewHTTPIntentGateway(server.URL, "", 5*time.Second)
		_, err := gateway.RequestIntent(context.Background(), IntentRequest{
			AmountMinorUnits: 5000, Currency: "zar", UserID: "u", MerchantID: "m",
		})

		var gw *GatewayError
		assert.ErrorAs(t, err, &gw)
	})

	t.Run("non-2xx is a gateway error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer server.Close()

		gateway := NewHTTPIntentGateway(server.URL, "", 5*time.Second)
		_, err := gateway.RequestIntent(context.Background(), IntentRequest{
			AmountMinorUnits: 5000, Currency: "zar", UserID: "u", MerchantID: "m",
		})

		var gw *GatewayError
		assert.ErrorAs(t, err, &gw)
	})

	t.Run("unreachable gateway", func(t *testing.T) {
		gateway := NewHTTPIntentGateway("http://127.0.0.1:1", "", 500*time.Millisecond)
		_, err := gateway.RequestIntent(context.Background(), IntentRequest{
			AmountMinorUnits: 5000, Currency: "zar", UserID: "u", MerchantID: "m",
		})

		var gw *GatewayError
		assert.ErrorAs(t, err, &gw)
	})

	t.Run("missing identifiers rejected locally", func(t *testing.T) {
		gateway := NewHTTPIntentGateway("http://unused", "", time.Second)
		_, err := gateway.RequestIntent(context.Background(), IntentRequest{
			AmountMinorUnits: 5000, Currency: "zar",
		})

		var gw *GatewayError
		assert.ErrorAs(t, err, &gw)
	})
}

func TestHTTPCardConfirmer_Confirm(t *testing.T) {
	confirmServer := func(status, id string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ClientSecret  string        `json:"clientSecret"`
				PaymentMethod PaymentMethod `json:"paymentMethod"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "secret_abc", req.ClientSecret)

			json.NewEncoder(w).Encode(map[string]string{"status": status, "id": id})
		}))
	}

	t.Run("succeeded", func(t *testing.T) {
		server := confirmServer("succeeded", "pi_123")
		defer server.Close()

		confirmer := NewHTTPCardConfirmer(server.URL, "")
		result, err := confirmer.Confirm(context.Background(), "secret_abc", PaymentMethod{Token: "pm_card"})

		assert.NoError(t, err)
		assert.Equal(t, OutcomeSucceeded, result.Outcome)
		assert.Equal(t, "pi_123", result.ProcessorReference)
	})

	t.Run("requires_action is a value, not an error", func(t *testing.T) {
		server := confirmServer("requires_action", "pi_123")
		defer server.Close()

		confirmer := NewHTTPCardConfirmer(server.URL, "")
		result, err := confirmer.Confirm(context.Background(), "secret_abc", PaymentMethod{})

		assert.NoError(t, err)
		assert.Equal(t, OutcomeRequiresAction, result.Outcome)
	})

	t.Run("declined is a value, not an error", func(t *testing.T) {
		server := confirmServer("failed", "pi_456")
		defer server.Close()

		confirmer := NewHTTPCardConfirmer(server.URL, "")
		result, err := confirmer.Confirm(context.Background(), "secret_abc", PaymentMethod{})

		assert.NoError(t, err)
		assert.Equal(t, OutcomeDeclined, result.Outcome)
		assert.Equal(t, "pi_456", result.ProcessorReference)
	})

	t.Run("transport failure is a client fault", func(t *testing.T) {
		confirmer := NewHTTPCardConfirmer("http://127.0.0.1:1", "")
		_, err := confirmer.Confirm(context.Background(), "secret_abc", PaymentMethod{})

		var cf *ClientFault
		assert.ErrorAs(t, err, &cf)
	})

	t.Run("unknown status is a client fault", func(t *testing.T) {
		server := confirmServer("processing", "pi_789")
		defer server.Close()

		confirmer := NewHTTPCardConfirmer(server.URL, "")
		_, err := confirmer.Confirm(context.Background(), "secret_abc", PaymentMethod{})

		var cf *ClientFault
		assert.ErrorAs(t, err, &cf)
	})
}
