package billing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQRClient(t *testing.T, handler http.HandlerFunc) *QRClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewQRClient(&config.BillingConfig{
		QRProviderURL:    server.URL,
		QRTimeoutSeconds: 2,
		BankAccount:      "0123456789",
		BankName:         "VCB",
	}, logger.New("debug")).(*QRClient)

	return client
}

func TestQRClient_GenerateQR(t *testing.T) {
	client := newTestQRClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate", r.URL.Path)

		var req qrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(270000), req.Amount)
		assert.Equal(t, "0123456789", req.BankAccount)

		json.NewEncoder(w).Encode(qrResponse{QRCodeURL: "https://qr.example/abc"})
	})

	payload, err := client.GenerateQR(270000, "Invoice 1a2b3c4d")

	require.NoError(t, err)
	assert.Equal(t, "https://qr.example/abc", payload.QRCodeURL)
	assert.Equal(t, int64(270000), payload.Amount)
	assert.Equal(t, "Invoice 1a2b3c4d", payload.Memo)
}

func TestQRClient_ProviderErrorWrapped(t *testing.T) {
	client := newTestQRClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.GenerateQR(100000, "Invoice x")

	require.Error(t, err)
	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeExternal, clinicErr.Type)
}

func TestQRClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client := newTestQRClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.GenerateQR(100000, "Invoice x")
		require.Error(t, err)
	}

	// The breaker is open now: the provider is no longer called and the
	// error identifies the fast-fail.
	_, err := client.GenerateQR(100000, "Invoice x")
	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, "QR_PROVIDER_UNAVAILABLE", clinicErr.Code)
	assert.Equal(t, 5, calls)
}
