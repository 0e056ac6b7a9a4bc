package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/sony/gobreaker/v2"
)

// QRClient calls the external payment provider to render transfer-payment
// QR codes. The provider is outside our availability domain, so calls go
// through a circuit breaker: after repeated failures the breaker opens and
// requests fail fast until the provider recovers.
type QRClient struct {
	baseURL     string
	bankAccount string
	bankName    string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*types.QRPayload]
	logger      *logger.Logger
}

type qrRequest struct {
	Amount      int64  `json:"amount"`
	Memo        string `json:"memo"`
	BankAccount string `json:"bank_account"`
	BankName    string `json:"bank_name"`
}

type qrResponse struct {
	QRCodeURL string `json:"qr_code_url"`
}

// NewQRClient creates a QR provider client with a circuit breaker
func NewQRClient(cfg *config.BillingConfig, log *logger.Logger) interfaces.QRProvider {
	timeout := time.Duration(cfg.QRTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "qr-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &QRClient{
		baseURL:     cfg.QRProviderURL,
		bankAccount: cfg.BankAccount,
		bankName:    cfg.BankName,
		client:      &http.Client{Timeout: timeout},
		breaker:     gobreaker.NewCircuitBreaker[*types.QRPayload](settings),
		logger:      log,
	}
}

// GenerateQR fetches a QR payload for the given amount and memo
func (c *QRClient) GenerateQR(amount int64, memo string) (*types.QRPayload, error) {
	payload, err := c.breaker.Execute(func() (*types.QRPayload, error) {
		return c.fetch(amount, memo)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewExternalError("QR_PROVIDER_UNAVAILABLE",
				"payment provider is temporarily unavailable", err)
		}
		var clinicErr *types.ClinicError
		if errors.As(err, &clinicErr) {
			return nil, clinicErr
		}
		return nil, types.NewExternalError("QR_PROVIDER_ERROR", "failed to generate payment QR", err)
	}
	return payload, nil
}

func (c *QRClient) fetch(amount int64, memo string) (*types.QRPayload, error) {
	body, err := json.Marshal(qrRequest{
		Amount:      amount,
		Memo:        memo,
		BankAccount: c.bankAccount,
		BankName:    c.bankName,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(c.baseURL+"/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("qr provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var decoded qrResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode qr provider response: %w", err)
	}
	if decoded.QRCodeURL == "" {
		return nil, fmt.Errorf("qr provider returned an empty payload")
	}

	return &types.QRPayload{
		QRCodeURL: decoded.QRCodeURL,
		Memo:      memo,
		Amount:    amount,
	}, nil
}
