package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/pkg/circuitbreaker"
)

// ErrSignatureMismatch is returned when a payment callback's HMAC does
// not match the order/payment pair.
var ErrSignatureMismatch = errors.New("payment signature mismatch")

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client talks to the order/verify REST surface of the gateway. Calls
// run behind a circuit breaker so a flapping gateway fails fast instead
// of tying up booking requests.
type Client struct {
	config Config
	http   *http.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

func NewClient(config Config, logger *zerolog.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
	})
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		cb:     cb,
		logger: logger,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	var order Order
	err = c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/orders", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.config.KeyID, c.config.KeySecret)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, payload)
		}
		return json.NewDecoder(resp.Body).Decode(&order)
	})
	if err != nil {
		c.logger.Error().Err(err).Str("receipt", receipt).Msg("payment order creation failed")
		return nil, err
	}

	order.KeyID = c.config.KeyID
	return &order, nil
}

// VerifySignature checks the callback HMAC: SHA256(orderID|paymentID)
// keyed with the gateway secret, hex encoded. Pure computation, no
// round trip to the gateway.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.config.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
