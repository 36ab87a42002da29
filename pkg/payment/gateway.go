package payment

import "context"

// Order is the gateway-side handle for one checkout.
type Order struct {
	OrderID  string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// Gateway is the external payment service contract: create an order,
// later verify the signed callback for it. The checkout UI between the
// two calls is entirely the gateway's business.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}
