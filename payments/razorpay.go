// Package payments creates gateway orders and verifies payment signatures.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/pkg/errors"
	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

// Order is the gateway order handed to the client checkout.
type Order struct {
	ID       string                 `json:"id"`
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Receipt  string                 `json:"receipt"`
	Raw      map[string]interface{} `json:"-"`
}

// Gateway is the subset of the payment provider the services need.
type Gateway interface {
	// CreateOrder opens an order for amount major units.
	CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Razorpay struct {
	client   *razorpay.Client
	secret   string
	currency string
}

func NewRazorpay(keyID, keySecret, currency string) *Razorpay {
	return &Razorpay{
		client:   razorpay.NewClient(keyID, keySecret),
		secret:   keySecret,
		currency: currency,
	}
}

// MinorUnits converts a major currency amount into paise/cents.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   MinorUnits(amount),
		"currency": r.currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := r.client.Order.Create(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create razorpay order")
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay order response has no id")
	}
	return &Order{
		ID:       id,
		Amount:   MinorUnits(amount),
		Currency: r.currency,
		Receipt:  receipt,
		Raw:      body,
	}, nil
}

func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return rzputils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, r.secret)
}

// Sign computes the signature the gateway attaches to a successful payment.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Disabled rejects every order; used when no gateway keys are configured.
type Disabled struct{}

func (Disabled) CreateOrder(context.Context, float64, string, map[string]string) (*Order, error) {
	return nil, ErrNotConfigured
}

func (Disabled) VerifySignature(string, string, string) bool { return false }
