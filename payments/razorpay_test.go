package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	r := NewRazorpay("rzp_test_key", "shh", "INR")

	sig := Sign("order_1", "pay_1", "shh")
	assert.True(t, r.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, r.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, r.VerifySignature("order_1", "pay_1", Sign("order_1", "pay_1", "other")))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(50000), MinorUnits(500))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
}

func TestDisabledGateway(t *testing.T) {
	_, err := Disabled{}.CreateOrder(context.Background(), 10, "r", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, Disabled{}.VerifySignature("a", "b", "c"))
}
