package validator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addressInput struct {
	Country string `json:"country" validate:"required"`
	City    string `json:"city" validate:"required,max=10"`
	Method  string `json:"method" validate:"omitempty,oneof=card cash"`
	Qty     int    `json:"qty" validate:"gte=1"`
	Note    string `validate:"max=3"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(addressInput{Country: "SE", City: "Malmo", Method: "card", Qty: 1})
	assert.NoError(t, err)
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(addressInput{City: "Gothenburg-long", Method: "crypto", Note: "abcdef"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()

	assert.Equal(t, "is required", fields["country"])
	assert.Equal(t, "must be at most 10", fields["city"])
	assert.Equal(t, "must be one of: card cash", fields["method"])
	assert.Equal(t, "must be greater than or equal to 1", fields["qty"])
	// No json tag: the Go field name is used.
	assert.Equal(t, "must be at most 3", fields["Note"])
}

func TestValidationError_Message(t *testing.T) {
	err := Validate(addressInput{City: "Lund", Qty: 1})
	require.Error(t, err)
	assert.Equal(t, "country is required", err.Error())
}

type priceInput struct {
	Price decimal.Decimal `json:"price" validate:"gte=0,max_places=2"`
}

func TestValidate_DecimalAmounts(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		wantMsg string
	}{
		{name: "whole", price: "10"},
		{name: "cents", price: "19.99"},
		{name: "zero", price: "0"},
		{name: "negative", price: "-1.50", wantMsg: "must be greater than or equal to 0"},
		{name: "sub-cent", price: "1.999", wantMsg: "must have at most 2 decimal places"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(priceInput{Price: decimal.RequireFromString(tt.price)})
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.wantMsg, valErr.Fields()["price"])
		})
	}
}
