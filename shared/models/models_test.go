package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id, err := NewID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())

	_, err = NewID("not-a-uuid")
	assert.Error(t, err)
}

func TestVersion_Update(t *testing.T) {
	v := NewVersion()
	assert.Equal(t, 1, v.Value)
	assert.Equal(t, 2, v.Update().Value)
	assert.Equal(t, 1, v.Value, "update must not mutate the receiver")
}

func TestMoney_Add(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("120.50"), "USD")
	b := NewMoney(decimal.RequireFromString("79.50"), "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "USD", sum.Currency)

	_, err = a.Add(NewMoney(decimal.NewFromInt(1), "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
