package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPrice_RubleSymbolWithThousandSeparator(t *testing.T) {
	v, err := CleanPrice("₽1 500.00")
	require.NoError(t, err)
	assert.InDelta(t, 1500.00, v, 1e-9)
}

func TestCleanPrice_EuropeanFormat(t *testing.T) {
	v, err := CleanPrice("1 234,56")
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, v, 1e-9)
}

func TestCleanPrice_USFormat(t *testing.T) {
	v, err := CleanPrice("1,234.56")
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, v, 1e-9)
}

func TestCleanPrice_Range_TakesFirstValue(t *testing.T) {
	v, err := CleanPrice("100-150")
	require.NoError(t, err)
	assert.InDelta(t, 100, v, 1e-9)
}

func TestCleanPrice_FromFloat(t *testing.T) {
	v, err := CleanPrice(99.99)
	require.NoError(t, err)
	assert.InDelta(t, 99.99, v, 1e-9)
}

func TestCleanPrice_NegativeRejected(t *testing.T) {
	_, err := CleanPrice(-5.0)
	assert.Error(t, err)
}

func TestCleanPrice_InvalidStringRejected(t *testing.T) {
	_, err := CleanPrice("not a price")
	assert.Error(t, err)
}

func TestCleanPrice_NilRejected(t *testing.T) {
	_, err := CleanPrice(nil)
	assert.Error(t, err)
}

func TestCleanPrice_CurrencyWord(t *testing.T) {
	v, err := CleanPrice("25 руб")
	require.NoError(t, err)
	assert.InDelta(t, 25, v, 1e-9)
}
