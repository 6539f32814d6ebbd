package models_test

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SumsToGross(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	amounts := []models.Money{1, 2, 3, 7, 33, 67, 99, 100, 101, 12345, 10000, 999999}
	for i := 0; i < 2000; i++ {
		amounts = append(amounts, models.Money(r.Int63n(100_000_000)+1))
	}

	for _, gross := range amounts {
		commission, instructor, err := models.Split(gross)
		require.NoError(t, err)
		assert.Equal(t, gross, commission+instructor, "gross=%d", gross)
		assert.GreaterOrEqual(t, int64(commission), int64(0))
		assert.GreaterOrEqual(t, int64(instructor), int64(0))
	}
}

func TestSplit_ExactFifteenPercent(t *testing.T) {
	commission, instructor, err := models.Split(10000)
	require.NoError(t, err)
	assert.Equal(t, models.Money(1500), commission)
	assert.Equal(t, models.Money(8500), instructor)
}

func TestSplit_RoundsHalfUp(t *testing.T) {
	// 0.15 * 10 = 1.5 -> 2
	commission, instructor, err := models.Split(10)
	require.NoError(t, err)
	assert.Equal(t, models.Money(2), commission)
	assert.Equal(t, models.Money(8), instructor)

	// 0.15 * 3 = 0.45 -> 0
	commission, instructor, err = models.Split(3)
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), commission)
	assert.Equal(t, models.Money(3), instructor)
}

func TestSplit_RejectsNonPositive(t *testing.T) {
	_, _, err := models.Split(0)
	assert.ErrorIs(t, err, models.ErrNonPositiveAmount)
	_, _, err = models.Split(-100)
	assert.ErrorIs(t, err, models.ErrNonPositiveAmount)
}

func TestMoneyFromDecimal_RoundsInsteadOfTruncating(t *testing.T) {
	cases := map[string]models.Money{
		"100":      10000,
		"100.00":   10000,
		"149.90":   14990,
		"19.999":   2000,
		"0.005":    1,
		"0.004":    0,
		"1.015":    102,
		"80.12345": 8012,
	}
	for in, want := range cases {
		got, err := models.MoneyFromDecimal(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestMoney_JSON(t *testing.T) {
	var body struct {
		Amount models.Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 100.5}`), &body))
	assert.Equal(t, models.Money(10050), body.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "89.90"}`), &body))
	assert.Equal(t, models.Money(8990), body.Amount)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 89.90}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"amount": "abc"}`), &body))
}

func TestMoneyFromDecimal_RejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"184467440737095516.17", "92233720368547758.08", "-1000000000.01", "1e30"} {
		_, err := models.MoneyFromDecimal(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, models.ErrAmountOutOfRange, in)
	}

	got, err := models.MoneyFromDecimal(decimal.RequireFromString("1000000000.00"))
	require.NoError(t, err)
	assert.Equal(t, models.MaxMoney, got)
}

func TestMoney_JSONRejectsAmountsThatWouldWrap(t *testing.T) {
	var m models.Money
	err := json.Unmarshal([]byte(`184467440737095516.17`), &m)
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
	assert.Equal(t, models.Money(0), m)

	_, err = models.ParseMoney("99999999999999999999")
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
}

func TestSplit_LargeAmounts(t *testing.T) {
	commission, instructor, err := models.Split(models.MaxMoney)
	require.NoError(t, err)
	assert.Equal(t, models.Money(15_000_000_000), commission)
	assert.Equal(t, models.Money(85_000_000_000), instructor)

	_, _, err = models.Split(7_000_000_000_000_000)
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
}
