package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestArithmetic(t *testing.T) {
	assert.True(t, Add(d("0.1"), d("0.2")).Equal(d("0.3")))
	assert.True(t, Sub(d("10"), d("12.5")).Equal(d("-2.5")))
	assert.True(t, Sum(d("2000"), d("1999.99"), d("0.01")).Equal(d("4000")))
	assert.True(t, Sum().IsZero())
	assert.True(t, ClampNonNegative(d("-0.01")).IsZero())
	assert.True(t, ClampNonNegative(d("8000")).Equal(d("8000")))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		part, whole, want string
	}{
		{"45", "50", "90"},
		{"1", "3", "33.33"},
		{"2", "3", "66.67"},
		{"0.125", "1", "12.5"},
		{"1.0005", "10", "10.01"},
		{"5", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.part+"/"+tt.whole, func(t *testing.T) {
			got := Percentage(d(tt.part), d(tt.whole))
			assert.Truef(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseAndFormat(t *testing.T) {
	v, err := Parse(" 1250.5 ")
	require.NoError(t, err)
	assert.Equal(t, "1250.50", Format(v))

	fine, err := Parse("1250.005")
	require.NoError(t, err)
	assert.Equal(t, "1250.005", fine.String(), "sub-paisa digits survive parsing")

	for _, raw := range []string{"twelve", "", "12,000", "1.2.3"} {
		_, err = Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "Zero"},
		{"0.75", "Zero"},
		{"7", "Seven"},
		{"21", "Twenty One"},
		{"100", "One Hundred"},
		{"1250.00", "One Thousand Two Hundred Fifty"},
		{"1250.99", "One Thousand Two Hundred Fifty"},
		{"12000", "Twelve Thousand"},
		{"100000", "One Lakh"},
		{"125000", "One Lakh Twenty Five Thousand"},
		{"2500000", "Twenty Five Lakh"},
		{"10000000", "One Crore"},
		{"12345678", "One Crore Twenty Three Lakh Forty Five Thousand Six Hundred Seventy Eight"},
		{"1000000000", "One Hundred Crore"},
		{"-500", "Minus Five Hundred"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInWords(d(tt.amount)))
		})
	}
}

func TestReceiptNumber(t *testing.T) {
	assert.Equal(t, "RCP-2024-000042", ReceiptNumber(ReceiptInstallment, 42, 2024))
	assert.Equal(t, "RCP-DP-2024-000042", ReceiptNumber(ReceiptDownPayment, 42, 2024))
	assert.Equal(t, ReceiptNumber(ReceiptInstallment, 7, 2023), ReceiptNumber(ReceiptInstallment, 7, 2023))
	assert.NotEqual(t, ReceiptNumber(ReceiptInstallment, 7, 2023), ReceiptNumber(ReceiptDownPayment, 7, 2023))
	assert.Equal(t, "RCP-2024-1234567", ReceiptNumber(ReceiptInstallment, 1234567, 2024))
}
