package models

import "github.com/shopspring/decimal"

// Receipt is the flat record consumed by the document renderer
type Receipt struct {
	ReceiptNumber        string          `json:"receiptNumber"`
	TotalFees            decimal.Decimal `json:"totalFees"`
	TotalPreviousPaid    decimal.Decimal `json:"totalPreviousPaid"`
	CurrentPaymentAmount decimal.Decimal `json:"currentPaymentAmount"`
	TotalPaidAfter       decimal.Decimal `json:"totalPaidAfter"`
	BalanceAmount        decimal.Decimal `json:"balanceAmount"`
	AmountInWords        string          `json:"amountInWords"`
	PaymentMethod        string          `json:"paymentMethod"`
	PaymentType          string          `json:"paymentType"`
	StudentName          string          `json:"studentName"`
	PaymentDate          string          `json:"paymentDate"`
}
