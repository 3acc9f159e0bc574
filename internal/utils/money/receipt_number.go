package money

import "fmt"

// ReceiptKind distinguishes receipt number series
type ReceiptKind string

const (
	ReceiptInstallment ReceiptKind = ""
	ReceiptDownPayment ReceiptKind = "DP"
)

// ReceiptNumber formats RCP[-<KIND>]-<year>-<id:06>. The kind infix keeps
// down-payment and installment series apart for the same id.
func ReceiptNumber(kind ReceiptKind, id int64, year int) string {
	if kind == ReceiptInstallment {
		return fmt.Sprintf("RCP-%d-%06d", year, id)
	}
	return fmt.Sprintf("RCP-%s-%d-%06d", kind, year, id)
}
