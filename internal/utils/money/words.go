package money

import (
	"strings"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	crore = 10000000
	lakh  = 100000
)

// AmountInWords spells the rupee part of amount using lakh and crore
// grouping, e.g. 125000 is "One Lakh Twenty Five Thousand". Paise are ignored.
func AmountInWords(amount decimal.Decimal) string {
	n := amount.IntPart()
	switch {
	case n == 0:
		return "Zero"
	case n < 0:
		return "Minus " + indianWords(-n)
	}
	return indianWords(n)
}

func indianWords(n int64) string {
	parts := make([]string, 0, 7)
	if c := n / crore; c > 0 {
		parts = append(parts, indianWords(c), "Crore")
	}
	if l := n / lakh % 100; l > 0 {
		parts = append(parts, chunkWords(l), "Lakh")
	}
	if t := n / 1000 % 100; t > 0 {
		parts = append(parts, chunkWords(t), "Thousand")
	}
	if r := n % 1000; r > 0 {
		parts = append(parts, chunkWords(r))
	}
	return strings.Join(parts, " ")
}

// chunkWords spells 1..999
func chunkWords(n int64) string {
	words := strings.ReplaceAll(num2words.Convert(int(n)), "-", " ")
	return cases.Title(language.English).String(words)
}
