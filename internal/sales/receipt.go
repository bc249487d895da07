package sales

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var receiptPrinter = message.NewPrinter(language.LatinAmericanSpanish)

// FormatTotal renders an amount the way it appears on printed receipts.
func FormatTotal(amount float64) string {
	return receiptPrinter.Sprintf("Q%.2f", amount)
}
