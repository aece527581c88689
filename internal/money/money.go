// Package money formats prices for display.
package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Format renders amount as US dollars with two decimals, e.g. "$9.99".
func Format(amount float64) string {
	return printer.Sprintf("$%.2f", amount)
}
