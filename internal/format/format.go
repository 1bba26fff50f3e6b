// Package format renders monetary amounts and shares for display.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency renders amount as US dollars, e.g. "$1,234.56" or "-$5.00".
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "$0.00"
	}
	// avoid "-$0.00" for tiny negative rounding residue
	rounded := math.Round(amount*100) / 100
	if rounded < 0 {
		return printer.Sprintf("-$%.2f", -rounded)
	}
	return printer.Sprintf("$%.2f", rounded+0)
}

// Percent renders a share in [0, 1] as a whole percentage, e.g. "42%".
func Percent(share float64) string {
	if math.IsNaN(share) || math.IsInf(share, 0) || share < 0 {
		share = 0
	}
	return printer.Sprintf("%d%%", int(math.Round(share*100)))
}
