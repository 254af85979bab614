package events

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies whose minor unit is the major unit.
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
}

// FormatAmount renders an amount in minor units for humans, e.g. 5000 usd
// becomes "50.00 USD".
func FormatAmount(minor int64, currency string) string {
	cur := strings.ToLower(currency)
	var display string
	if zeroDecimal[cur] {
		display = decimal.NewFromInt(minor).String()
	} else {
		display = decimal.New(minor, -2).StringFixed(2)
	}
	if cur == "" {
		return display
	}
	return display + " " + strings.ToUpper(cur)
}
