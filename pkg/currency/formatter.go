package currency

import (
	"fmt"
	"math"
	"strings"
)

const Default = "USD"

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
}

// Format renders amount with thousands separators. Whole amounts drop the
// decimals. Codes without a known symbol are used as a prefix.
func Format(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = Default
	}

	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := math.Round(amount * 100)
	whole := math.Floor(cents / 100)
	frac := int(cents - whole*100)

	formatted := addThousandsSeparator(fmt.Sprintf("%.0f", whole), ",")
	if frac != 0 {
		formatted += fmt.Sprintf(".%02d", frac)
	}

	result := code + " " + formatted
	if sym, ok := symbols[code]; ok {
		result = sym + formatted
	}
	if negative {
		result = "-" + result
	}

	return result
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
