package usecase

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatPrice renders a price with space-separated thousands and kopecks
// only when they are non-zero: 3200 -> "3 200", 99.5 -> "99.50".
func formatPrice(price decimal.Decimal) string {
	text := price.StringFixed(2)
	if price.Equal(price.Truncate(0)) {
		text = price.StringFixed(0)
	}

	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	whole, fraction, hasFraction := strings.Cut(text, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(digit)
	}
	if hasFraction {
		b.WriteByte('.')
		b.WriteString(fraction)
	}
	return sign + b.String()
}
