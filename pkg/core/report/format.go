package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NA is printed for missing or non-finite values.
const NA = "n/a"

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"HKD": "HK$",
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Money formats v with two decimals, thousands separators and the currency
// symbol (or ISO code when no symbol is known).
func Money(v float64, currency string) string {
	if !finite(v) {
		return NA
	}
	s := groupThousands(decimal.NewFromFloat(v).StringFixed(2))
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		if strings.HasPrefix(s, "-") {
			return "-" + sym + s[1:]
		}
		return sym + s
	}
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// Compact formats large amounts with K/M/B/T suffixes and one decimal.
func Compact(v float64, currency string) string {
	if !finite(v) {
		return NA
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	units := []struct {
		div    float64
		suffix string
	}{{1e12, "T"}, {1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
	for _, u := range units {
		if v >= u.div {
			d := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(u.div)).StringFixed(1)
			return sign + prefix(currency) + d + u.suffix
		}
	}
	return sign + prefix(currency) + decimal.NewFromFloat(v).StringFixed(0)
}

func prefix(currency string) string {
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return sym
	}
	return ""
}

// Pct formats a fraction as a percentage with the given decimals.
func Pct(v float64, decimals int) string {
	if !finite(v) {
		return NA
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(int32(decimals)) + "%"
}

// OptPct formats an optional fraction.
func OptPct(v *float64, decimals int) string {
	if v == nil {
		return NA
	}
	return Pct(*v, decimals)
}

// Num formats a plain number with the given decimals.
func Num(v float64, decimals int) string {
	if !finite(v) {
		return NA
	}
	return groupThousands(decimal.NewFromFloat(v).StringFixed(int32(decimals)))
}

// OptNum formats an optional number.
func OptNum(v *float64, decimals int) string {
	if v == nil {
		return NA
	}
	return Num(*v, decimals)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%s%s%s", sign, b.String(), frac)
}
