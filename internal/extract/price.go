package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// currencyGlyphs strips ISO symbols and RU/EN currency words, grounded on
// the original CURRENCY_MAP's symbol/word coverage.
var currencyGlyphs = []string{
	"₽", "$", "€", "£",
	"руб.", "руб", "рублей", "рубля", "рубль",
	"usd", "dollars", "dollar",
	"eur", "euros", "euro",
	"gbp", "pounds", "pound",
}

var rangeSeparator = regexp.MustCompile(`\s*[-–—]\s*`)

// CleanPrice strips currency
// glyphs/words, unify thousand/decimal separators (European "1 234,56" and
// US "1,234.56" both normalize to "1234.56"), take the first value of any
// range, and return an error on an unparseable value. Grounded on the
// original extract_price's currency-stripping and separator-normalization
// behavior.
func CleanPrice(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("price: nil value")
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("price: negative value %v", v)
		}
		return v, nil
	case float32:
		return CleanPrice(float64(v))
	case int:
		return CleanPrice(float64(v))
	case int64:
		return CleanPrice(float64(v))
	case string:
		return cleanPriceString(v)
	default:
		return 0, fmt.Errorf("price: unsupported type %T", raw)
	}
}

func cleanPriceString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price: empty string")
	}

	lower := strings.ToLower(s)
	for _, glyph := range currencyGlyphs {
		lower = strings.ReplaceAll(lower, glyph, "")
	}
	lower = strings.TrimSpace(lower)

	// A range like "100-150" or "100 - 150": take the first value.
	if parts := rangeSeparator.Split(lower, 2); len(parts) == 2 && parts[0] != "" {
		if _, err := strconv.ParseFloat(normalizeSeparators(parts[0]), 64); err == nil {
			lower = parts[0]
		}
	}

	normalized := normalizeSeparators(lower)
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return 0, fmt.Errorf("price: no digits in %q", s)
	}

	val, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("price: unparseable value %q", s)
	}
	if val < 0 {
		return 0, fmt.Errorf("price: negative value %q", s)
	}
	return val, nil
}

// normalizeSeparators collapses thousand separators (spaces, thin spaces)
// and unifies the decimal separator to '.'. It distinguishes European
// "1.234,56" / "1 234,56" (comma decimal) from US "1,234.56" (dot decimal)
// by looking at which separator appears last and how many digits follow it.
func normalizeSeparators(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', ' ', ' ':
			// thousand separator, drop
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma == -1 && lastDot == -1:
		return keepDigitsAndOneDot(s, -1)
	case lastComma != -1 && lastDot == -1:
		// Only commas: decimal separator iff exactly one comma with <=2
		// trailing digits, else thousand separator.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = s[:lastComma] + "." + s[lastComma+1:]
			return keepDigitsAndOneDot(strings.ReplaceAll(s, ",", ""), strings.Index(s, "."))
		}
		return keepDigitsAndOneDot(strings.ReplaceAll(s, ",", ""), -1)
	case lastDot != -1 && lastComma == -1:
		return keepDigitsAndOneDot(s, lastDot)
	default:
		// Both present: whichever is rightmost is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
		} else {
			s = strings.ReplaceAll(s[:lastDot], ",", "") + "." + s[lastDot+1:]
		}
		return keepDigitsAndOneDot(s, strings.Index(s, "."))
	}
}

func keepDigitsAndOneDot(s string, dotHint int) string {
	var b strings.Builder
	dotSeen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !dotSeen:
			dotSeen = true
			b.WriteRune(r)
		}
	}
	return b.String()
}
