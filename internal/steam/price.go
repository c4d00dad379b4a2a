package steam

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePrice extracts a numeric amount from a formatted market price string
// such as "¥ 12.34", "$1,234.56" or "12,34€".
//
// When both ',' and '.' appear the ',' is a thousands separator; a lone ','
// is treated as the decimal separator.
func ParsePrice(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric price in %q", s)
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable price %q: %w", s, err)
	}
	return v, nil
}
