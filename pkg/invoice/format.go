package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatGrouped renders d with two decimals and Indian digit grouping:
// the last three integer digits, then pairs (1234567.8 -> 12,34,567.80).
func FormatGrouped(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + intPart + "." + frac
	}

	head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	groups = append(groups, tail)

	return sign + strings.Join(groups, ",") + "." + frac
}
