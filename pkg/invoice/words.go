package invoice

import (
	"math/big"
	"strconv"
	"strings"
)

var (
	unitWords = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensWords  = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	scaleWords = []string{
		"", "thousand", "million", "billion", "trillion", "quadrillion", "quintillion",
		"sextillion", "septillion", "octillion", "nonillion", "decillion",
	}
)

// AmountInWords spells n as "Rupees <Words> Only". Words are plain English
// cardinals without "and", thousand groups separated by ", ", each word
// capitalised: 11210 -> "Rupees Eleven Thousand, Two Hundred Ten Only".
// Any size is accepted; past decillions the count of decillions is itself
// spelled out ("One Thousand Decillion"). Negative input is spelled as its
// absolute value.
func AmountInWords(n *big.Int) string {
	digits := strings.TrimLeft(new(big.Int).Abs(n).String(), "0")
	if digits == "" {
		return "Rupees " + titleWords(unitWords[0]) + " Only"
	}
	return "Rupees " + titleWords(cardinal(digits)) + " Only"
}

// cardinal spells a decimal digit string without leading zeros.
func cardinal(digits string) string {
	top := len(scaleWords) - 1
	if len(digits) > 3*(top+1) {
		cut := len(digits) - 3*top
		w := cardinal(digits[:cut]) + " " + scaleWords[top]
		if rest := strings.TrimLeft(digits[cut:], "0"); rest != "" {
			w += ", " + cardinal(rest)
		}
		return w
	}

	var groups []string
	for scale := 0; len(digits) > 0; scale++ {
		start := len(digits) - 3
		if start < 0 {
			start = 0
		}
		chunk, _ := strconv.Atoi(digits[start:])
		digits = digits[:start]
		if chunk == 0 {
			continue
		}
		w := belowThousand(chunk)
		if scaleWords[scale] != "" {
			w += " " + scaleWords[scale]
		}
		groups = append([]string{w}, groups...)
	}
	return strings.Join(groups, ", ")
}

func belowThousand(n int) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, unitWords[n/100], "hundred")
		n %= 100
	}
	switch {
	case n >= 20:
		parts = append(parts, tensWords[n/10])
		if n%10 != 0 {
			parts = append(parts, unitWords[n%10])
		}
	case n > 0:
		parts = append(parts, unitWords[n])
	}
	return strings.Join(parts, " ")
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
