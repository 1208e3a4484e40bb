// Package normalizer handles regional money, quantity and date parsing.
// Converts accounting export cells into the canonical values used by the query engine.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ThousandsPolicy decides how a lone dot followed by digits is read.
type ThousandsPolicy int

const (
	// PolicyThreeDigitGroup treats a single dot followed by exactly three digits as a
	// thousands separator ("7.860" -> 7860, "7.86" -> 7.86). Values that really carry
	// three decimal places are misread.
	PolicyThreeDigitGroup ThousandsPolicy = iota
	// PolicyDotIsDecimal always treats a single dot as the decimal point ("1.200" -> 1.2).
	PolicyDotIsDecimal
	// PolicyDotIsThousands always removes dots ("7.86" -> 786).
	PolicyDotIsThousands
)

var ErrUnknownPolicy = errors.New("unknown thousands policy")

var policyNames = map[ThousandsPolicy]string{
	PolicyThreeDigitGroup: "three_digit_group",
	PolicyDotIsDecimal:    "dot_decimal",
	PolicyDotIsThousands:  "dot_thousands",
}

// ParsePolicy maps a configuration value to a ThousandsPolicy.
// An empty value selects PolicyThreeDigitGroup.
func ParsePolicy(name string) (ThousandsPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return PolicyThreeDigitGroup, nil
	}
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return PolicyThreeDigitGroup, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

func (p ThousandsPolicy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Normalizer converts raw cells into finite float64 values.
type Normalizer struct {
	policy ThousandsPolicy
}

// New creates a Normalizer with the given policy.
func New(policy ThousandsPolicy) *Normalizer {
	return &Normalizer{policy: policy}
}

// Value normalizes any scalar cell. Missing or unusable input yields 0.
func (n *Normalizer) Value(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		return n.Amount(x)
	case *string:
		if x == nil {
			return 0
		}
		return n.Amount(*x)
	case []byte:
		return n.Amount(string(x))
	case fmt.Stringer:
		return n.Amount(x.String())
	default:
		return 0
	}
}

var stripSymbols = strings.NewReplacer(
	"$", "",
	"%", "",
	"€", "",
	"\u00a0", "",
	"\u202f", "",
)

// Amount parses a monetary or quantity string.
//
// "1.079.532.901,33" -> 1079532901.33, "1234,56" -> 1234.56, "$ 3.500" -> 3500
// (with PolicyThreeDigitGroup). Unparseable input returns 0.
func (n *Normalizer) Amount(raw string) float64 {
	s := stripSymbols.Replace(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case commas == 1:
		s = strings.ReplaceAll(s, ",", ".")
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case dots == 1:
		s = n.singleDot(s)
	}

	s = keepNumeric(s)
	if s == "" || s == "-" || s == "." {
		return 0
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(val)
}

func (n *Normalizer) singleDot(s string) string {
	switch n.policy {
	case PolicyDotIsDecimal:
		return s
	case PolicyDotIsThousands:
		return strings.Replace(s, ".", "", 1)
	default:
		idx := strings.Index(s, ".")
		if countDigits(s[idx+1:]) == 3 {
			return s[:idx] + s[idx+1:]
		}
		return s
	}
}

// countDigits counts the leading run of digits after the separator, ignoring
// trailing symbols such as a stray currency code.
func countDigits(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsDigit(r) {
			break
		}
		count++
	}
	return count
}

// keepNumeric keeps digits, dots, and a minus sign only when it leads the number.
func keepNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Day-first layouts seen in emission-date columns
var dayFirstFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// ParseDayFirstDate parses an emission date. The boolean is false when no layout matches.
func ParseDayFirstDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstFormats {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var spacePattern = regexp.MustCompile(`\s+`)

// CleanText trims and collapses whitespace.
func CleanText(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}

// Label is the grouping key form of a text cell: cleaned and uppercased.
func Label(raw string) string {
	return strings.ToUpper(CleanText(raw))
}
