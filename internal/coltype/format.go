package coltype

// format.go renders cell values for display.
//
// Numeric types share one pipeline: scale, round half away from zero with
// decimal arithmetic, abbreviate, then print with English digit grouping. Values of one
// million and above are abbreviated ("2.5 million") for types that opt in.

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// numberFormat is the display rule of a numeric type.
type numberFormat struct {
	decimals   int
	abbreviate bool
	scale      float64
	unitPrefix bool
	suffix     string
}

// abbreviations are checked largest first.
var abbreviations = []struct {
	threshold float64
	word      string
}{
	{1e15, "quadrillion"},
	{1e12, "trillion"},
	{1e9, "billion"},
	{1e6, "million"},
}

// numberFormat returns the rule for t, or false when t renders with Stringify.
func (t Type) numberFormat() (numberFormat, bool) {
	switch t {
	case Integer, Population:
		return numberFormat{decimals: 0, abbreviate: true}, true
	case Currency:
		return numberFormat{decimals: 0, unitPrefix: true}, true
	case Percentage:
		return numberFormat{decimals: 0, suffix: "%"}, true
	case DecimalPercentage:
		return numberFormat{decimals: 0, scale: 100, suffix: "%"}, true
	case Age:
		return numberFormat{decimals: 1}, true
	case Ratio:
		return numberFormat{decimals: 1, abbreviate: true}, true
	case PopulationDensity:
		return numberFormat{decimals: 0}, true
	default:
		return numberFormat{}, false
	}
}

// FormatValue renders v for display under this type's rule.
// unit is written as a literal prefix by Currency and ignored otherwise.
// A nil value always renders as "".
func (t Type) FormatValue(v any, unit string) string {
	if v == nil {
		return ""
	}

	f, ok := t.numberFormat()
	if !ok {
		return Stringify(v)
	}

	n, ok := toFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return Stringify(v)
	}

	if f.scale != 0 {
		n *= f.scale
	}

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	// Abbreviation is chosen on the rounded value: 999,999.7 is "1 million".
	n = roundTo(n, f.decimals)
	body := ""
	if f.abbreviate {
		body = abbreviate(n)
	}
	if body == "" {
		body = formatNumber(n, f.decimals, f.decimals)
	}

	// Rounding can turn a tiny negative into zero; don't print "-0".
	if body == formatNumber(0, f.decimals, f.decimals) {
		sign = ""
	}

	prefix := ""
	if f.unitPrefix {
		prefix = unit
	}
	return sign + prefix + body + f.suffix
}

// abbreviate renders n against the largest word it reaches, or "" below one
// million. A mantissa that rounds to 1,000 moves up to the next word.
func abbreviate(n float64) string {
	for i, a := range abbreviations {
		if n < a.threshold {
			continue
		}
		scaled := roundTo(n/a.threshold, 1)
		if scaled >= 1000 && i > 0 {
			a = abbreviations[i-1]
			scaled = roundTo(n/a.threshold, 1)
		}
		return formatNumber(scaled, 0, 1) + " " + a.word
	}
	return ""
}

func roundTo(n float64, places int) float64 {
	return decimal.NewFromFloat(n).Round(int32(places)).InexactFloat64()
}

// formatNumber rounds n to maxDecimals and prints it with digit grouping,
// padding to minDecimals fraction digits.
func formatNumber(n float64, minDecimals, maxDecimals int) string {
	return printer.Sprint(number.Decimal(roundTo(n, maxDecimals),
		number.MinFractionDigits(minDecimals),
		number.MaxFractionDigits(maxDecimals),
	))
}

// Stringify converts a cell value to its plain string form.
// Numbers use the shortest representation that round-trips.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}
