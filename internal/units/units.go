// Package units fixes the measurement units and their display formatting.
// Inputs are never converted: height is centimetres, weight kilograms, age
// whole months.
package units

import (
	"fmt"
	"math"
	"strconv"
)

// Unit symbols.
const (
	CM     = "cm"
	KG     = "kg"
	Months = "개월"
)

// ForMeasure returns the unit symbol for a measure name ("height" or
// "weight"), or "" for anything else.
func ForMeasure(measure string) string {
	switch measure {
	case "height":
		return CM
	case "weight":
		return KG
	default:
		return ""
	}
}

// FormatValue renders v with one decimal place, dropping a trailing ".0",
// followed by the unit for measure.
func FormatValue(measure string, v float64) string {
	return trimFloat(v) + ForMeasure(measure)
}

// FormatAge renders months as "N개월", adding the years for ages of two
// years or more, e.g. "30개월 (2세 6개월)".
func FormatAge(months int) string {
	if months < 24 {
		return fmt.Sprintf("%d%s", months, Months)
	}
	y, m := months/12, months%12
	if m == 0 {
		return fmt.Sprintf("%d%s (%d세)", months, Months, y)
	}
	return fmt.Sprintf("%d%s (%d세 %d%s)", months, Months, y, m, Months)
}

// FormatPercentile renders a percentile such as "P48.2".
func FormatPercentile(p float64) string {
	return "P" + trimFloat(p)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
