package reporting

import "github.com/shopspring/decimal"

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundInt rounds v to the nearest whole unit.
func RoundInt(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
