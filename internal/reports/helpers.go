package reports

import "math"

// pct is numerator/denominator as a percentage rounded to two decimals,
// 0 when the denominator is 0.
func pct(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return round2(float64(numerator) / float64(denominator) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// pctChange is the percentage change from comparison to current, nil
// when there is nothing to compare against.
func pctChange(current, comparison int) *float64 {
	if comparison == 0 {
		return nil
	}
	change := round2(float64(current-comparison) / float64(comparison) * 100)
	return &change
}

// capRows truncates rows to the cap and reports whether anything was
// dropped. A cap of 0 means unlimited.
func capRows[T any](rows []T, cap int) ([]T, bool) {
	if cap > 0 && len(rows) > cap {
		return rows[:cap], true
	}
	return rows, false
}
