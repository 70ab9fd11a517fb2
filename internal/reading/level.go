package reading

import "math"

// AdjustReadingLevel moves a reading level after a completed session with
// the given average score. Strong sessions raise the level up to a cap
// above grade; weak sessions lower it down to a floor below grade.
func AdjustReadingLevel(level float64, grade int, avg float64) float64 {
	g := float64(grade)
	switch {
	case avg >= 0.8:
		return math.Min(level+0.1, g*1.2)
	case avg >= 0.6:
		return math.Min(level+0.05, g*1.1)
	case avg < 0.5:
		return math.Max(level-0.05, g*0.7)
	default:
		return level
	}
}
