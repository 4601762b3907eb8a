package rating

import (
	"math"

	"github.com/ternarybob/stockgrader/internal/models"
)

// Grade thresholds
const (
	ThresholdGradeA = 80.0 // exclusive
	ThresholdGradeB = 70.0
	ThresholdGradeC = 50.0
)

// CalculateGrade maps a total score to a letter grade.
//
// Ladder (first match wins):
// - A: total > 80
// - B: 70-80
// - C: 50-70
// - D: below 50
func CalculateGrade(total float64) models.Grade {
	switch {
	case total > ThresholdGradeA:
		return models.GradeA
	case total >= ThresholdGradeB:
		return models.GradeB
	case total >= ThresholdGradeC:
		return models.GradeC
	default:
		return models.GradeD
	}
}

// GradeTitle returns the investment recommendation shown with a grade
func GradeTitle(g models.Grade) string {
	switch g {
	case models.GradeA:
		return "장기투자 적합, 적극 매수"
	case models.GradeB:
		return "장기투자 적합, 매수 고려"
	case models.GradeC:
		return "보유"
	default:
		return "장기투자 비추천"
	}
}

// SectionPercent returns score as a percentage of max, clamped to 0-100
func SectionPercent(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Max(0, math.Min(100, score/max*100))
}
