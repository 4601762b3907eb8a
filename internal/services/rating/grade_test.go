package rating

import (
	"testing"

	"github.com/ternarybob/stockgrader/internal/models"
)

func TestCalculateGrade(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		want  models.Grade
	}{
		{name: "perfect score", total: 100, want: models.GradeA},
		{name: "just above A threshold", total: 81, want: models.GradeA},
		{name: "fractional above A threshold", total: 80.5, want: models.GradeA},
		{name: "A threshold is exclusive", total: 80, want: models.GradeB},
		{name: "B lower bound", total: 70, want: models.GradeB},
		{name: "just below B", total: 69, want: models.GradeC},
		{name: "fractional below B", total: 69.9, want: models.GradeC},
		{name: "C lower bound", total: 50, want: models.GradeC},
		{name: "just below C", total: 49, want: models.GradeD},
		{name: "zero", total: 0, want: models.GradeD},
		{name: "negative", total: -5, want: models.GradeD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateGrade(tt.total); got != tt.want {
				t.Errorf("CalculateGrade(%v) = %s, want %s", tt.total, got, tt.want)
			}
		})
	}
}

func TestGradeTitle(t *testing.T) {
	tests := []struct {
		grade models.Grade
		want  string
	}{
		{models.GradeA, "장기투자 적합, 적극 매수"},
		{models.GradeB, "장기투자 적합, 매수 고려"},
		{models.GradeC, "보유"},
		{models.GradeD, "장기투자 비추천"},
	}

	for _, tt := range tests {
		t.Run(string(tt.grade), func(t *testing.T) {
			if got := GradeTitle(tt.grade); got != tt.want {
				t.Errorf("GradeTitle(%s) = %q, want %q", tt.grade, got, tt.want)
			}
		})
	}
}

func TestSectionPercent(t *testing.T) {
	tests := []struct {
		name       string
		score, max float64
		want       float64
	}{
		{"half", 10, 20, 50},
		{"full", 35, 35, 100},
		{"over max clamps", 50, 40, 100},
		{"negative clamps", -3, 25, 0},
		{"zero max", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SectionPercent(tt.score, tt.max); got != tt.want {
				t.Errorf("SectionPercent(%v, %v) = %v, want %v", tt.score, tt.max, got, tt.want)
			}
		})
	}
}

func TestSectionSpecsMaxScores(t *testing.T) {
	total := 0.0
	for _, spec := range SectionSpecs() {
		fieldTotal := 0.0
		for _, f := range spec.Fields {
			fieldTotal += f.MaxScore
		}
		if fieldTotal != spec.MaxScore {
			t.Errorf("section %s: fields sum to %v, want %v", spec.Key, fieldTotal, spec.MaxScore)
		}
		total += spec.MaxScore
	}
	if total != 100 {
		t.Errorf("rubric totals %v, want 100", total)
	}
}
