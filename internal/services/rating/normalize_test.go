package rating

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/stockgrader/internal/models"
)

func detail(value string, score float64) *models.ScoreDetail {
	return &models.ScoreDetail{Value: models.TextValue(value), Score: score}
}

func assertAllPlaceholders(t *testing.T, views []SectionView, key SectionKey) {
	t.Helper()
	for _, v := range views {
		if v.Spec.Key != key {
			continue
		}
		for _, row := range v.Rows {
			assert.Equal(t, Placeholder(), row.Detail, "field %s", row.Field.Key)
		}
		assert.Zero(t, v.Total)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	result := Normalize(&models.PartialStockAnalysis{})

	assert.Equal(t, UnknownCompanyName, result.CompanyName)
	assert.Equal(t, CommentaryUnavailable, result.AnalystCommentary)
	assert.NotNil(t, result.Sources)
	assert.Empty(t, result.Sources)
	assert.Zero(t, result.TotalScore)
	assert.Equal(t, models.GradeD, result.Grade)

	views := Sections(result)
	require.Len(t, views, 3)
	for _, v := range views {
		assertAllPlaceholders(t, views, v.Spec.Key)
	}
}

func TestNormalize_NilInput(t *testing.T) {
	result := Normalize(nil)
	assert.Equal(t, UnknownCompanyName, result.CompanyName)
	assert.Equal(t, models.GradeD, result.Grade)
}

func TestNormalize_SinglePERField(t *testing.T) {
	partial := &models.PartialStockAnalysis{
		Profitability: &models.PartialProfitability{PER: detail("5배", 20)},
	}

	result := Normalize(partial)

	assert.Equal(t, "5배", result.Profitability.PER.Value.String())
	assert.Equal(t, 20.0, result.Profitability.PER.Score)
	assert.Equal(t, Placeholder(), result.Profitability.PBR)
	assert.Equal(t, 20.0, result.Profitability.TotalScore)
	assert.Zero(t, result.ShareholderReturn.TotalScore)
	assert.Zero(t, result.GrowthPotential.TotalScore)
	assert.Equal(t, 20.0, result.TotalScore)
	assert.Equal(t, models.GradeD, result.Grade)
}

func TestNormalize_RecomputesTotals(t *testing.T) {
	partial := &models.PartialStockAnalysis{
		CompanyName: "삼성전자",
		Profitability: &models.PartialProfitability{
			PER:              detail("9배", 10),
			PBR:              detail("0.5배", 4),
			Sustainability:   detail("대체로 지속 가능", 5),
			DuplicateListing: detail("단독 상장", 5),
		},
		ShareholderReturn: &models.PartialShareholderReturn{
			DividendYield:          detail("4%", 5),
			QuarterlyDividends:     detail("예", 5),
			DividendIncreaseYears:  detail("N/A", 0),
			BuybackAndCancellation: detail("예", 7),
			AnnualCancellationRate: detail("1%", 3),
			TreasuryStockRatio:     detail("없음", 5),
		},
		GrowthPotential: &models.PartialGrowthPotential{
			FuturePotential:     detail("높다", 7),
			CorporateGovernance: detail("전문 경영", 5),
			GlobalBrand:         detail("있다", 5),
		},
		AnalystCommentary: "종합 의견",
	}

	result := Normalize(partial)

	assert.Equal(t, "삼성전자", result.CompanyName)
	assert.Equal(t, "종합 의견", result.AnalystCommentary)
	assert.Equal(t, 24.0, result.Profitability.TotalScore)
	assert.Equal(t, 25.0, result.ShareholderReturn.TotalScore)
	assert.Equal(t, 17.0, result.GrowthPotential.TotalScore)
	assert.Equal(t, 66.0, result.TotalScore)
	assert.Equal(t, models.GradeC, result.Grade)

	for _, v := range Sections(result) {
		sum := 0.0
		for _, row := range v.Rows {
			sum += row.Detail.Score
		}
		assert.Equal(t, sum, v.Total, "section %s", v.Spec.Key)
	}
}

func TestNormalize_AbsentSectionIsFilled(t *testing.T) {
	partial := &models.PartialStockAnalysis{
		Profitability: &models.PartialProfitability{PER: detail("3배", 20)},
		GrowthPotential: &models.PartialGrowthPotential{
			FuturePotential: detail("매우 높다", 10),
		},
	}

	result := Normalize(partial)

	assertAllPlaceholders(t, Sections(result), SectionShareholderReturn)
	assert.Equal(t, 30.0, result.TotalScore)
}

func fullProfitability() *models.PartialProfitability {
	return &models.PartialProfitability{
		PER:              detail("4배", 20),
		PBR:              detail("0.2배", 5),
		Sustainability:   detail("대체로 지속 가능", 5),
		DuplicateListing: detail("단독 상장", 5),
	}
}

func fullShareholderReturn() *models.PartialShareholderReturn {
	return &models.PartialShareholderReturn{
		DividendYield:          detail("8%", 10),
		QuarterlyDividends:     detail("예", 5),
		DividendIncreaseYears:  detail("12년", 5),
		BuybackAndCancellation: detail("예", 7),
		AnnualCancellationRate: detail("2.5%", 8),
		TreasuryStockRatio:     detail("없음", 5),
	}
}

func TestNormalize_GradeBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		partial   *models.PartialStockAnalysis
		wantTotal float64
		want      models.Grade
	}{
		{
			name: "85 is A",
			partial: &models.PartialStockAnalysis{
				Profitability:     fullProfitability(),
				ShareholderReturn: fullShareholderReturn(),
				GrowthPotential:   &models.PartialGrowthPotential{FuturePotential: detail("매우 높다", 10)},
			},
			wantTotal: 85,
			want:      models.GradeA,
		},
		{
			name: "80 is B",
			partial: &models.PartialStockAnalysis{
				Profitability:     fullProfitability(),
				ShareholderReturn: fullShareholderReturn(),
				GrowthPotential:   &models.PartialGrowthPotential{GlobalBrand: detail("있다", 5)},
			},
			wantTotal: 80,
			want:      models.GradeB,
		},
		{
			name: "45 is D",
			partial: &models.PartialStockAnalysis{
				Profitability:   fullProfitability(),
				GrowthPotential: &models.PartialGrowthPotential{CorporateGovernance: detail("우수한 경영", 10)},
			},
			wantTotal: 45,
			want:      models.GradeD,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.partial)
			assert.Equal(t, tt.wantTotal, result.TotalScore)
			assert.Equal(t, tt.want, result.Grade)
		})
	}
}

func TestNormalize_SourcesPassThrough(t *testing.T) {
	sources := []models.Source{
		{URI: "https://a.example", Title: "A"},
		{URI: "https://b.example", Title: "B"},
	}

	result := Normalize(&models.PartialStockAnalysis{Sources: sources})

	assert.Equal(t, sources, result.Sources)
}

func TestNormalize_DiscardsIncomingTotals(t *testing.T) {
	raw := []byte(`{
		"companyName": "LG",
		"profitability": {"per": {"value": "12배", "score": 5}, "totalScore": 999},
		"totalScore": 999,
		"grade": "A"
	}`)

	partial, err := DecodePartial(raw)
	require.NoError(t, err)

	result := Normalize(partial)

	assert.Equal(t, 5.0, result.Profitability.TotalScore)
	assert.Equal(t, 5.0, result.TotalScore)
	assert.Equal(t, models.GradeD, result.Grade)
}

func TestNormalize_NumericValueSurvivesJSON(t *testing.T) {
	partial := &models.PartialStockAnalysis{
		Profitability: &models.PartialProfitability{
			PBR: &models.ScoreDetail{Value: models.NumberValue(0.45), Score: 4},
		},
	}

	data, err := json.Marshal(Normalize(partial))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	pbr := decoded["profitability"].(map[string]any)["pbr"].(map[string]any)
	assert.Equal(t, 0.45, pbr["value"])
	per := decoded["profitability"].(map[string]any)["per"].(map[string]any)
	assert.Equal(t, NoDataValue, per["value"])
}
