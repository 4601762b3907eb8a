package rating

import "github.com/ternarybob/stockgrader/internal/models"

// Normalize turns a possibly incomplete analysis into a complete record.
//
// Every named field of every section is present afterwards; missing ones hold
// the NoDataValue placeholder with score 0. Section totals are recomputed from
// the named fields, so totals supplied upstream never leak through. The grade
// follows from the aggregate total.
func Normalize(partial *models.PartialStockAnalysis) models.StockAnalysis {
	if partial == nil {
		partial = &models.PartialStockAnalysis{}
	}

	result := models.StockAnalysis{
		CompanyName:       textOr(partial.CompanyName, UnknownCompanyName),
		Profitability:     normalizeProfitability(partial.Profitability),
		ShareholderReturn: normalizeShareholderReturn(partial.ShareholderReturn),
		GrowthPotential:   normalizeGrowthPotential(partial.GrowthPotential),
		AnalystCommentary: textOr(partial.AnalystCommentary, CommentaryUnavailable),
		Sources:           []models.Source{},
	}

	result.TotalScore = result.Profitability.TotalScore +
		result.ShareholderReturn.TotalScore +
		result.GrowthPotential.TotalScore
	result.Grade = CalculateGrade(result.TotalScore)

	if len(partial.Sources) > 0 {
		result.Sources = append(result.Sources, partial.Sources...)
	}

	return result
}

func normalizeProfitability(p *models.PartialProfitability) models.ProfitabilityAnalysis {
	if p == nil {
		p = &models.PartialProfitability{}
	}
	s := models.ProfitabilityAnalysis{
		PER:              detailOrPlaceholder(p.PER),
		PBR:              detailOrPlaceholder(p.PBR),
		Sustainability:   detailOrPlaceholder(p.Sustainability),
		DuplicateListing: detailOrPlaceholder(p.DuplicateListing),
	}
	s.TotalScore = sumScores(s.PER, s.PBR, s.Sustainability, s.DuplicateListing)
	return s
}

func normalizeShareholderReturn(p *models.PartialShareholderReturn) models.ShareholderReturnAnalysis {
	if p == nil {
		p = &models.PartialShareholderReturn{}
	}
	s := models.ShareholderReturnAnalysis{
		DividendYield:          detailOrPlaceholder(p.DividendYield),
		QuarterlyDividends:     detailOrPlaceholder(p.QuarterlyDividends),
		DividendIncreaseYears:  detailOrPlaceholder(p.DividendIncreaseYears),
		BuybackAndCancellation: detailOrPlaceholder(p.BuybackAndCancellation),
		AnnualCancellationRate: detailOrPlaceholder(p.AnnualCancellationRate),
		TreasuryStockRatio:     detailOrPlaceholder(p.TreasuryStockRatio),
	}
	s.TotalScore = sumScores(
		s.DividendYield,
		s.QuarterlyDividends,
		s.DividendIncreaseYears,
		s.BuybackAndCancellation,
		s.AnnualCancellationRate,
		s.TreasuryStockRatio,
	)
	return s
}

func normalizeGrowthPotential(p *models.PartialGrowthPotential) models.GrowthPotentialAnalysis {
	if p == nil {
		p = &models.PartialGrowthPotential{}
	}
	s := models.GrowthPotentialAnalysis{
		FuturePotential:     detailOrPlaceholder(p.FuturePotential),
		CorporateGovernance: detailOrPlaceholder(p.CorporateGovernance),
		GlobalBrand:         detailOrPlaceholder(p.GlobalBrand),
	}
	s.TotalScore = sumScores(s.FuturePotential, s.CorporateGovernance, s.GlobalBrand)
	return s
}

// Placeholder returns the detail used for a criterion the model did not report
func Placeholder() models.ScoreDetail {
	return models.ScoreDetail{Value: models.TextValue(NoDataValue), Score: 0}
}

// A present detail replaces the placeholder wholesale, even if its value is empty.
func detailOrPlaceholder(d *models.ScoreDetail) models.ScoreDetail {
	if d == nil {
		return Placeholder()
	}
	return *d
}

func sumScores(details ...models.ScoreDetail) float64 {
	total := 0.0
	for _, d := range details {
		total += d.Score
	}
	return total
}

func textOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
