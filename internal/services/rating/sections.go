// Package rating normalizes model-produced stock analyses and derives their
// scores and grades. All functions are stateless and perform no I/O.
package rating

import "github.com/ternarybob/stockgrader/internal/models"

// Placeholders substituted for anything the model did not provide
const (
	UnknownCompanyName    = "알 수 없는 회사"
	NoDataValue           = "데이터 없음"
	CommentaryUnavailable = "분석 코멘트를 생성할 수 없습니다."
)

// SectionKey identifies one of the three scored sections
type SectionKey string

const (
	SectionProfitability     SectionKey = "profitability"
	SectionShareholderReturn SectionKey = "shareholderReturn"
	SectionGrowthPotential   SectionKey = "growthPotential"
)

// FieldSpec describes a scored criterion
type FieldSpec struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	MaxScore float64 `json:"max_score"`
}

// SectionSpec describes a section and its criteria in display order
type SectionSpec struct {
	Key      SectionKey  `json:"key"`
	Title    string      `json:"title"`
	MaxScore float64     `json:"max_score"`
	Fields   []FieldSpec `json:"fields"`
}

// SectionSpecs returns the rubric layout: 35 + 40 + 25 = 100 points
func SectionSpecs() []SectionSpec {
	return []SectionSpec{
		{
			Key:      SectionProfitability,
			Title:    "수익성 / 가치 / 지속가능성",
			MaxScore: 35,
			Fields: []FieldSpec{
				{Key: "per", Label: "PER", MaxScore: 20},
				{Key: "pbr", Label: "PBR", MaxScore: 5},
				{Key: "sustainability", Label: "이익 지속성", MaxScore: 5},
				{Key: "duplicateListing", Label: "중복 상장", MaxScore: 5},
			},
		},
		{
			Key:      SectionShareholderReturn,
			Title:    "주주 환원 정책",
			MaxScore: 40,
			Fields: []FieldSpec{
				{Key: "dividendYield", Label: "배당 수익률", MaxScore: 10},
				{Key: "quarterlyDividends", Label: "분기 배당", MaxScore: 5},
				{Key: "dividendIncreaseYears", Label: "배당 연속 인상", MaxScore: 5},
				{Key: "buybackAndCancellation", Label: "자사주 매입 및 소각", MaxScore: 7},
				{Key: "annualCancellationRate", Label: "연간 소각 비율", MaxScore: 8},
				{Key: "treasuryStockRatio", Label: "자사주 보유 비율", MaxScore: 5},
			},
		},
		{
			Key:      SectionGrowthPotential,
			Title:    "미래 성장성 / 경쟁력",
			MaxScore: 25,
			Fields: []FieldSpec{
				{Key: "futurePotential", Label: "미래 성장 잠재력", MaxScore: 10},
				{Key: "corporateGovernance", Label: "기업 경영", MaxScore: 10},
				{Key: "globalBrand", Label: "세계적 브랜드", MaxScore: 5},
			},
		},
	}
}

// SectionRow pairs a rubric field with the analysed detail
type SectionRow struct {
	Field  FieldSpec
	Detail models.ScoreDetail
}

// SectionView is a section of a normalized analysis laid out for display
type SectionView struct {
	Spec    SectionSpec
	Rows    []SectionRow
	Total   float64
	Percent float64
}

// Sections lays out a normalized analysis in rubric order
func Sections(a models.StockAnalysis) []SectionView {
	specs := SectionSpecs()
	details := map[SectionKey][]models.ScoreDetail{
		SectionProfitability: {
			a.Profitability.PER,
			a.Profitability.PBR,
			a.Profitability.Sustainability,
			a.Profitability.DuplicateListing,
		},
		SectionShareholderReturn: {
			a.ShareholderReturn.DividendYield,
			a.ShareholderReturn.QuarterlyDividends,
			a.ShareholderReturn.DividendIncreaseYears,
			a.ShareholderReturn.BuybackAndCancellation,
			a.ShareholderReturn.AnnualCancellationRate,
			a.ShareholderReturn.TreasuryStockRatio,
		},
		SectionGrowthPotential: {
			a.GrowthPotential.FuturePotential,
			a.GrowthPotential.CorporateGovernance,
			a.GrowthPotential.GlobalBrand,
		},
	}
	totals := map[SectionKey]float64{
		SectionProfitability:     a.Profitability.TotalScore,
		SectionShareholderReturn: a.ShareholderReturn.TotalScore,
		SectionGrowthPotential:   a.GrowthPotential.TotalScore,
	}

	views := make([]SectionView, 0, len(specs))
	for _, spec := range specs {
		rows := make([]SectionRow, len(spec.Fields))
		for i, f := range spec.Fields {
			rows[i] = SectionRow{Field: f, Detail: details[spec.Key][i]}
		}
		views = append(views, SectionView{
			Spec:    spec,
			Rows:    rows,
			Total:   totals[spec.Key],
			Percent: SectionPercent(totals[spec.Key], spec.MaxScore),
		})
	}
	return views
}
