package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Grade is the letter grade derived from an analysis total score
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// ScoreValue holds the display value of a ScoreDetail.
// The model may answer with text ("5배") or a bare number (4.2); both forms
// survive a JSON round trip unchanged. Fields are exported so the value is
// gob-encodable for badgerhold.
type ScoreValue struct {
	Text     string
	Number   float64
	IsNumber bool
}

// TextValue creates a text ScoreValue
func TextValue(s string) ScoreValue {
	return ScoreValue{Text: s}
}

// NumberValue creates a numeric ScoreValue
func NumberValue(n float64) ScoreValue {
	return ScoreValue{Number: n, IsNumber: true}
}

// IsZero reports whether no value was supplied
func (v ScoreValue) IsZero() bool {
	return !v.IsNumber && v.Text == ""
}

// String returns the display form of the value
func (v ScoreValue) String() string {
	if v.IsNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// MarshalJSON encodes the value as a JSON number or string
func (v ScoreValue) MarshalJSON() ([]byte, error) {
	if v.IsNumber {
		return []byte(strconv.FormatFloat(v.Number, 'f', -1, 64)), nil
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a JSON string, number, or any other scalar.
// Non-string scalars other than numbers (true, false) are kept as text.
func (v *ScoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = ScoreValue{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Text = s
		return nil
	}

	if n, err := strconv.ParseFloat(string(data), 64); err == nil {
		v.Number = n
		v.IsNumber = true
		return nil
	}

	v.Text = string(data)
	return nil
}

// ScoreDetail is a single evaluated criterion: what was observed and the points awarded
type ScoreDetail struct {
	Value ScoreValue `json:"value"`
	Score float64    `json:"score"`
}

// ProfitabilityAnalysis covers profitability, valuation and earnings sustainability
type ProfitabilityAnalysis struct {
	PER              ScoreDetail `json:"per"`
	PBR              ScoreDetail `json:"pbr"`
	Sustainability   ScoreDetail `json:"sustainability"`
	DuplicateListing ScoreDetail `json:"duplicateListing"`
	TotalScore       float64     `json:"totalScore"`
}

// ShareholderReturnAnalysis covers dividends, buybacks and treasury stock
type ShareholderReturnAnalysis struct {
	DividendYield          ScoreDetail `json:"dividendYield"`
	QuarterlyDividends     ScoreDetail `json:"quarterlyDividends"`
	DividendIncreaseYears  ScoreDetail `json:"dividendIncreaseYears"`
	BuybackAndCancellation ScoreDetail `json:"buybackAndCancellation"`
	AnnualCancellationRate ScoreDetail `json:"annualCancellationRate"`
	TreasuryStockRatio     ScoreDetail `json:"treasuryStockRatio"`
	TotalScore             float64     `json:"totalScore"`
}

// GrowthPotentialAnalysis covers future growth, governance and brand strength
type GrowthPotentialAnalysis struct {
	FuturePotential     ScoreDetail `json:"futurePotential"`
	CorporateGovernance ScoreDetail `json:"corporateGovernance"`
	GlobalBrand         ScoreDetail `json:"globalBrand"`
	TotalScore          float64     `json:"totalScore"`
}

// Source is a citation backing the analysis
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// StockAnalysis is the complete, internally consistent analysis record
type StockAnalysis struct {
	CompanyName       string                    `json:"companyName"`
	Profitability     ProfitabilityAnalysis     `json:"profitability"`
	ShareholderReturn ShareholderReturnAnalysis `json:"shareholderReturn"`
	GrowthPotential   GrowthPotentialAnalysis   `json:"growthPotential"`
	TotalScore        float64                   `json:"totalScore"`
	Grade             Grade                     `json:"grade"`
	AnalystCommentary string                    `json:"analystCommentary"`
	Sources           []Source                  `json:"sources"`
}

// PartialProfitability is the profitability section as reported upstream; any field may be missing
type PartialProfitability struct {
	PER              *ScoreDetail `json:"per,omitempty"`
	PBR              *ScoreDetail `json:"pbr,omitempty"`
	Sustainability   *ScoreDetail `json:"sustainability,omitempty"`
	DuplicateListing *ScoreDetail `json:"duplicateListing,omitempty"`
}

// PartialShareholderReturn is the shareholder return section as reported upstream
type PartialShareholderReturn struct {
	DividendYield          *ScoreDetail `json:"dividendYield,omitempty"`
	QuarterlyDividends     *ScoreDetail `json:"quarterlyDividends,omitempty"`
	DividendIncreaseYears  *ScoreDetail `json:"dividendIncreaseYears,omitempty"`
	BuybackAndCancellation *ScoreDetail `json:"buybackAndCancellation,omitempty"`
	AnnualCancellationRate *ScoreDetail `json:"annualCancellationRate,omitempty"`
	TreasuryStockRatio     *ScoreDetail `json:"treasuryStockRatio,omitempty"`
}

// PartialGrowthPotential is the growth potential section as reported upstream
type PartialGrowthPotential struct {
	FuturePotential     *ScoreDetail `json:"futurePotential,omitempty"`
	CorporateGovernance *ScoreDetail `json:"corporateGovernance,omitempty"`
	GlobalBrand         *ScoreDetail `json:"globalBrand,omitempty"`
}

// PartialStockAnalysis is the best-effort structured result of an analysis request.
// Nil pointers and empty strings mean the upstream omitted the field.
type PartialStockAnalysis struct {
	CompanyName       string                    `json:"companyName,omitempty"`
	Profitability     *PartialProfitability     `json:"profitability,omitempty"`
	ShareholderReturn *PartialShareholderReturn `json:"shareholderReturn,omitempty"`
	GrowthPotential   *PartialGrowthPotential   `json:"growthPotential,omitempty"`
	AnalystCommentary string                    `json:"analystCommentary,omitempty"`
	Sources           []Source                  `json:"sources,omitempty"`
}
