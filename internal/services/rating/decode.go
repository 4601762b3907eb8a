package rating

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the payload does not parse as JSON
	ErrInvalidJSON = errors.New("payload is not valid JSON")
	// ErrNotObject is returned when the payload parses but is not a JSON object
	ErrNotObject = errors.New("payload is not a JSON object")
)

// DecodePartial reads a model answer into a PartialStockAnalysis.
//
// Decoding is tolerant: fields of the wrong type are treated as absent, numeric
// strings in "score" are coerced and unknown fields are ignored. A repeated key
// resolves to its last occurrence. Only a payload that is not a JSON object is an error.
func DecodePartial(raw []byte) (*models.PartialStockAnalysis, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	fields := members(root)
	partial := &models.PartialStockAnalysis{
		CompanyName:       stringField(fields["companyName"]),
		AnalystCommentary: stringField(fields["analystCommentary"]),
		Sources:           decodeSources(fields["sources"]),
	}

	if s := fields[string(SectionProfitability)]; s.IsObject() {
		f := members(s)
		partial.Profitability = &models.PartialProfitability{
			PER:              decodeDetail(f["per"]),
			PBR:              decodeDetail(f["pbr"]),
			Sustainability:   decodeDetail(f["sustainability"]),
			DuplicateListing: decodeDetail(f["duplicateListing"]),
		}
	}

	if s := fields[string(SectionShareholderReturn)]; s.IsObject() {
		f := members(s)
		partial.ShareholderReturn = &models.PartialShareholderReturn{
			DividendYield:          decodeDetail(f["dividendYield"]),
			QuarterlyDividends:     decodeDetail(f["quarterlyDividends"]),
			DividendIncreaseYears:  decodeDetail(f["dividendIncreaseYears"]),
			BuybackAndCancellation: decodeDetail(f["buybackAndCancellation"]),
			AnnualCancellationRate: decodeDetail(f["annualCancellationRate"]),
			TreasuryStockRatio:     decodeDetail(f["treasuryStockRatio"]),
		}
	}

	if s := fields[string(SectionGrowthPotential)]; s.IsObject() {
		f := members(s)
		partial.GrowthPotential = &models.PartialGrowthPotential{
			FuturePotential:     decodeDetail(f["futurePotential"]),
			CorporateGovernance: decodeDetail(f["corporateGovernance"]),
			GlobalBrand:         decodeDetail(f["globalBrand"]),
		}
	}

	return partial, nil
}

// members indexes an object's fields by key. A repeated key keeps its last value.
func members(obj gjson.Result) map[string]gjson.Result {
	m := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		m[key.String()] = value
		return true
	})
	return m
}

func decodeDetail(r gjson.Result) *models.ScoreDetail {
	if !r.IsObject() {
		return nil
	}
	f := members(r)
	return &models.ScoreDetail{
		Value: decodeValue(f["value"]),
		Score: decodeScore(f["score"]),
	}
}

func decodeValue(r gjson.Result) models.ScoreValue {
	switch r.Type {
	case gjson.String:
		return models.TextValue(r.Str)
	case gjson.Number:
		if finite(r.Num) {
			return models.NumberValue(r.Num)
		}
		return models.TextValue(r.Raw)
	case gjson.True, gjson.False, gjson.JSON:
		return models.TextValue(r.Raw)
	default:
		return models.ScoreValue{}
	}
}

func decodeScore(r gjson.Result) float64 {
	var n float64
	switch r.Type {
	case gjson.Number:
		n = r.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if !finite(n) {
		return 0
	}
	return n
}

func decodeSources(r gjson.Result) []models.Source {
	if !r.IsArray() {
		return nil
	}
	var sources []models.Source
	r.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		f := members(item)
		sources = append(sources, models.Source{
			URI:   stringField(f["uri"]),
			Title: stringField(f["title"]),
		})
		return true
	})
	return sources
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
