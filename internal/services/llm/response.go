package llm

import (
	"errors"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/rating"
)

var (
	// ErrNoAnalysisData is returned when the model response contains no JSON object
	ErrNoAnalysisData = errors.New("모델 응답에서 유효한 분석 데이터를 찾지 못했습니다.")

	// ErrMalformedAnalysisData is returned when the extracted JSON does not parse
	ErrMalformedAnalysisData = errors.New("모델이 반환한 데이터의 형식이 올바르지 않습니다.")
)

// jsonObjectRegex spans from the first '{' to the last '}' of the response
var jsonObjectRegex = regexp.MustCompile(`\{[\s\S]*\}`)

// searchRedirectPrefix marks grounding links that point at a search results page
const searchRedirectPrefix = "https://www.google.com/search"

// ParseAnalysisText extracts and decodes the analysis JSON embedded in a model response.
// Prose or code fences around the object are ignored.
func ParseAnalysisText(text string) (*models.PartialStockAnalysis, error) {
	match := jsonObjectRegex.FindString(strings.TrimSpace(text))
	if match == "" {
		return nil, ErrNoAnalysisData
	}

	partial, err := rating.DecodePartial([]byte(match))
	if err != nil {
		return nil, ErrMalformedAnalysisData
	}
	return partial, nil
}

// DedupeSources drops incomplete and search-redirect entries, then removes duplicate URIs.
// A duplicate keeps the position of its first occurrence and the title of its last.
func DedupeSources(raw []models.Source) []models.Source {
	index := make(map[string]int, len(raw))
	sources := make([]models.Source, 0, len(raw))

	for _, s := range raw {
		if s.URI == "" || s.Title == "" {
			continue
		}
		if strings.HasPrefix(s.URI, searchRedirectPrefix) {
			continue
		}
		if i, seen := index[s.URI]; seen {
			sources[i] = s
			continue
		}
		index[s.URI] = len(sources)
		sources = append(sources, s)
	}
	return sources
}

// groundingSources collects web sources from the first candidate's grounding metadata
func groundingSources(resp *genai.GenerateContentResponse) []models.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return []models.Source{}
	}

	var raw []models.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		raw = append(raw, models.Source{
			URI:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return DedupeSources(raw)
}
