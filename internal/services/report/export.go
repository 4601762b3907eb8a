package report

import (
	"time"

	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/rating"
)

// exportDocument is the YAML layout: sections in rubric order with labels
type exportDocument struct {
	ID         string          `yaml:"id"`
	Company    string          `yaml:"company"`
	Query      string          `yaml:"query,omitempty"`
	Provider   string          `yaml:"provider,omitempty"`
	Model      string          `yaml:"model,omitempty"`
	CreatedAt  time.Time       `yaml:"created_at"`
	TotalScore float64         `yaml:"total_score"`
	Grade      string          `yaml:"grade"`
	GradeTitle string          `yaml:"grade_title"`
	Sections   []exportSection `yaml:"sections"`
	Commentary string          `yaml:"commentary"`
	Sources    []models.Source `yaml:"sources"`
}

type exportSection struct {
	Key      string        `yaml:"key"`
	Title    string        `yaml:"title"`
	Score    float64       `yaml:"score"`
	MaxScore float64       `yaml:"max_score"`
	Percent  float64       `yaml:"percent"`
	Items    []exportField `yaml:"items"`
}

type exportField struct {
	Key      string  `yaml:"key"`
	Label    string  `yaml:"label"`
	Value    any     `yaml:"value"`
	Score    float64 `yaml:"score"`
	MaxScore float64 `yaml:"max_score"`
}

func exportValue(v models.ScoreValue) any {
	if v.IsNumber {
		return v.Number
	}
	return v.Text
}

func toExportDocument(record *models.AnalysisRecord) exportDocument {
	a := record.Analysis
	doc := exportDocument{
		ID:         record.ID,
		Company:    a.CompanyName,
		Query:      record.Query,
		Provider:   record.Provider,
		Model:      record.Model,
		CreatedAt:  record.CreatedAt,
		TotalScore: a.TotalScore,
		Grade:      string(a.Grade),
		GradeTitle: rating.GradeTitle(a.Grade),
		Commentary: a.AnalystCommentary,
		Sources:    a.Sources,
	}
	if doc.Sources == nil {
		doc.Sources = []models.Source{}
	}

	for _, view := range rating.Sections(a) {
		section := exportSection{
			Key:      string(view.Spec.Key),
			Title:    view.Spec.Title,
			Score:    view.Total,
			MaxScore: view.Spec.MaxScore,
			Percent:  view.Percent,
		}
		for _, row := range view.Rows {
			section.Items = append(section.Items, exportField{
				Key:      row.Field.Key,
				Label:    row.Field.Label,
				Value:    exportValue(row.Detail.Value),
				Score:    row.Detail.Score,
				MaxScore: row.Field.MaxScore,
			})
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc
}
