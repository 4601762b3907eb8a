package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/stockgrader/internal/models"
)

// formatAnalysisList formats stored analyses as a markdown table
func formatAnalysisList(records []*models.AnalysisRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent Analyses (%d results)\n\n", len(records)))

	if len(records) == 0 {
		sb.WriteString("No analyses stored.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Company | Score | Grade | Provider | Created |\n")
	sb.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %g | %s | %s | %s |\n",
			r.ID,
			strings.ReplaceAll(r.Analysis.CompanyName, "|", "\\|"),
			r.Analysis.TotalScore,
			r.Analysis.Grade,
			r.Provider,
			r.CreatedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}

// formatGrade formats a grade lookup
func formatGrade(total float64, grade models.Grade, title string) string {
	return fmt.Sprintf("**Total:** %g / 100\n**Grade:** %s\n**Recommendation:** %s\n", total, grade, title)
}
