package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/rating"
)

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeCell keeps table cells on one line and free of column separators
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// renderMarkdown lays out a record as a markdown report
func renderMarkdown(record *models.AnalysisRecord) string {
	a := record.Analysis
	var b strings.Builder

	fmt.Fprintf(&b, "# %s 종합 분석 리포트\n\n", a.CompanyName)
	fmt.Fprintf(&b, "**등급 %s** - %s\n\n", a.Grade, rating.GradeTitle(a.Grade))
	fmt.Fprintf(&b, "총점: **%s / 100**\n\n", formatScore(a.TotalScore))
	if !record.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "분석 일시: %s", record.CreatedAt.Format("2006-01-02 15:04"))
		if record.Provider != "" {
			fmt.Fprintf(&b, " (%s %s)", record.Provider, record.Model)
		}
		b.WriteString("\n\n")
	}

	for _, section := range rating.Sections(a) {
		fmt.Fprintf(&b, "## %s (%s / %s, %.1f%%)\n\n",
			section.Spec.Title,
			formatScore(section.Total),
			formatScore(section.Spec.MaxScore),
			section.Percent)

		b.WriteString("| 항목 | 값 | 점수 |\n")
		b.WriteString("|------|----|------|\n")
		for _, row := range section.Rows {
			fmt.Fprintf(&b, "| %s | %s | %s / %s |\n",
				row.Field.Label,
				escapeCell(row.Detail.Value.String()),
				formatScore(row.Detail.Score),
				formatScore(row.Field.MaxScore))
		}
		b.WriteString("\n")
	}

	b.WriteString("## 애널리스트 코멘트\n\n")
	b.WriteString(strings.TrimSpace(a.AnalystCommentary))
	b.WriteString("\n")

	if len(a.Sources) > 0 {
		b.WriteString("\n## 출처\n\n")
		for i, src := range a.Sources {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, escapeLinkText(src.Title), src.URI)
		}
	}

	return b.String()
}

func escapeLinkText(s string) string {
	s = strings.ReplaceAll(s, "[", "\\[")
	return strings.ReplaceAll(s, "]", "\\]")
}
