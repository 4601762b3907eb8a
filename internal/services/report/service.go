// Package report exports a stored analysis as markdown, HTML, PDF, YAML or JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/models"
)

// Format is an export format
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// ParseFormat maps a query value to a Format. Empty selects markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatYAML:
		return "application/yaml; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Extension returns the file extension of the format
func (f Format) Extension() string {
	return string(f)
}

// Service renders analysis reports
type Service struct {
	config *common.ReportConfig
	md     goldmark.Markdown
	logger arbor.ILogger
}

// NewService creates a report service
func NewService(config *common.ReportConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		md:     goldmark.New(goldmark.WithExtensions(extension.Table)),
		logger: logger,
	}
}

// Render produces the report in the requested format
func (s *Service) Render(record *models.AnalysisRecord, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(s.Markdown(record)), nil
	case FormatHTML:
		return s.HTML(record)
	case FormatPDF:
		return s.PDF(record)
	case FormatYAML:
		return s.YAML(record)
	case FormatJSON:
		return s.JSON(record)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// Markdown renders the report as markdown
func (s *Service) Markdown(record *models.AnalysisRecord) string {
	return renderMarkdown(record)
}

// HTML renders the markdown report to a standalone HTML document
func (s *Service) HTML(record *models.AnalysisRecord) ([]byte, error) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(renderMarkdown(record)), &body); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html lang=\"ko\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
	out.WriteString(html.EscapeString(record.Analysis.CompanyName))
	out.WriteString(" 종합 분석 리포트</title>\n")
	out.WriteString("<style>body{font-family:sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem}" +
		"table{border-collapse:collapse;width:100%}th,td{border:1px solid #ccc;padding:.4rem .6rem;text-align:left}" +
		"th{background:#f0f0f0}</style>\n</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// PDF renders the markdown report to PDF and validates the result
func (s *Service) PDF(record *models.AnalysisRecord) ([]byte, error) {
	data, err := convertMarkdownToPDF(renderMarkdown(record), record.Analysis.CompanyName, s.config, s.logger)
	if err != nil {
		return nil, err
	}

	pages, err := validatePDF(data)
	if err != nil {
		s.logger.Error().Err(err).Str("analysis_id", record.ID).Msg("Generated PDF failed validation")
		return nil, err
	}

	s.logger.Debug().
		Str("analysis_id", record.ID).
		Int("pdf_size", len(data)).
		Int("pages", pages).
		Msg("PDF report generated")
	return data, nil
}

// validatePDF checks the document structure and returns its page count
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("invalid PDF output: %w", err)
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF output: %w", err)
	}
	return ctx.PageCount, nil
}

// YAML renders the record as YAML
func (s *Service) YAML(record *models.AnalysisRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toExportDocument(record)); err != nil {
		return nil, fmt.Errorf("failed to render YAML report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render YAML report: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON renders the record as indented JSON
func (s *Service) JSON(record *models.AnalysisRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render JSON report: %w", err)
	}
	return data, nil
}
