package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
	"github.com/ternarybob/stockgrader/internal/services/rating"
	"github.com/ternarybob/stockgrader/internal/services/report"
)

const maxListLimit = 100

// toolSet holds the services the MCP tools call into
type toolSet struct {
	analysis *analysis.Service
	sessions *chat.Manager
	reports  *report.Service
	logger   arbor.ILogger
}

func newToolSet(analysisService *analysis.Service, sessions *chat.Manager, reports *report.Service, logger arbor.ILogger) *toolSet {
	return &toolSet{
		analysis: analysisService,
		sessions: sessions,
		reports:  reports,
		logger:   logger,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleAnalyzeStock implements the analyze_stock tool.
// Each call runs in a fresh session; the follow-up chat is not exposed over MCP.
func (t *toolSet) handleAnalyzeStock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("company_name")
	if err != nil {
		return errorResult("Error: company_name parameter is required"), nil
	}

	session := t.sessions.Create()
	result, err := t.analysis.Analyze(ctx, session.ID, name)
	if err != nil {
		t.logger.Error().Err(err).Str("company", name).Msg("MCP analysis failed")
		return errorResult(err.Error()), nil
	}

	return textResult(t.reports.Markdown(result.Record)), nil
}

// handleGetAnalysis implements the get_analysis tool
func (t *toolSet) handleGetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("analysis_id")
	if err != nil || id == "" {
		return errorResult("Error: analysis_id parameter is required"), nil
	}

	record, err := t.analysis.Get(ctx, id)
	if err != nil {
		return errorResult(fmt.Sprintf("Analysis not found: %v", err)), nil
	}

	return textResult(t.reports.Markdown(record)), nil
}

// handleListAnalyses implements the list_analyses tool
func (t *toolSet) handleListAnalyses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 0)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := t.analysis.List(ctx, limit)
	if err != nil {
		t.logger.Error().Err(err).Msg("MCP list analyses failed")
		return errorResult(fmt.Sprintf("List error: %v", err)), nil
	}

	return textResult(formatAnalysisList(records)), nil
}

// handleGradeScore implements the grade_score tool
func (t *toolSet) handleGradeScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := request.GetArguments()["total"]; !ok {
		return errorResult("Error: total parameter is required"), nil
	}

	total := request.GetFloat("total", 0)
	grade := rating.CalculateGrade(total)
	return textResult(formatGrade(total, grade, rating.GradeTitle(grade))), nil
}
