package main

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
	"github.com/ternarybob/stockgrader/internal/services/report"
	"github.com/ternarybob/stockgrader/internal/storage/badger"
)

type silentChat struct{}

func (silentChat) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {}
}

type stubProvider struct{}

func (stubProvider) RequestAnalysis(ctx context.Context, companyName string) (*interfaces.AnalysisResult, error) {
	return &interfaces.AnalysisResult{
		Partial: &models.PartialStockAnalysis{
			CompanyName: companyName,
			Sources:     []models.Source{{URI: "https://example.com/ir", Title: "IR"}},
		},
		Provider: "gemini",
		Model:    "test-model",
	}, nil
}

func (stubProvider) OpenChat(ctx context.Context, seed *models.StockAnalysis) (interfaces.ChatHandle, error) {
	return silentChat{}, nil
}

func (stubProvider) Name() string  { return "gemini" }
func (stubProvider) Model() string { return "test-model" }

func newTestTools(t *testing.T) *toolSet {
	t.Helper()
	cfg := common.NewDefaultConfig()
	logger := arbor.NewLogger()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	sessions := chat.NewManager(&cfg.Chat, storage.TranscriptStorage(), logger)
	service := analysis.NewService(stubProvider{}, storage.AnalysisStorage(), sessions, &cfg.Analysis, logger)
	return newToolSet(service, sessions, report.NewService(&cfg.Report, logger), logger)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestAnalyzeStockTool(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	result, err := tools.handleAnalyzeStock(ctx, callRequest("analyze_stock", map[string]any{"company_name": "현대차"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "# 현대차 종합 분석 리포트")
	assert.Contains(t, text, "[IR](https://example.com/ir)")

	result, err = tools.handleListAnalyses(ctx, callRequest("list_analyses", map[string]any{"limit": 5}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "| 현대차 | 0 | D | gemini |")
}

func TestAnalyzeStockTool_Errors(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	result, err := tools.handleAnalyzeStock(ctx, callRequest("analyze_stock", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.handleAnalyzeStock(ctx, callRequest("analyze_stock", map[string]any{"company_name": "  "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, analysis.ErrEmptyCompanyName.Error(), resultText(t, result))
}

func TestGetAnalysisTool(t *testing.T) {
	tools := newTestTools(t)

	result, err := tools.handleGetAnalysis(context.Background(), callRequest("get_analysis", map[string]any{"analysis_id": "ana_missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Analysis not found")
}

func TestListAnalysesTool_Empty(t *testing.T) {
	tools := newTestTools(t)

	result, err := tools.handleListAnalyses(context.Background(), callRequest("list_analyses", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No analyses stored.")
}

func TestGradeScoreTool(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	tests := []struct {
		total float64
		grade string
		title string
	}{
		{total: 85, grade: "A", title: "장기투자 적합, 적극 매수"},
		{total: 80, grade: "B", title: "장기투자 적합, 매수 고려"},
		{total: 50, grade: "C", title: "보유"},
		{total: 49.5, grade: "D", title: "장기투자 비추천"},
	}

	for _, tt := range tests {
		result, err := tools.handleGradeScore(ctx, callRequest("grade_score", map[string]any{"total": tt.total}))
		require.NoError(t, err)
		text := resultText(t, result)
		assert.Contains(t, text, "**Grade:** "+tt.grade)
		assert.Contains(t, text, tt.title)
	}

	result, err := tools.handleGradeScore(ctx, callRequest("grade_score", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
