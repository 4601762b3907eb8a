package interfaces

import (
	"context"
	"iter"

	"github.com/ternarybob/stockgrader/internal/models"
)

// AnalysisResult is the structured answer of an analysis request before normalization
type AnalysisResult struct {
	// Partial is the decoded model answer; any field may be missing
	Partial *models.PartialStockAnalysis

	// RawText is the full model response, kept for diagnostics
	RawText string

	// Provider and Model identify who produced the answer
	Provider string
	Model    string
}

// ChatHandle is an open follow-up conversation bound to one analysis.
// A handle is used by one sender at a time.
type ChatHandle interface {
	// SendMessageStream sends a user message and yields the reply as ordered,
	// non-empty text fragments. The sequence is finite; iteration stops after
	// the first error.
	SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error]
}

// AnalysisProvider defines the model-backed operations used by the analysis flow.
// Implementations exist for Gemini (with search grounding) and Claude.
type AnalysisProvider interface {
	// RequestAnalysis asks the model for a rubric-scored analysis of a company.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - companyName: Name or ticker as entered by the user (already trimmed)
	//
	// Returns:
	//   - *AnalysisResult: Decoded partial analysis with any grounding sources
	//   - error: Upstream failure, or a parse error when no usable JSON was returned
	RequestAnalysis(ctx context.Context, companyName string) (*AnalysisResult, error)

	// OpenChat starts a follow-up conversation. When seed is non-nil the
	// conversation history carries the analysis as context.
	OpenChat(ctx context.Context, seed *models.StockAnalysis) (ChatHandle, error)

	// Name returns the provider identifier ("gemini" or "claude")
	Name() string

	// Model returns the model name used for requests
	Model() string
}
