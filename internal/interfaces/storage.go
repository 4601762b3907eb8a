package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/stockgrader/internal/models"
)

// ErrAnalysisNotFound is returned when no analysis record exists for an ID
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisStorage - interface for persisted analysis history
type AnalysisStorage interface {
	SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) // newest first
	DeleteAnalysis(ctx context.Context, id string) error
	CountAnalyses(ctx context.Context) (int, error)
}

// TranscriptStorage - interface for chat transcripts. Entries expire after the configured TTL.
type TranscriptStorage interface {
	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error
	LoadTranscript(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	DeleteTranscript(ctx context.Context, sessionID string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	AnalysisStorage() AnalysisStorage
	KeyValueStorage() KeyValueStorage
	TranscriptStorage() TranscriptStorage
	Close() error
}
