package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AnalysisStorage implements the AnalysisStorage interface for Badger
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AnalysisStorage) SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	if record.ID == "" {
		return fmt.Errorf("analysis ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Debug().
		Str("analysis_id", record.ID).
		Str("company", record.Analysis.CompanyName).
		Msg("Analysis saved")
	return nil
}

func (s *AnalysisStorage) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &record, nil
}

// ListAnalyses returns records newest first. A limit of zero or less returns all records.
func (s *AnalysisStorage) ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.AnalysisRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	result := make([]*models.AnalysisRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *AnalysisStorage) DeleteAnalysis(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.AnalysisRecord{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrAnalysisNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}

func (s *AnalysisStorage) CountAnalyses(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.AnalysisRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return int(count), nil
}
