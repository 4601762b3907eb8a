// Package analysis runs a stock analysis for a session: validate the name,
// ask the provider, normalize, persist and open the follow-up chat.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/chat"
	"github.com/ternarybob/stockgrader/internal/services/rating"
)

// Result is a completed analysis as returned to the caller
type Result struct {
	Record     *models.AnalysisRecord
	GradeTitle string
	Greeting   string
}

// Service orchestrates analyses and the analysis history
type Service struct {
	provider interfaces.AnalysisProvider
	storage  interfaces.AnalysisStorage
	sessions *chat.Manager
	config   *common.AnalysisConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates the analysis service
func NewService(
	provider interfaces.AnalysisProvider,
	storage interfaces.AnalysisStorage,
	sessions *chat.Manager,
	config *common.AnalysisConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		provider: provider,
		storage:  storage,
		sessions: sessions,
		config:   config,
		validate: validator.New(),
		logger:   logger,
	}
}

// Greeting is the first chat message after an analysis completes
func Greeting(companyName string) string {
	return companyName + "에 대한 분석이 완료되었습니다. 궁금한 점이 있다면 질문해주세요."
}

// ValidateCompanyName trims the name and checks it against the configured rules
func (s *Service) ValidateCompanyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Var(name, "required"); err != nil {
		return "", ErrEmptyCompanyName
	}
	if s.config.MaxCompanyNameLength > 0 {
		if err := s.validate.Var(name, fmt.Sprintf("max=%d", s.config.MaxCompanyNameLength)); err != nil {
			return "", ErrCompanyNameTooLong
		}
	}
	return name, nil
}

// Analyze runs a full analysis for the session.
//
// The previous analysis, chat and transcript of the session are discarded
// before the request is sent. A failed analysis leaves the session empty.
func (s *Service) Analyze(ctx context.Context, sessionID, companyName string) (*Result, error) {
	name, err := s.ValidateCompanyName(companyName)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.TryBeginAnalysis() {
		return nil, ErrAnalysisInProgress
	}
	defer session.EndAnalysis()

	if err := s.sessions.Reset(ctx, sessionID, nil, "", "", ""); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("company", name).
		Str("provider", s.provider.Name()).
		Msg("Starting stock analysis")

	start := time.Now()
	result, err := s.provider.RequestAnalysis(ctx, name)
	if err != nil {
		s.logger.Error().Err(err).Str("company", name).Msg("Stock analysis failed")
		return nil, &UpstreamError{Company: name, Err: err}
	}

	analysis := rating.Normalize(result.Partial)
	record := &models.AnalysisRecord{
		ID:         common.NewAnalysisID(),
		SessionID:  sessionID,
		Query:      name,
		Provider:   result.Provider,
		Model:      result.Model,
		Analysis:   analysis,
		CreatedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err := s.storage.SaveAnalysis(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", record.ID).Msg("Failed to persist analysis record")
	}

	greeting := Greeting(analysis.CompanyName)
	handle, err := s.provider.OpenChat(ctx, &record.Analysis)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", record.ID).Msg("Failed to open follow-up chat")
		handle = nil
		greeting = ""
	}

	if err := s.sessions.Reset(ctx, sessionID, handle, record.ID, analysis.CompanyName, greeting); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("analysis_id", record.ID).
		Str("company", analysis.CompanyName).
		Float64("total_score", analysis.TotalScore).
		Str("grade", string(analysis.Grade)).
		Int("sources", len(analysis.Sources)).
		Int64("duration_ms", record.DurationMs).
		Msg("Stock analysis completed")

	return &Result{
		Record:     record,
		GradeTitle: rating.GradeTitle(analysis.Grade),
		Greeting:   greeting,
	}, nil
}

// Normalize decodes a raw partial analysis and fills it in, without a model call
func (s *Service) Normalize(raw []byte) (models.StockAnalysis, error) {
	partial, err := rating.DecodePartial(raw)
	if err != nil {
		if errors.Is(err, rating.ErrInvalidJSON) || errors.Is(err, rating.ErrNotObject) {
			return models.StockAnalysis{}, ErrInvalidAnalysisJSON
		}
		return models.StockAnalysis{}, err
	}
	return rating.Normalize(partial), nil
}

// Get returns a stored analysis
func (s *Service) Get(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	return s.storage.GetAnalysis(ctx, id)
}

// List returns stored analyses, newest first. A non-positive limit uses the configured page size.
func (s *Service) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	return s.storage.ListAnalyses(ctx, limit)
}

// Delete removes a stored analysis
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.storage.DeleteAnalysis(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("analysis_id", id).Msg("Analysis deleted")
	return nil
}

// Count returns the number of stored analyses
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.storage.CountAnalyses(ctx)
}

// Provider returns the active analysis provider
func (s *Service) Provider() interfaces.AnalysisProvider {
	return s.provider
}
