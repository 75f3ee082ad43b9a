package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"litlens/internal/apperr"
	"litlens/internal/cache"
	"litlens/internal/llm"
	"litlens/pkg/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TextFetcher resolves a book ID to its (possibly truncated) text.
type TextFetcher interface {
	FetchText(ctx context.Context, bookID string) (string, error)
}

type ServiceConfig struct {
	Model       string
	Temperature float32
}

// Service coordinates the analysis pipeline: check cache, else fetch text,
// call the model, normalize, store, return. Each request is stateless apart
// from cache reads/writes; concurrent requests for the same uncached book are
// collapsed into one upstream cycle.
type Service struct {
	cfg    ServiceConfig
	cache  *cache.SafeCache
	texts  TextFetcher
	llm    llm.Client
	flight singleflight.Group
}

func NewService(cfg ServiceConfig, store *cache.SafeCache, texts TextFetcher, model llm.Client) *Service {
	return &Service{
		cfg:   cfg,
		cache: store,
		texts: texts,
		llm:   model,
	}
}

// GetAnalysis returns the analysis for a book, computing and caching it on
// first request. A cached result is returned verbatim — same timestamp, no
// re-normalization. Text-fetch, model and normalization failures propagate
// with their original kind; a failed cache write does not fail the request.
func (s *Service) GetAnalysis(ctx context.Context, bookID string) (*AnalysisResult, error) {
	id := strings.TrimSpace(bookID)
	if id == "" {
		return nil, apperr.Validation("book ID is required")
	}

	logger := logging.L(ctx).With(zap.String("book_id", id))
	key := cache.AnalysisKey(id)

	if cached, ok := s.cache.Get(ctx, key); ok {
		var result AnalysisResult
		if err := json.Unmarshal(cached, &result); err == nil {
			logger.Info("analysis served from cache")
			return &result, nil
		}
		// Corrupted entry: drop it and recompute.
		logger.Warn("cached analysis entry corrupted, recomputing")
		s.cache.Delete(ctx, key)
	}

	v, err, shared := s.flight.Do(id, func() (any, error) {
		return s.computeAnalysis(ctx, id, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("analysis shared with concurrent request")
	}

	return v.(*AnalysisResult), nil
}

func (s *Service) computeAnalysis(ctx context.Context, id, key string) (*AnalysisResult, error) {
	logger := logging.L(ctx).With(zap.String("book_id", id))
	start := time.Now()

	text, err := s.texts.FetchText(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.ChatCompletion(ctx, &llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    analysisMessages(text),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	normalized, err := Normalize(resp.Text(), CountWords(text))
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		BookID:    id,
		Title:     normalized.Title,
		Author:    normalized.Author,
		Analysis:  *normalized,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	// Best-effort store, no expiry: analysis entries live until cleared.
	if payload, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, key, payload, 0)
	}

	logger.Info("analysis computed",
		zap.Int("word_count", result.Analysis.WordCount),
		zap.Int("characters", len(result.Analysis.KeyCharacters)),
		zap.Int("themes", len(result.Analysis.Themes)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// Chat answers a reader's question about a book, grounded in its analysis.
// The analysis is computed first if not cached.
func (s *Service) Chat(ctx context.Context, bookID, message string, history []llm.ChatMessage) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperr.Validation("message is required")
	}

	result, err := s.GetAnalysis(ctx, bookID)
	if err != nil {
		return "", err
	}

	resp, err := s.llm.ChatCompletion(ctx, &llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    chatMessages(result, history, message),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

// Status reports which cache entries exist for a book.
func (s *Service) Status(ctx context.Context, bookID string) (CacheStatus, error) {
	id := strings.TrimSpace(bookID)
	if id == "" {
		return CacheStatus{}, apperr.Validation("book ID is required")
	}
	return CacheStatus{
		BookTextCached: s.cache.Exists(ctx, cache.TextKey(id)),
		AnalysisCached: s.cache.Exists(ctx, cache.AnalysisKey(id)),
	}, nil
}

// Clear removes both cache entries for a book.
func (s *Service) Clear(ctx context.Context, bookID string) error {
	id := strings.TrimSpace(bookID)
	if id == "" {
		return apperr.Validation("book ID is required")
	}
	s.cache.Delete(ctx, cache.TextKey(id))
	s.cache.Delete(ctx, cache.AnalysisKey(id))
	return nil
}
