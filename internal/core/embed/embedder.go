package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnloop-ai/learnloop/internal/core"
)

// ErrAllFailed is returned when no item in a batch obtained an
// embedding. Per-item failures short of that are tolerated as partial
// loss and surface as nil slots.
var ErrAllFailed = errors.New("all embedding generations failed")

// Config tunes batching and retry behavior.
type Config struct {
	// BatchSize is the provider window size; texts are processed in
	// sequential windows of at most this many items.
	BatchSize int
	// MaxAttempts bounds per-item attempts when retry is allowed.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	// Dimension is the required vector length; any other length from the
	// provider fails that item.
	Dimension int
	// Concurrency caps concurrent provider calls within one window.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Dimension:   768,
		Concurrency: 4,
	}
}

// Service embeds batches of segment texts through an external provider,
// tolerating per-item failure.
type Service struct {
	provider core.EmbeddingProvider
	cfg      Config
	log      *zap.Logger
}

func NewService(provider core.EmbeddingProvider, cfg Config, log *zap.Logger) *Service {
	return &Service{provider: provider, cfg: cfg, log: log}
}

// EmbedBatch embeds texts and returns one vector per input, in input
// order. Blank inputs are never sent to the provider and stay nil; items
// that exhaust their retries stay nil as well. The call errors only on
// total loss.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, allowRetry bool) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	valid := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid texts to embed", ErrAllFailed)
	}

	results := make([][]float32, len(texts))

	for ws := 0; ws < len(valid); ws += s.cfg.BatchSize {
		we := ws + s.cfg.BatchSize
		if we > len(valid) {
			we = len(valid)
		}
		window := valid[ws:we]

		s.log.Info("processing embedding batch",
			zap.Int("batch", ws/s.cfg.BatchSize+1),
			zap.Int("texts", len(window)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for _, idx := range window {
			g.Go(func() error {
				vec, err := s.embedOne(gctx, texts[idx], allowRetry)
				if err != nil {
					// Partial loss: leave the slot nil, keep going.
					s.log.Error("embedding generation failed", zap.Int("index", idx), zap.Error(err))
					return nil
				}
				results[idx] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	succeeded := 0
	for _, v := range results {
		if v != nil {
			succeeded++
		}
	}
	s.log.Info("embedding generation complete",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))

	if succeeded == 0 {
		return nil, ErrAllFailed
	}
	return results, nil
}

// EmbedQuery embeds a search query with the provider's query intent.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("cannot generate embedding for empty query")
	}

	vec, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != s.cfg.Dimension {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vec), s.cfg.Dimension)
	}
	return vec, nil
}

// embedOne embeds a single text, retrying with exponential backoff when
// allowed. Backoff sleeps block only the calling goroutine.
func (s *Service) embedOne(ctx context.Context, text string, allowRetry bool) ([]float32, error) {
	attempts := 1
	if allowRetry {
		attempts = s.cfg.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := s.provider.EmbedDocument(ctx, text)
		if err == nil && len(vec) != s.cfg.Dimension {
			err = fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vec), s.cfg.Dimension)
		}
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := s.cfg.BaseDelay << attempt
		s.log.Warn("embedding attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
