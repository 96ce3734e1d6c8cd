package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnloop-ai/learnloop/internal/config"
	"github.com/learnloop-ai/learnloop/internal/core/chunk"
	db "github.com/learnloop-ai/learnloop/internal/core/database"
	"github.com/learnloop-ai/learnloop/internal/core/embed"
	"github.com/learnloop-ai/learnloop/internal/core/extract"
	"github.com/learnloop-ai/learnloop/internal/core/ingest"
	"github.com/learnloop-ai/learnloop/internal/core/llm"
	objectclient "github.com/learnloop-ai/learnloop/internal/core/object-client"
)

// App owns every long-lived component and wires them together.
type App struct {
	DBClient *db.DatabaseClient
	Queue    *ingest.Queue
	Server   *Server

	embedder *llm.GeminiEmbedder
	genLLM   *llm.GeminiLLM
	log      *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(initCtx, cfg, log)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	geminiEmbedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	genLLM, err := llm.NewGeminiLLM(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		_ = geminiEmbedder.Close()
		_ = dbClient.Close()
		return nil, fmt.Errorf("init llm: %w", err)
	}

	tokenizer, err := chunk.NewTiktokenTokenizer()
	if err != nil {
		_ = genLLM.Close()
		_ = geminiEmbedder.Close()
		_ = dbClient.Close()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}

	chunker := chunk.New(tokenizer, chunk.Config{
		MinTokens:     cfg.MinChunkTokens,
		MaxTokens:     cfg.MaxChunkTokens,
		OverlapTokens: cfg.OverlapTokens,
	}, log)

	embedder := embed.NewService(geminiEmbedder, embed.Config{
		BatchSize:   cfg.EmbedBatchSize,
		MaxAttempts: cfg.EmbedMaxAttempts,
		BaseDelay:   cfg.EmbedBaseDelay,
		Dimension:   cfg.EmbedDim,
		Concurrency: cfg.EmbedConcurrency,
	}, log)

	processor := ingest.NewProcessor(dbClient, objClient, extract.NewService(log), chunker, embedder, log)

	queue, err := ingest.NewQueue(processor, ingest.QueueConfig{
		Workers:        cfg.IngestWorkers,
		QueueSize:      cfg.IngestQueueSize,
		MaxAttempts:    cfg.IngestMaxAttempts,
		RetryDelay:     cfg.IngestRetryDelay,
		ProcessTimeout: cfg.ProcessTimeout,
	}, log)
	if err != nil {
		_ = genLLM.Close()
		_ = geminiEmbedder.Close()
		_ = dbClient.Close()
		return nil, fmt.Errorf("init ingest queue: %w", err)
	}

	server := NewServer(cfg, dbClient, objClient, queue, embedder, genLLM, log)

	return &App{
		DBClient: dbClient,
		Queue:    queue,
		Server:   server,
		embedder: geminiEmbedder,
		genLLM:   genLLM,
		log:      log,
	}, nil
}

// Close tears components down in reverse dependency order.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Release()
	}
	if a.genLLM != nil {
		_ = a.genLLM.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
