package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/core/chunk"
	"github.com/learnloop-ai/learnloop/internal/core/embed"
	"github.com/learnloop-ai/learnloop/internal/core/extract"
	"github.com/learnloop-ai/learnloop/internal/models"
)

// Result summarizes one completed pipeline run.
type Result struct {
	MaterialID          string           `json:"material_id"`
	Status              string           `json:"status"`
	ChunksCreated       int              `json:"chunks_created"`
	EmbeddingsGenerated int              `json:"embeddings_generated"`
	Extraction          extract.Metadata `json:"extraction"`
}

// Processor runs the full ingestion pipeline for one material:
// download, extract, chunk, embed, store. It owns all status
// transitions after creation.
type Processor struct {
	db        core.DbClient
	storage   core.ObjectClient
	extractor *extract.Service
	chunker   *chunk.Chunker
	embedder  *embed.Service
	log       *zap.Logger
}

func NewProcessor(
	db core.DbClient,
	storage core.ObjectClient,
	extractor *extract.Service,
	chunker *chunk.Chunker,
	embedder *embed.Service,
	log *zap.Logger,
) *Processor {
	return &Processor{
		db:        db,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		log:       log,
	}
}

// Process ingests one material end to end. Re-running for the same
// material is safe: stored chunks are replaced wholesale, never
// appended.
//
// Status writes are best effort; a failed write is logged and the
// pipeline continues, since the stored chunks are the real output.
func (p *Processor) Process(ctx context.Context, materialID string) (*Result, error) {
	log := p.log.With(zap.String("material_id", materialID))
	log.Info("starting material processing")

	p.setStatus(ctx, materialID, models.StatusProcessing)

	mat, err := p.db.GetMaterialByID(ctx, materialID)
	if err != nil {
		// Unknown material: nothing to flip to failed.
		return nil, fmt.Errorf("load material: %w", err)
	}
	if mat == nil {
		return nil, fmt.Errorf("material not found: %s", materialID)
	}

	data, err := p.storage.Download(ctx, mat.StorageKey)
	if err != nil {
		return nil, p.fail(ctx, materialID, fmt.Errorf("download material: %w", err))
	}

	text, meta, err := p.extractor.Extract(data, mat.MimeType, mat.Filename)
	if err != nil {
		return nil, p.fail(ctx, materialID, fmt.Errorf("extract text: %w", err))
	}
	log.Info("extracted text",
		zap.String("format", meta.Format),
		zap.Int("chars", len(text)))

	segments, err := p.chunker.ChunkText(text, meta.Format)
	if err != nil {
		return nil, p.fail(ctx, materialID, fmt.Errorf("chunk text: %w", err))
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts, true)
	if err != nil {
		return nil, p.fail(ctx, materialID, fmt.Errorf("embed segments: %w", err))
	}

	// Segments whose embedding was lost are dropped, not stored.
	rows := make([]models.MaterialChunk, 0, len(segments))
	for i, seg := range segments {
		if vectors[i] == nil {
			continue
		}
		rows = append(rows, models.MaterialChunk{
			ID:         uuid.NewString(),
			MaterialID: materialID,
			Content:    seg.Content,
			Embedding:  vectors[i],
			ChunkIndex: seg.Index,
			Metadata:   chunkMetadata(seg),
		})
	}
	if len(rows) == 0 {
		return nil, p.fail(ctx, materialID, errors.New("no embeddable chunks produced"))
	}

	stored, err := p.db.ReplaceMaterialChunks(ctx, materialID, rows)
	if err != nil {
		return nil, p.fail(ctx, materialID, fmt.Errorf("store chunks: %w", err))
	}

	p.setStatus(ctx, materialID, models.StatusCompleted)
	log.Info("material processing completed",
		zap.Int("segments", len(segments)),
		zap.Int("stored", stored))

	return &Result{
		MaterialID:          materialID,
		Status:              models.StatusCompleted,
		ChunksCreated:       len(segments),
		EmbeddingsGenerated: stored,
		Extraction:          meta,
	}, nil
}

func chunkMetadata(seg chunk.Segment) map[string]any {
	meta := map[string]any{
		"chunk_index": seg.Index,
		"token_count": seg.Metadata.TokenCount,
	}
	if seg.Metadata.PageNumber > 0 {
		meta["page_number"] = seg.Metadata.PageNumber
	}
	if seg.Metadata.SectionHeader != "" {
		meta["section_header"] = seg.Metadata.SectionHeader
	}
	if seg.Metadata.MaterialFormat != "" {
		meta["material_format"] = seg.Metadata.MaterialFormat
	}
	return meta
}

// fail marks the material failed and returns the original error.
func (p *Processor) fail(ctx context.Context, materialID string, err error) error {
	p.log.Error("material processing failed",
		zap.String("material_id", materialID),
		zap.Error(err))
	p.setStatus(ctx, materialID, models.StatusFailed)
	return err
}

func (p *Processor) setStatus(ctx context.Context, materialID, status string) {
	if err := p.db.UpdateMaterialStatus(ctx, materialID, status); err != nil {
		p.log.Warn("status update failed",
			zap.String("material_id", materialID),
			zap.String("status", status),
			zap.Error(err))
	}
}
