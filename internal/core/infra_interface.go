package core

import (
	"context"

	"github.com/learnloop-ai/learnloop/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a
// specific database.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateNotebook(ctx context.Context, nb *models.Notebook) error
	GetNotebookByID(ctx context.Context, id string) (*models.Notebook, error)
	ListNotebooksByUser(ctx context.Context, userID string) ([]models.Notebook, error)
	RenameNotebook(ctx context.Context, id, name string) error
	DeleteNotebook(ctx context.Context, id string) error

	CreateMaterial(ctx context.Context, mat *models.Material) error
	GetMaterialByID(ctx context.Context, id string) (*models.Material, error)
	ListMaterialsByNotebook(ctx context.Context, notebookID string) ([]models.Material, error)
	UpdateMaterialStatus(ctx context.Context, id string, status string) error
	DeleteMaterial(ctx context.Context, id string) error

	// ReplaceMaterialChunks atomically removes any existing chunks for the
	// material and inserts the given rows, returning the stored count.
	// Re-runs of the ingestion pipeline therefore never duplicate rows.
	ReplaceMaterialChunks(ctx context.Context, materialID string, chunks []models.MaterialChunk) (int, error)
	GetChunksByMaterial(ctx context.Context, materialID string) ([]models.MaterialChunk, error)
	SearchChunksByEmbedding(ctx context.Context, notebookID string, queryVec []float32, limit int) ([]models.MaterialChunk, error)
	SearchChunksByText(ctx context.Context, notebookID, query string, limit int) ([]models.MaterialChunk, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Keys are opaque storage references; the bucket is fixed per client.
type ObjectClient interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// EmbeddingProvider is one network call to the embedding backend.
// Document and query intents share dimensionality and error behavior.
type EmbeddingProvider interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
