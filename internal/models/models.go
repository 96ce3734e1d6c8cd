package models

import (
	"time"
)

// Material processing status values. Transitions only move
// pending -> processing -> completed | failed; the terminal states
// are never left.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Notebook is a container for learning materials owned by one user.
type Notebook struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Material represents one uploaded source document. The orchestrator is
// the only writer of Status after creation.
type Material struct {
	ID         string    `db:"id" json:"id"`
	NotebookID string    `db:"notebook_id" json:"notebook_id"`
	Filename   string    `db:"filename" json:"filename"`
	StorageKey string    `db:"storage_key" json:"storage_key"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	Status     string    `db:"processing_status" json:"processing_status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MaterialChunk is one stored text segment of a material, paired with
// its embedding. Chunks without a successful embedding are never
// persisted, so Embedding is always 768 floats in the database.
type MaterialChunk struct {
	ID         string         `db:"id" json:"id"`
	MaterialID string         `db:"material_id" json:"material_id"`
	Content    string         `db:"content" json:"content"`
	Embedding  []float32      `db:"embedding" json:"-"`
	ChunkIndex int            `db:"chunk_index" json:"chunk_index"`
	Metadata   map[string]any `db:"metadata" json:"metadata"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
