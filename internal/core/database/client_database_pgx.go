package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/learnloop-ai/learnloop/internal/config"
	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db  *sql.DB
	log *zap.Logger
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*DatabaseClient, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Info("database connected and bootstrapped")
	return &DatabaseClient{db: sqlDB, log: log}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Notebooks

func (c *DatabaseClient) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	if nb == nil {
		return errors.New("nil notebook")
	}
	const q = `
		INSERT INTO notebooks (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, nb.ID, nb.UserID, nb.Name)
	return err
}

func (c *DatabaseClient) GetNotebookByID(ctx context.Context, id string) (*models.Notebook, error) {
	const q = `
		SELECT id, user_id, name, created_at, updated_at
		FROM notebooks WHERE id = $1
	`
	var nb models.Notebook
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&nb.ID, &nb.UserID, &nb.Name, &nb.CreatedAt, &nb.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &nb, nil
}

func (c *DatabaseClient) ListNotebooksByUser(ctx context.Context, userID string) ([]models.Notebook, error) {
	const q = `
		SELECT id, user_id, name, created_at, updated_at
		FROM notebooks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notebook
	for rows.Next() {
		var nb models.Notebook
		if err := rows.Scan(&nb.ID, &nb.UserID, &nb.Name, &nb.CreatedAt, &nb.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) RenameNotebook(ctx context.Context, id, name string) error {
	const q = `UPDATE notebooks SET name = $2, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notebook not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteNotebook(ctx context.Context, id string) error {
	// Materials and chunks cascade.
	const q = `DELETE FROM notebooks WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// Materials

func (c *DatabaseClient) CreateMaterial(ctx context.Context, mat *models.Material) error {
	if mat == nil {
		return errors.New("nil material")
	}
	const q = `
		INSERT INTO materials
			(id, notebook_id, filename, storage_key, file_size, mime_type, processing_status, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now())
	`
	_, err := c.db.ExecContext(ctx, q,
		mat.ID, mat.NotebookID, mat.Filename, mat.StorageKey, mat.FileSize, mat.MimeType, mat.Status)
	return err
}

func (c *DatabaseClient) GetMaterialByID(ctx context.Context, id string) (*models.Material, error) {
	const q = `
		SELECT id, notebook_id, filename, storage_key, file_size, mime_type, processing_status, created_at
		FROM materials
		WHERE id = $1
	`
	var m models.Material
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&m.ID, &m.NotebookID, &m.Filename, &m.StorageKey, &m.FileSize, &m.MimeType, &m.Status, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *DatabaseClient) ListMaterialsByNotebook(ctx context.Context, notebookID string) ([]models.Material, error) {
	const q = `
		SELECT id, notebook_id, filename, storage_key, file_size, mime_type, processing_status, created_at
		FROM materials
		WHERE notebook_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, notebookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(
			&m.ID, &m.NotebookID, &m.Filename, &m.StorageKey, &m.FileSize, &m.MimeType, &m.Status, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateMaterialStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE materials
		SET processing_status = $2
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("material not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteMaterial(ctx context.Context, id string) error {
	// Chunks cascade.
	const q = `DELETE FROM materials WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// Chunks

// ReplaceMaterialChunks removes any existing chunks for the material and
// inserts the given rows in one transaction, so pipeline re-runs never
// leave duplicates behind.
func (c *DatabaseClient) ReplaceMaterialChunks(ctx context.Context, materialID string, chunks []models.MaterialChunk) (int, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM material_chunks WHERE material_id = $1`, materialID); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("delete existing chunks: %w", err)
	}

	const q = `
		INSERT INTO material_chunks
			(id, material_id, content, embedding, chunk_index, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]

		metaJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}

		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, materialID, ch.Content, vec, ch.ChunkIndex, metaJSON,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (c *DatabaseClient) GetChunksByMaterial(ctx context.Context, materialID string) ([]models.MaterialChunk, error) {
	const q = `
		SELECT id, material_id, content, embedding, chunk_index, metadata, created_at
		FROM material_chunks
		WHERE material_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SearchChunksByEmbedding finds the top-k chunks in a notebook by cosine
// distance to the query vector.
func (c *DatabaseClient) SearchChunksByEmbedding(ctx context.Context, notebookID string, queryVec []float32, limit int) ([]models.MaterialChunk, error) {
	const q = `
		SELECT ch.id, ch.material_id, ch.content, ch.embedding, ch.chunk_index, ch.metadata, ch.created_at
		FROM material_chunks ch
		JOIN materials m ON m.id = ch.material_id
		WHERE m.notebook_id = $1
		ORDER BY ch.embedding <=> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, notebookID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SearchChunksByText is a plain substring search over stored chunk text.
func (c *DatabaseClient) SearchChunksByText(ctx context.Context, notebookID, query string, limit int) ([]models.MaterialChunk, error) {
	const q = `
		SELECT ch.id, ch.material_id, ch.content, ch.embedding, ch.chunk_index, ch.metadata, ch.created_at
		FROM material_chunks ch
		JOIN materials m ON m.id = ch.material_id
		WHERE m.notebook_id = $1 AND ch.content ILIKE '%' || $2 || '%'
		ORDER BY ch.material_id, ch.chunk_index
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, notebookID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]models.MaterialChunk, error) {
	var out []models.MaterialChunk
	for rows.Next() {
		var (
			ch       models.MaterialChunk
			emb      pgvector.Vector
			metaJSON []byte
		)
		if err := rows.Scan(
			&ch.ID, &ch.MaterialID, &ch.Content, &emb, &ch.ChunkIndex, &metaJSON, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ch.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
