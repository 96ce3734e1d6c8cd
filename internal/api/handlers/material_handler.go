package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/models"
)

const maxUploadBytes = 52 << 20 // 52 MB

// Ingestor schedules background processing for an uploaded material.
type Ingestor interface {
	Enqueue(materialID string) error
}

type MaterialHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	ingestor     Ingestor
	log          *zap.Logger
}

func NewMaterialHandler(dbclient core.DbClient, objectclient core.ObjectClient, ing Ingestor, log *zap.Logger) *MaterialHandler {
	return &MaterialHandler{dbclient: dbclient, objectclient: objectclient, ingestor: ing, log: log}
}

// Upload stores the file, records the material as pending, and queues
// it for ingestion. The response returns before processing starts.
func (h *MaterialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	nb, status := ownedNotebook(r.Context(), h.dbclient, chi.URLParam(r, "notebookID"))
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "file is empty", http.StatusBadRequest)
		return
	}
	if len(data) > maxUploadBytes {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	// Strip any path components from the client-supplied name.
	cleanFilename := filepath.Base(header.Filename)
	materialID := uuid.NewString()
	storageKey := fmt.Sprintf("notebooks/%s/%s/%s", nb.ID, materialID, cleanFilename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.objectclient.Upload(uploadCtx, storageKey, data, contentType); err != nil {
		h.log.Error("upload failed", zap.String("key", storageKey), zap.Error(err))
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	mat := &models.Material{
		ID:         materialID,
		NotebookID: nb.ID,
		Filename:   cleanFilename,
		StorageKey: storageKey,
		FileSize:   int64(len(data)),
		MimeType:   contentType,
		Status:     models.StatusPending,
	}
	if err := h.dbclient.CreateMaterial(uploadCtx, mat); err != nil {
		h.log.Error("material insert failed", zap.String("material_id", materialID), zap.Error(err))
		http.Error(w, "failed to store material metadata", http.StatusInternalServerError)
		return
	}

	if err := h.ingestor.Enqueue(materialID); err != nil {
		h.log.Error("enqueue failed", zap.String("material_id", materialID), zap.Error(err))
		http.Error(w, "ingestion queue is full, try again later", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, mat)
}

func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	nb, status := ownedNotebook(r.Context(), h.dbclient, chi.URLParam(r, "notebookID"))
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	materials, err := h.dbclient.ListMaterialsByNotebook(r.Context(), nb.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if materials == nil {
		materials = []models.Material{}
	}

	writeJSON(w, http.StatusOK, materials)
}

func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	mat, status := h.ownedMaterial(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeJSON(w, http.StatusOK, mat)
}

// Status reports only the processing state, for cheap client polling.
func (h *MaterialHandler) Status(w http.ResponseWriter, r *http.Request) {
	mat, status := h.ownedMaterial(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"material_id":       mat.ID,
		"processing_status": mat.Status,
	})
}

func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mat, status := h.ownedMaterial(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := h.dbclient.DeleteMaterial(r.Context(), mat.ID); err != nil {
		http.Error(w, "could not delete material", http.StatusInternalServerError)
		return
	}

	// The DB row is the source of truth; an orphaned object is only a
	// storage leak.
	if err := h.objectclient.Delete(r.Context(), mat.StorageKey); err != nil {
		h.log.Warn("object delete failed", zap.String("key", mat.StorageKey), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedMaterial resolves the material from the URL and verifies the
// requester owns its notebook.
func (h *MaterialHandler) ownedMaterial(r *http.Request) (*models.Material, int) {
	materialID := chi.URLParam(r, "materialID")
	if materialID == "" {
		return nil, http.StatusBadRequest
	}

	mat, err := h.dbclient.GetMaterialByID(r.Context(), materialID)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if mat == nil {
		return nil, http.StatusNotFound
	}

	if _, status := ownedNotebook(r.Context(), h.dbclient, mat.NotebookID); status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return nil, status
		}
		return nil, http.StatusNotFound
	}
	return mat, http.StatusOK
}
