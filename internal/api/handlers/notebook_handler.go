package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/learnloop-ai/learnloop/internal/api/middlewares"
	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/models"
)

type NotebookHandler struct {
	dbclient core.DbClient
}

func NewNotebookHandler(dbclient core.DbClient) *NotebookHandler {
	return &NotebookHandler{dbclient: dbclient}
}

type notebookRequest struct {
	Name string `json:"name"`
}

func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req notebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	nb := &models.Notebook{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   req.Name,
	}
	if err := h.dbclient.CreateNotebook(r.Context(), nb); err != nil {
		http.Error(w, "could not create notebook", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, nb)
}

func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	notebooks, err := h.dbclient.ListNotebooksByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if notebooks == nil {
		notebooks = []models.Notebook{}
	}

	writeJSON(w, http.StatusOK, notebooks)
}

func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	nb, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (h *NotebookHandler) Rename(w http.ResponseWriter, r *http.Request) {
	nb, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req notebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := h.dbclient.RenameNotebook(r.Context(), nb.ID, req.Name); err != nil {
		http.Error(w, "could not rename notebook", http.StatusInternalServerError)
		return
	}

	nb.Name = req.Name
	writeJSON(w, http.StatusOK, nb)
}

func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	nb, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.dbclient.DeleteNotebook(r.Context(), nb.ID); err != nil {
		http.Error(w, "could not delete notebook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// owned loads the notebook from the URL and verifies the requester owns
// it, writing the error response itself when not.
func (h *NotebookHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Notebook, bool) {
	nb, status := ownedNotebook(r.Context(), h.dbclient, chi.URLParam(r, "notebookID"))
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return nil, false
	}
	return nb, true
}

// ownedNotebook resolves a notebook and checks it belongs to the
// context user. Foreign notebooks read as not found.
func ownedNotebook(ctx context.Context, dbclient core.DbClient, notebookID string) (*models.Notebook, int) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, http.StatusUnauthorized
	}
	if notebookID == "" {
		return nil, http.StatusBadRequest
	}

	nb, err := dbclient.GetNotebookByID(ctx, notebookID)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if nb == nil || nb.UserID != userID {
		return nil, http.StatusNotFound
	}
	return nb, http.StatusOK
}
