package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/core/embed"
)

const defaultRetrievalLimit = 5

type ChatHandler struct {
	dbclient core.DbClient
	embedder *embed.Service
	llm      core.LLMProvider
}

func NewChatHandler(dbclient core.DbClient, embedder *embed.Service, llm core.LLMProvider) *ChatHandler {
	return &ChatHandler{dbclient: dbclient, embedder: embedder, llm: llm}
}

type chatRequest struct {
	Query string `json:"query"`
}

// Query answers a question over one notebook's materials: the query is
// embedded, the closest chunks retrieved, and an answer generated
// grounded only on that context.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nb, status := ownedNotebook(ctx, h.dbclient, chi.URLParam(r, "notebookID"))
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	queryVec, err := h.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		http.Error(w, "embedding failed", http.StatusBadGateway)
		return
	}

	chunks, err := h.dbclient.SearchChunksByEmbedding(ctx, nb.ID, queryVec, defaultRetrievalLimit)
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	if len(chunks) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"answer":  "This notebook has no processed materials to answer from yet.",
			"sources": []string{},
		})
		return
	}

	var sb strings.Builder
	sources := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		sb.WriteString(ch.Content)
		sb.WriteString("\n---\n")
		sources = append(sources, ch.MaterialID)
	}

	systemPrompt := "You are a study assistant answering based only on the provided notebook materials. If the materials do not contain the answer, say so."
	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", sb.String(), req.Query)

	answer, err := h.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		http.Error(w, "answer generation failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  answer,
		"sources": sources,
	})
}

// Search runs a plain text match over a notebook's stored chunks.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nb, status := ownedNotebook(ctx, h.dbclient, chi.URLParam(r, "notebookID"))
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}

	limit := defaultRetrievalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	chunks, err := h.dbclient.SearchChunksByText(ctx, nb.ID, query, limit)
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	type searchResult struct {
		MaterialID string         `json:"material_id"`
		ChunkIndex int            `json:"chunk_index"`
		Content    string         `json:"content"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}
	results := make([]searchResult, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, searchResult{
			MaterialID: ch.MaterialID,
			ChunkIndex: ch.ChunkIndex,
			Content:    ch.Content,
			Metadata:   ch.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}
