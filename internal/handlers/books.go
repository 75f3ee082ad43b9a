// Package handlers implements the thin HTTP surface over the analysis
// pipeline. All real decisions live in the services; handlers decode, call,
// and encode.
package handlers

import (
	"encoding/json"
	"net/http"

	"litlens/internal/analysis"
	"litlens/internal/apperr"
	"litlens/internal/llm"
	"litlens/pkg/logging"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BookHandler holds dependencies for the /api/books routes.
type BookHandler struct {
	Service *analysis.Service
	Texts   analysis.TextFetcher
}

func NewBookHandler(service *analysis.Service, texts analysis.TextFetcher) *BookHandler {
	return &BookHandler{Service: service, Texts: texts}
}

type chatRequest struct {
	Message string            `json:"message"`
	History []llm.ChatMessage `json:"history,omitempty"`
}

type chatResponse struct {
	BookID string `json:"bookId"`
	Reply  string `json:"reply"`
}

type textResponse struct {
	BookID string `json:"bookId"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// GetAnalysis handles GET /api/books/{id}/analysis.
func (h *BookHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	result, err := h.Service.GetAnalysis(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetText handles GET /api/books/{id}/text.
func (h *BookHandler) GetText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	text, err := h.Texts.FetchText(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, textResponse{
		BookID: id,
		Text:   text,
		Length: len(text),
	})
}

// Chat handles POST /api/books/{id}/chat.
func (h *BookHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body"))
		return
	}

	reply, err := h.Service.Chat(ctx, id, req.Message, req.History)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chatResponse{BookID: id, Reply: reply})
}

// CacheStatus handles GET /api/books/{id}/cache.
func (h *BookHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	status, err := h.Service.Status(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// ClearCache handles DELETE /api/books/{id}/cache.
func (h *BookHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.Service.Clear(ctx, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"bookId": id, "cleared": true})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps an error onto the stable taxonomy: kind + human-readable
// message out, full cause into the server log only.
func (h *BookHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)

	logger := logging.L(r.Context())
	logger.Warn("request failed",
		zap.String("error_kind", string(apperr.KindOf(err))),
		zap.Int("status", status),
		zap.Error(err),
	)

	h.writeJSON(w, status, errorBody{
		Error:   string(apperr.KindOf(err)),
		Message: apperr.Message(err),
	})
}

// writeJSON sends JSON responses consistently.
func (h *BookHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
