// Package server exposes the HTTP API: chat turns, file uploads,
// file and folder management, and semantic search.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"claraai/internal/app"
	"claraai/internal/util"
	"claraai/pkg/domain"
	"claraai/pkg/rag"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	TrustedProxies *util.TrustedProxies
}

// Server exposes the tutoring and document endpoints.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.withRateLimit(s.handleChat))
	s.mux.HandleFunc("DELETE /api/chat/{conversationId}", s.handleClearConversation)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/files", s.handleListFiles)
	s.mux.HandleFunc("GET /api/files/{id}/download", s.handleDownloadFile)
	s.mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)
	s.mux.HandleFunc("POST /api/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	s.mux.HandleFunc("GET /api/folders", s.handleListFolders)
	s.mux.HandleFunc("DELETE /api/folders/{id}", s.handleDeleteFolder)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.app.Limiter != nil {
			// Quota is per user; anonymous requests share a per-IP bucket.
			key := userID(r)
			if key == "" {
				key = util.ClientIP(r, s.trustedProxies)
			}
			if !s.app.Limiter.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r)
	}
}

// userID comes from the X-User-Id header; the API sits behind a
// gateway that authenticates and injects it.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	FolderID       string `json:"folderId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = user
	}
	result := s.app.Tutor.Respond(r.Context(), user, conversationID, req.Message, req.FolderID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")
	if err := s.app.Tutor.ClearConversation(r.Context(), conversationID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	folderID := r.FormValue("folderId")

	result, err := s.app.Engine.IngestFile(r.Context(), data, header.Filename, user, folderID)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrDuplicateFile):
			writeError(w, http.StatusConflict, "file already exists")
		case errors.Is(err, rag.ErrEmptyContent):
			writeError(w, http.StatusUnprocessableEntity, "no content extracted from file")
		default:
			writeError(w, http.StatusInternalServerError, "failed to process file")
		}
		return
	}

	if s.app.Archive != nil {
		contentType := header.Header.Get("Content-Type")
		if err := s.app.Archive.SaveUpload(r.Context(), user, result.FileID, header.Filename,
			bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			// Archival is best effort; the file is already indexed.
			util.LoggerFromContext(r.Context()).Warn("failed to archive upload",
				"file_id", result.FileID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	files, err := s.app.Engine.ListFiles(r.Context(), user, r.URL.Query().Get("folderId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// findFile resolves a file record by id so archive operations know
// the original filename.
func (s *Server) findFile(r *http.Request, user, fileID string) (domain.FileRecord, bool) {
	files, err := s.app.Engine.ListFiles(r.Context(), user, "")
	if err != nil {
		return domain.FileRecord{}, false
	}
	for _, f := range files {
		if f.ID == fileID {
			return f, true
		}
	}
	return domain.FileRecord{}, false
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	if s.app.Archive == nil {
		writeError(w, http.StatusNotFound, "original files are not archived")
		return
	}
	fileID := r.PathValue("id")
	record, ok := s.findFile(r, user, fileID)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	url, err := s.app.Archive.PresignDownload(r.Context(), user, fileID, record.Name, 15*time.Minute)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate download link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresInSeconds": 900})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	fileID := r.PathValue("id")
	record, archived := s.findFile(r, user, fileID)
	deleted, err := s.app.Engine.DeleteFile(r.Context(), fileID, user)
	if err != nil {
		if errors.Is(err, rag.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	if s.app.Archive != nil && archived {
		if err := s.app.Archive.DeleteUpload(r.Context(), user, fileID, record.Name); err != nil {
			util.LoggerFromContext(r.Context()).Warn("failed to delete archived upload",
				"file_id", fileID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedChunks": deleted})
}

type searchRequest struct {
	Query    string `json:"query"`
	FolderID string `json:"folderId"`
	TopK     int    `json:"topK"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	results, err := s.app.Engine.Search(r.Context(), req.Query, user, req.FolderID, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type createFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	folder, err := s.app.Engine.CreateFolder(r.Context(), user, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, rag.ErrFolderNameRequired) {
			writeError(w, http.StatusBadRequest, "folder name required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create folder")
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	folders, err := s.app.Engine.ListFolders(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list folders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return
	}
	folderID := r.PathValue("id")
	deletedFiles, err := s.app.Engine.DeleteFolder(r.Context(), folderID, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete folder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedFiles": deletedFiles})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}
