package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claraai/internal/app"
	"claraai/pkg/ai"
	"claraai/pkg/rag"
	"claraai/pkg/tutor"
	"claraai/pkg/vectorstore"
)

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) EmbedText(_ context.Context, text, _ string) ([]float32, error) {
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = 0.01
	}
	// Spread texts across axes so distinct content stays distinct.
	vec[len(text)%f.dim] = 1.0
	return vec, nil
}

type echoGenerator struct{}

func (echoGenerator) Complete(_ context.Context, messages []ai.ChatMessage, _ int, _ float64) (string, error) {
	last := messages[len(messages)-1]
	return "You asked: " + last.Content, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine, err := rag.NewEngine(rag.Config{
		Embedder:     fixedEmbedder{dim: 8},
		Index:        vectorstore.NewMemoryIndex(),
		EmbeddingDim: 8,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	tut, err := tutor.New(tutor.Config{
		Retriever: engine,
		Generator: echoGenerator{},
	})
	if err != nil {
		t.Fatalf("new tutor: %v", err)
	}
	srv, err := New(Config{App: &app.App{Engine: engine, Tutor: tut}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, srv *Server, userID, filename, content, folderID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if folderID != "" {
		if err := mw.WriteField("folderId", folderID); err != nil {
			t.Fatalf("write folder field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", userID)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatRequiresUser(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", "u1", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatTurn(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", "u1", map[string]string{"message": "what is ATP"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}
	if !strings.Contains(result.Response, "what is ATP") {
		t.Fatalf("response = %q", result.Response)
	}
}

func TestUploadListDeleteFile(t *testing.T) {
	srv := newTestServer(t)

	rec := uploadFile(t, srv, "u1", "notes.txt", "mitochondria are organelles that produce energy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ingest struct {
		FileID          string `json:"fileId"`
		ChunksProcessed int    `json:"chunksProcessed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ingest); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if ingest.FileID == "" || ingest.ChunksProcessed == 0 {
		t.Fatalf("ingest = %+v", ingest)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/files", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Files []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Files) != 1 || list.Files[0].ID != ingest.FileID {
		t.Fatalf("files = %+v", list.Files)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/files/"+ingest.FileID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/files/"+ingest.FileID, "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUploadDuplicateConflict(t *testing.T) {
	srv := newTestServer(t)
	content := "the krebs cycle happens in the mitochondrial matrix"

	if rec := uploadFile(t, srv, "u1", "a.txt", content, ""); rec.Code != http.StatusOK {
		t.Fatalf("first upload status = %d", rec.Code)
	}
	if rec := uploadFile(t, srv, "u1", "b.txt", content, ""); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate upload status = %d, want 409", rec.Code)
	}
}

func TestUploadEmptyFile(t *testing.T) {
	srv := newTestServer(t)
	if rec := uploadFile(t, srv, "u1", "blank.txt", "   ", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty upload status = %d, want 422", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	if rec := uploadFile(t, srv, "u1", "bio.txt", "osmosis moves water across membranes", ""); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/search", "u1", map[string]any{"query": "osmosis"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Results []struct {
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Results) == 0 {
		t.Fatalf("no search results")
	}
}

func TestFolderEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/folders", "u1", map[string]string{"name": "Biology", "description": "cells"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var folder struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &folder); err != nil {
		t.Fatalf("decode folder: %v", err)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/api/folders", "u1", map[string]string{"name": "  "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank folder status = %d, want 400", rec.Code)
	}

	for i := 0; i < 2; i++ {
		content := fmt.Sprintf("folder file number %d with unique content", i)
		if rec := uploadFile(t, srv, "u1", fmt.Sprintf("f%d.txt", i), content, folder.ID); rec.Code != http.StatusOK {
			t.Fatalf("folder upload %d status = %d", i, rec.Code)
		}
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/folders", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list folders status = %d", rec.Code)
	}
	var folders struct {
		Folders []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"folders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &folders); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(folders.Folders) != 1 || folders.Folders[0].Name != "Biology" {
		t.Fatalf("folders = %+v", folders.Folders)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/folders/"+folder.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete folder status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var deleted struct {
		DeletedFiles int `json:"deletedFiles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if deleted.DeletedFiles != 2 {
		t.Fatalf("deletedFiles = %d, want 2", deleted.DeletedFiles)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/files", "u1", nil)
	var remaining struct {
		Files []json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode remaining: %v", err)
	}
	if len(remaining.Files) != 0 {
		t.Fatalf("remaining files = %d, want 0", len(remaining.Files))
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"})
	var body struct {
		Error     string `json:"error"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("error message missing")
	}
	if body.RequestID == "" {
		t.Fatalf("requestId missing from error body")
	}
	if rec.Header().Get("X-Request-Id") != body.RequestID {
		t.Fatalf("header id %q != body id %q", rec.Header().Get("X-Request-Id"), body.RequestID)
	}
}

type stubArchive struct {
	saved   []string
	deleted []string
}

func (a *stubArchive) SaveUpload(_ context.Context, userID, fileID, filename string, _ io.Reader, _ int64, _ string) error {
	a.saved = append(a.saved, userID+"/"+fileID+"/"+filename)
	return nil
}

func (a *stubArchive) PresignDownload(_ context.Context, userID, fileID, filename string, _ time.Duration) (string, error) {
	return "https://archive.test/" + userID + "/" + fileID + "/" + filename, nil
}

func (a *stubArchive) DeleteUpload(_ context.Context, userID, fileID, filename string) error {
	a.deleted = append(a.deleted, userID+"/"+fileID+"/"+filename)
	return nil
}

func TestDownloadWithoutArchive(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/files/abc/download", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadAndArchiveCleanup(t *testing.T) {
	srv := newTestServer(t)
	archive := &stubArchive{}
	srv.app.Archive = archive

	rec := uploadFile(t, srv, "u1", "notes.txt", "the mitochondria is the powerhouse of the cell", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded struct {
		FileID string `json:"fileId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if len(archive.saved) != 1 {
		t.Fatalf("saved = %v, want one entry", archive.saved)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/files/"+uploaded.FileID+"/download", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", rec.Code, rec.Body.String())
	}
	var dl struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dl); err != nil {
		t.Fatalf("decode download response: %v", err)
	}
	if !strings.Contains(dl.URL, "notes.txt") {
		t.Fatalf("url = %q, want filename in presigned url", dl.URL)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/files/"+uploaded.FileID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(archive.deleted) != 1 || !strings.Contains(archive.deleted[0], "notes.txt") {
		t.Fatalf("deleted = %v, want the archived object removed", archive.deleted)
	}
}
