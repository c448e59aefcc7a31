package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"calling-journal-go/internal/model"
	"calling-journal-go/internal/service"

	"github.com/gin-gonic/gin"
)

// fakeEntryService 是 EntryService 的内存实现，按 (userID, date) 存储条目。
type fakeEntryService struct {
	nextID  uint
	entries map[string]*model.JournalEntry
}

func newFakeEntryService() *fakeEntryService {
	return &fakeEntryService{entries: make(map[string]*model.JournalEntry)}
}

func (s *fakeEntryService) key(userID uint, date string) string {
	return fmt.Sprintf("%d|%s", userID, date)
}

func (s *fakeEntryService) validate(date string) error {
	if len(date) != 10 {
		return service.ErrInvalidDate
	}
	return nil
}

func (s *fakeEntryService) Get(userID uint, date string) (*model.JournalEntry, error) {
	if err := s.validate(date); err != nil {
		return nil, err
	}
	entry, ok := s.entries[s.key(userID, date)]
	if !ok {
		return nil, service.ErrEntryNotFound
	}
	return entry, nil
}

func (s *fakeEntryService) List(userID uint, _, _ int) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeEntryService) Create(userID uint, input service.EntryInput) (*model.JournalEntry, error) {
	if err := s.validate(input.Date); err != nil {
		return nil, err
	}
	key := s.key(userID, input.Date)
	if _, ok := s.entries[key]; ok {
		return nil, service.ErrEntryExists
	}
	s.nextID++
	entry := &model.JournalEntry{
		ID:      s.nextID,
		UserID:  userID,
		Date:    input.Date,
		Title:   input.Title,
		Content: input.Content,
		Mood:    input.Mood,
	}
	if entry.Title == "" {
		entry.Title = model.DefaultEntryTitle
	}
	if entry.Mood == "" {
		entry.Mood = model.DefaultEntryMood
	}
	s.entries[key] = entry
	return entry, nil
}

func (s *fakeEntryService) Update(userID uint, date string, update service.EntryUpdate) (*model.JournalEntry, error) {
	entry, err := s.Get(userID, date)
	if err != nil {
		return nil, err
	}
	if update.Title != nil {
		entry.Title = *update.Title
	}
	if update.Content != nil {
		entry.Content = *update.Content
	}
	return entry, nil
}

func (s *fakeEntryService) Delete(userID uint, date string) error {
	if _, err := s.Get(userID, date); err != nil {
		return err
	}
	delete(s.entries, s.key(userID, date))
	return nil
}

func (s *fakeEntryService) AttachAudio(_ context.Context, userID uint, date, _ string, reader io.Reader, _ int64, _ string) (*model.JournalEntry, string, error) {
	entry, err := s.Get(userID, date)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, "", err
	}
	entry.AudioURL = "audio/" + date
	return entry, "https://storage.test/" + entry.AudioURL, nil
}

// fakeSearchService 返回固定的检索结果。
type fakeSearchService struct {
	results []model.EntrySearchResult
}

func (s *fakeSearchService) SearchEntries(context.Context, uint, string, int) ([]model.EntrySearchResult, error) {
	return s.results, nil
}

func setupEntryRouter(entrySvc service.EntryService, searchSvc service.SearchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewEntryHandler(entrySvc, searchSvc)

	entries := r.Group("/entries")
	entries.Use(testAuth())
	{
		entries.GET("/", h.List)
		entries.POST("/", h.Create)
		entries.GET("/search", h.Search)
		entries.GET("/:date", h.Get)
		entries.PUT("/:date", h.Update)
		entries.DELETE("/:date", h.Delete)
		entries.POST("/:date/audio", h.UploadAudio)
	}
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestEntryCreateAndGetEndpoint(t *testing.T) {
	r := setupEntryRouter(newFakeEntryService(), &fakeSearchService{})

	resp := postJSON(r, "/entries/", map[string]string{"date": "2024-01-01", "content": "hello"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var created model.JournalEntry
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if created.Title != model.DefaultEntryTitle {
		t.Fatalf("default title not applied: %q", created.Title)
	}

	req := httptest.NewRequest(http.MethodGet, "/entries/2024-01-01", nil)
	getResp := httptest.NewRecorder()
	r.ServeHTTP(getResp, req)
	if getResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.Code)
	}
}

func TestEntryCreateDuplicateEndpoint(t *testing.T) {
	r := setupEntryRouter(newFakeEntryService(), &fakeSearchService{})

	if resp := postJSON(r, "/entries/", map[string]string{"date": "2024-01-01"}); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	resp := postJSON(r, "/entries/", map[string]string{"date": "2024-01-01"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "Entry already exists for this date" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestEntryGetMissingEndpoint(t *testing.T) {
	r := setupEntryRouter(newFakeEntryService(), &fakeSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/entries/2024-01-01", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "Entry not found" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestEntryInvalidDateEndpoint(t *testing.T) {
	r := setupEntryRouter(newFakeEntryService(), &fakeSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/entries/bad-date!", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "Invalid date format. Use YYYY-MM-DD" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestEntryUpdateAndDeleteEndpoint(t *testing.T) {
	r := setupEntryRouter(newFakeEntryService(), &fakeSearchService{})

	if resp := postJSON(r, "/entries/", map[string]string{"date": "2024-02-02", "title": "Old"}); resp.Code != http.StatusOK {
		t.Fatalf("create failed: %d", resp.Code)
	}

	payload, _ := json.Marshal(map[string]string{"title": "New"})
	req := httptest.NewRequest(http.MethodPut, "/entries/2024-02-02", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var updated model.JournalEntry
	_ = json.Unmarshal(resp.Body.Bytes(), &updated)
	if updated.Title != "New" {
		t.Fatalf("update not applied: %+v", updated)
	}

	req = httptest.NewRequest(http.MethodDelete, "/entries/2024-02-02", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/entries/2024-02-02", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestEntrySearchEndpoint(t *testing.T) {
	search := &fakeSearchService{results: []model.EntrySearchResult{
		{Date: "2024-01-01", Title: "Journal Entry", Snippet: "walked the dog", Score: 1.5},
	}}
	r := setupEntryRouter(newFakeEntryService(), search)

	// 缺少 q 参数
	req := httptest.NewRequest(http.MethodGet, "/entries/search", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/entries/search?q=dog", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var results []model.EntrySearchResult
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(results) != 1 || results[0].Date != "2024-01-01" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestEntryUploadAudioEndpoint(t *testing.T) {
	svc := newFakeEntryService()
	r := setupEntryRouter(svc, &fakeSearchService{})

	if resp := postJSON(r, "/entries/", map[string]string{"date": "2024-03-03"}); resp.Code != http.StatusOK {
		t.Fatalf("create failed: %d", resp.Code)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "note.m4a")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write([]byte("audio-bytes")); err != nil {
		t.Fatalf("write part err: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/entries/2024-03-03/audio", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Entry       model.JournalEntry `json:"entry"`
		DownloadURL string             `json:"download_url"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Entry.AudioURL == "" || body.DownloadURL == "" {
		t.Fatalf("audio fields missing: %+v", body)
	}
}
