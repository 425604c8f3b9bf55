// Package fakeapi serves in-process stand-ins for the ShortCode, SnapCapture and
// Traffic Portal APIs. It is used by tests and by `tpctl --fake`.
package fakeapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/jaevor/go-nanoid"
	"github.com/trafficportal/linkshortener/models"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type plannedCode struct {
	code     string
	modified bool
}

type Server struct {
	mu sync.Mutex

	apiKey   string
	generate func() string
	planned  []plannedCode

	nextMID int64
	records map[int64]*models.MaskedRecord

	captures         int
	screenshotStatus int
	cachedShots      map[string]bool

	httpServer *httptest.Server
}

// New starts a fake API server. Requests must carry apiKey in X-API-Key unless
// apiKey is empty.
func New(apiKey string) *Server {
	generate, err := nanoid.CustomASCII(codeAlphabet, 8)
	if err != nil {
		panic(err)
	}

	s := &Server{
		apiKey:      apiKey,
		generate:    generate,
		nextMID:     1000,
		records:     make(map[int64]*models.MaskedRecord),
		cachedShots: make(map[string]bool),
	}
	s.httpServer = httptest.NewServer(s.Router())
	return s
}

func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) Client() *http.Client {
	return s.httpServer.Client()
}

func (s *Server) Close() {
	s.httpServer.Close()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Post("/generate-short-code", s.generateShortCode)
	r.Post("/generate-short-code/{tier}", s.generateShortCode)

	r.Post("/screenshot", s.screenshot)

	r.Post("/items", s.createItem)
	r.Get("/items", s.searchItems)
	r.Get("/items/lookup", s.lookupItem)
	r.Put("/items/{mid}", s.updateItem)

	return r
}

// PlanCode makes the next generated short code deterministic.
func (s *Server) PlanCode(code string, modified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planned = append(s.planned, plannedCode{code: code, modified: modified})
}

// FailScreenshots makes every screenshot request answer with status. Zero restores
// normal behaviour.
func (s *Server) FailScreenshots(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshotStatus = status
}

func (s *Server) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// Seed stores a record as if it had been created remotely and returns its mid.
func (s *Server) Seed(record models.MaskedRecord) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMID++
	record.MID = models.FlexInt(s.nextMID)
	s.records[s.nextMID] = &record
	return s.nextMID
}

func (s *Server) Record(mid int64) (models.MaskedRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[mid]
	if !ok {
		return models.MaskedRecord{}, false
	}
	return *r, true
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeFailure(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) generateShortCode(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateShortCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeFailure(w, http.StatusBadRequest, "url is required")
		return
	}

	method := chi.URLParam(r, "tier")
	if method == "" {
		method = "default"
	}

	s.mu.Lock()
	next := plannedCode{code: s.generate()}
	if len(s.planned) > 0 {
		next = s.planned[0]
		s.planned = s.planned[1:]
	}
	s.mu.Unlock()

	source := models.ShortCodeSource{
		ShortCode:   next.code,
		Method:      method,
		WasModified: next.modified,
	}
	if next.modified {
		source.OriginalCode = next.code + "-taken"
	}

	writeJSON(w, http.StatusOK, models.GenerateShortCodeResponse{
		Message: "Short code generated",
		Success: true,
		Source:  source,
	})
}

func (s *Server) screenshot(w http.ResponseWriter, r *http.Request) {
	var req models.ScreenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeFailure(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Format == "" {
		req.Format = models.FormatPNG
	}

	s.mu.Lock()
	status := s.screenshotStatus
	if status == 0 {
		s.captures++
	}
	hit := s.cachedShots[req.URL]
	s.cachedShots[req.URL] = true
	s.mu.Unlock()

	if status != 0 {
		writeFailure(w, status, "capture failed")
		return
	}

	image := fakeImage(req)
	if r.URL.Query().Get("json") == "true" {
		writeJSON(w, http.StatusOK, models.ScreenshotJSONResponse{
			Success:        true,
			Image:          base64.StdEncoding.EncodeToString(image),
			ContentType:    req.Format.ContentType(),
			Cached:         hit,
			ResponseTimeMs: 42,
		})
		return
	}

	cacheHeader := "MISS"
	if hit {
		cacheHeader = "HIT"
	}
	w.Header().Set("Content-Type", req.Format.ContentType())
	w.Header().Set("X-Cache", cacheHeader)
	w.Header().Set("X-Response-Time", "42ms")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.TPKey == "" || req.Domain == "" || req.Destination == "" {
		writeFailure(w, http.StatusBadRequest, "tpKey, domain and destination are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(req.Domain, req.TPKey) != nil {
		writeFailure(w, http.StatusConflict, fmt.Sprintf("key %q is already in use on %s", req.TPKey, req.Domain))
		return
	}

	s.nextMID++
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	record := &models.MaskedRecord{
		MID:         models.FlexInt(s.nextMID),
		UID:         models.FlexInt(req.UID),
		TPKey:       req.TPKey,
		Domain:      req.Domain,
		Destination: req.Destination,
		Status:      req.Status,
		Type:        req.Type,
		IsSet:       models.FlexInt(req.IsSet),
		Tags:        req.Tags,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[s.nextMID] = record

	writeJSON(w, http.StatusCreated, models.MapResponse{Message: "Record created", Success: true, Source: record})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	mid, err := strconv.ParseInt(chi.URLParam(r, "mid"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid mid")
		return
	}

	var req models.UpdateMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[mid]
	if !ok {
		writeFailure(w, http.StatusNotFound, "record not found")
		return
	}

	record.Destination = req.Destination
	record.Status = req.Status
	record.Type = req.Type
	record.IsSet = models.FlexInt(req.IsSet)
	record.Tags = req.Tags
	record.Notes = req.Notes
	record.UpdatedAt = time.Now().UTC().Format("2006-01-02 15:04:05")

	writeJSON(w, http.StatusOK, models.MapResponse{Message: "Record updated", Success: true, Source: record})
}

func (s *Server) lookupItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.findLocked(q.Get("domain"), q.Get("tpKey"))
	if record == nil {
		writeFailure(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, models.MapResponse{Message: "ok", Success: true, Source: record})
}

func (s *Server) searchItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	pageSize := atoiDefault(q.Get("page_size"), models.DefaultSearchPageSize)

	s.mu.Lock()
	matches := make([]models.MaskedRecord, 0)
	for _, record := range s.records {
		if matchesSearch(record, q.Get("uid"), q.Get("domain"), q.Get("tpKey"), q.Get("q")) {
			matches = append(matches, *record)
		}
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].MID < matches[j].MID })

	start := min((page-1)*pageSize, len(matches))
	end := min(start+pageSize, len(matches))

	writeJSON(w, http.StatusOK, models.SearchResponse{
		Message: "ok",
		Success: true,
		Source: models.SearchResult{
			Records:  matches[start:end],
			Total:    models.FlexInt(len(matches)),
			Page:     models.FlexInt(page),
			PageSize: models.FlexInt(pageSize),
		},
	})
}

func (s *Server) findLocked(domain, tpKey string) *models.MaskedRecord {
	for _, record := range s.records {
		if record.Domain == domain && record.TPKey == tpKey {
			return record
		}
	}
	return nil
}

func matchesSearch(record *models.MaskedRecord, uid, domain, tpKey, query string) bool {
	if uid != "" && strconv.FormatInt(record.UID.Int64(), 10) != uid {
		return false
	}
	if domain != "" && record.Domain != domain {
		return false
	}
	if tpKey != "" && record.TPKey != tpKey {
		return false
	}
	if query != "" {
		query = strings.ToLower(query)
		return strings.Contains(strings.ToLower(record.Destination), query) ||
			strings.Contains(strings.ToLower(record.TPKey), query)
	}
	return true
}

func fakeImage(req models.ScreenshotRequest) []byte {
	return []byte(fmt.Sprintf("FAKE-%s|%s|%dx%d", strings.ToUpper(string(req.Format)), req.URL, req.Viewport.Width, req.Viewport.Height))
}

func atoiDefault(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIErrorBody{Message: message, Success: new(bool)})
}
