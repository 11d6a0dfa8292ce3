package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/five82/newsdesk/internal/content"
)

// Route families. Each one serves its own record shape and envelope.
const (
	FamilyV2     = "v2"
	FamilyLegacy = "legacy"
	FamilyAdmin  = "admin"
)

const maxUploadBytes = 8 << 20

// Options configure the emulator.
type Options struct {
	// Families selects which route families are mounted; empty mounts all.
	Families []string
	// UnknownFields are payload keys refused with an "unknown column" error,
	// the way a backend with an older schema answers.
	UnknownFields []string
	// FailEvery makes every Nth request answer 503; zero disables it.
	FailEvery int
	// Token, when set, must be presented as the bearer credential.
	Token string
	// Rotate alternates the v2 list envelope between {"data": [...]} and
	// {"results": [...]}.
	Rotate bool
	// Seed preloads a few items in every status.
	Seed   bool
	Logger *log.Logger
}

// Server is an in-memory content backend.
type Server struct {
	opts   Options
	logger *log.Logger
	router chi.Router
	now    func() time.Time

	mu        sync.Mutex
	items     map[string]content.Item
	order     []string
	keys      map[string]string
	requests  int
	failNext  int
	rotations int
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		opts:   opts,
		logger: logger,
		now:    time.Now,
		items:  make(map[string]content.Item),
		keys:   make(map[string]string),
	}
	if opts.Seed {
		s.seed()
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Printf("emulating content backend on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// FailNext makes the next n requests answer 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// Requests reports how many requests reached the server.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Add stores item, assigning an id and timestamps when missing.
func (s *Server) Add(item content.Item) content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(item)
}

// Items returns every stored item, newest first.
func (s *Server) Items() []content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.Item, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.items[s.order[i]])
	}
	return out
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(s.faults)
	r.Use(s.auth)

	if s.mounted(FamilyV2) {
		r.Route("/api/v2/news", func(r chi.Router) {
			r.Get("/", s.handleList(FamilyV2, ""))
			r.Post("/", s.handleCreate(FamilyV2))
			r.Get("/{id}", s.handleGet(FamilyV2))
			r.Put("/{id}", s.handleUpdate(FamilyV2))
			r.Patch("/{id}/status", s.handleStatus(FamilyV2))
			r.Post("/{id}/resubmit", s.handleResubmit(FamilyV2))
		})
	}
	if s.mounted(FamilyLegacy) {
		r.Route("/api/news", func(r chi.Router) {
			for _, status := range []content.Status{content.StatusPending, content.StatusApproved, content.StatusRejected} {
				r.Get("/"+string(status), s.handleList(FamilyLegacy, status))
			}
			r.Post("/", s.handleCreate(FamilyLegacy))
			r.Post("/create", s.handleCreate(FamilyLegacy))
			r.Get("/{id}", s.handleGet(FamilyLegacy))
			r.Patch("/{id}", s.handleUpdate(FamilyLegacy))
			r.Post("/{id}/update", s.handleUpdate(FamilyLegacy))
			r.Put("/{id}/status", s.handleStatus(FamilyLegacy))
			r.Patch("/{id}/resubmit", s.handleResubmit(FamilyLegacy))
		})
	}
	if s.mounted(FamilyAdmin) {
		r.Route("/api/admin/news", func(r chi.Router) {
			for _, status := range []content.Status{content.StatusPending, content.StatusApproved, content.StatusRejected} {
				r.Get("/"+string(status), s.handleList(FamilyAdmin, status))
			}
			r.Post("/{id}/review", s.handleStatus(FamilyAdmin))
		})
	}

	s.router = r
}

func (s *Server) mounted(family string) bool {
	if len(s.opts.Families) == 0 {
		return true
	}
	for _, f := range s.opts.Families {
		if strings.EqualFold(strings.TrimSpace(f), family) {
			return true
		}
	}
	return false
}

// --- Middleware ---

func (s *Server) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failNext > 0 || (s.opts.FailEvery > 0 && s.requests%s.opts.FailEvery == 0)
		if s.failNext > 0 {
			s.failNext--
		}
		s.mu.Unlock()
		if fail {
			writeError(w, http.StatusServiceUnavailable, "upstream temporarily unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (s *Server) handleList(family string, fixed content.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := fixed
		if status == "" {
			status = content.Status(strings.ToLower(r.URL.Query().Get("status")))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
				return
			}
		}

		s.mu.Lock()
		var items []content.Item
		for i := len(s.order) - 1; i >= 0; i-- {
			if item := s.items[s.order[i]]; item.Status == status {
				items = append(items, item)
			}
		}
		rotate := s.opts.Rotate && s.rotations%2 == 1
		if family == FamilyV2 {
			s.rotations++
		}
		s.mu.Unlock()

		records := make([]map[string]any, 0, len(items))
		for _, item := range items {
			records = append(records, encodeRecord(family, item))
		}
		switch family {
		case FamilyLegacy:
			writeJSON(w, http.StatusOK, records)
		case FamilyAdmin:
			writeJSON(w, http.StatusOK, map[string]any{"news": records, "total": len(records)})
		default:
			if rotate {
				writeJSON(w, http.StatusOK, map[string]any{"results": records, "page": 1})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": records, "meta": map[string]any{"total": len(records)}})
		}
	}
}

func (s *Server) handleGet(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		item, ok := s.items[chi.URLParam(r, "id")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "news item not found")
			return
		}
		writeItem(w, http.StatusOK, family, item)
	}
}

func (s *Server) handleCreate(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := s.readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(fields["title"]) == "" || strings.TrimSpace(fields["category"]) == "" {
			writeError(w, http.StatusUnprocessableEntity, "title and category are required")
			return
		}

		key := r.Header.Get("Idempotency-Key")
		s.mu.Lock()
		if id, seen := s.keys[key]; key != "" && seen {
			item := s.items[id]
			s.mu.Unlock()
			writeItem(w, http.StatusOK, family, item)
			return
		}
		item := applyFields(content.Item{}, fields)
		item.Status = content.StatusPending
		item = s.insert(item)
		if key != "" {
			s.keys[key] = item.ID
		}
		s.mu.Unlock()

		s.logger.Printf("created %s %q", item.ID, item.Title)
		writeItem(w, http.StatusCreated, family, item)
	}
}

func (s *Server) handleUpdate(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := s.readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := chi.URLParam(r, "id")

		s.mu.Lock()
		item, ok := s.items[id]
		if !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "news item not found")
			return
		}
		if item.Status == content.StatusApproved {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "approved items are locked")
			return
		}
		item = applyFields(item, fields)
		item.UpdatedAt = s.now().UTC()
		s.items[id] = item
		s.mu.Unlock()

		if family == FamilyLegacy {
			// Legacy updates only acknowledge.
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeItem(w, http.StatusOK, family, item)
	}
}

func (s *Server) handleStatus(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status          string `json:"status"`
			RejectionReason string `json:"rejectionReason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		to := content.Status(strings.ToLower(strings.TrimSpace(req.Status)))
		item, status, msg := s.transition(chi.URLParam(r, "id"), to, req.RejectionReason)
		if status != http.StatusOK {
			writeError(w, status, msg)
			return
		}
		switch family {
		case FamilyAdmin:
			w.WriteHeader(http.StatusNoContent)
		case FamilyLegacy:
			writeJSON(w, http.StatusOK, map[string]any{"message": "updated", "news": encodeRecord(family, item)})
		default:
			writeItem(w, http.StatusOK, family, item)
		}
	}
}

func (s *Server) handleResubmit(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, status, msg := s.transition(chi.URLParam(r, "id"), content.StatusPending, "")
		if status != http.StatusOK {
			writeError(w, status, msg)
			return
		}
		writeItem(w, http.StatusOK, family, item)
	}
}

// transition applies the editorial rules the real backend enforces.
func (s *Server) transition(id string, to content.Status, reason string) (content.Item, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return content.Item{}, http.StatusNotFound, "news item not found"
	}
	legal := false
	switch item.Status {
	case content.StatusPending:
		legal = to == content.StatusApproved || to == content.StatusRejected
	case content.StatusRejected:
		legal = to == content.StatusPending
	}
	if !legal {
		return content.Item{}, http.StatusConflict, fmt.Sprintf("cannot move %s item to %q", item.Status, to)
	}

	item.Status = to
	item.RejectionReason = ""
	if to == content.StatusRejected {
		item.RejectionReason = strings.TrimSpace(reason)
		if item.RejectionReason == "" {
			item.RejectionReason = "No reason provided"
		}
	}
	item.UpdatedAt = s.now().UTC()
	s.items[id] = item
	s.logger.Printf("%s is now %s", id, to)
	return item, http.StatusOK, ""
}

// readPayload accepts JSON or multipart bodies and refuses configured unknown
// fields.
func (s *Server) readPayload(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		for k, files := range r.MultipartForm.File {
			if len(files) > 0 {
				fields[k] = "/uploads/" + uuid.NewString() + "-" + files[0].Filename
			}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, errors.New("invalid request body")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, unknown := range s.opts.UnknownFields {
			if strings.EqualFold(k, unknown) {
				return nil, fmt.Errorf("could not find the '%s' column of 'news' in the schema cache", k)
			}
		}
	}
	return fields, nil
}

// insert requires s.mu.
func (s *Server) insert(item content.Item) content.Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	if item.ContentType == "" {
		item.ContentType = content.TypeStandard
	}
	if item.Status == "" {
		item.Status = content.StatusPending
	}
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	return item
}

func applyFields(item content.Item, fields map[string]string) content.Item {
	set := func(dst *string, key string) {
		if v, ok := fields[key]; ok {
			*dst = v
		}
	}
	set(&item.Title, "title")
	set(&item.Body, "body")
	set(&item.Category, "category")
	set(&item.Region.State, "state")
	set(&item.Region.District, "district")
	set(&item.AuthorID, "authorId")
	set(&item.Media.FeaturedImage, "featuredImage")
	set(&item.Media.VideoSource, "videoSource")
	if v, ok := fields["contentType"]; ok {
		item.ContentType = content.ParseType(v)
	}
	if upload, ok := fields["media"]; ok {
		if item.ContentType == content.TypeVideo {
			item.Media.VideoSource = upload
		} else {
			item.Media.FeaturedImage = upload
		}
	}
	return item
}

func (s *Server) seed() {
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	seeds := []content.Item{
		{Title: "Monsoon arrives early in the south", Category: "Weather", Region: content.Region{State: "Kerala", District: "Ernakulam"}, AuthorID: "reporter-1"},
		{Title: "Market yard reopens after repairs", Category: "Business", Region: content.Region{State: "Karnataka", District: "Mysuru"}, AuthorID: "reporter-2", Media: content.Media{FeaturedImage: "https://cdn.example.org/market.jpg"}},
		{Title: "District final highlights", Category: "Sports", ContentType: content.TypeVideo, AuthorID: "reporter-1", Media: content.Media{VideoSource: "https://www.youtube.com/watch?v=finals"}, Status: content.StatusApproved},
		{Title: "Unverified claim about power cuts", Category: "Local", AuthorID: "reporter-3", Status: content.StatusRejected, RejectionReason: "Needs a second source"},
	}
	for i, item := range seeds {
		item.Body = item.Title + "."
		item.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		s.insert(item)
	}
}
