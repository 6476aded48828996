// Package server provides the read-side HTTP API.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"feedmix/internal/database"
	"feedmix/internal/feed"
	"feedmix/internal/mixin"
)

const pageSize = 10

// Server serves post listings with interleaved mixins, plus the
// mappable-key discovery endpoint the admin UI uses when configuring a
// feed source.
type Server struct {
	store    database.Store
	selector *mixin.Selector
	fetcher  *feed.Fetcher
	parser   *feed.Parser
	router   chi.Router
	logger   zerolog.Logger
}

// New creates a server with its routes set up.
func New(store database.Store, selector *mixin.Selector, fetcher *feed.Fetcher, parser *feed.Parser, logger zerolog.Logger) *Server {
	s := &Server{
		store:    store,
		selector: selector,
		fetcher:  fetcher,
		parser:   parser,
		logger:   logger.With().Str("component", "http").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", s.handlePosts)
		r.Get("/search", s.handleSearch)
		r.Get("/tags/{tag}", s.handleTagPosts)
		r.Get("/feeds/keys", s.handleFeedKeys)
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// --- Handlers ---

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	s.renderListing(w, r, mixin.PageList, database.PostListOptions{
		Page:     pageParam(r),
		PageSize: pageSize,
	}, "")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	s.renderListing(w, r, mixin.PageSearch, database.PostListOptions{
		Query:    query,
		Page:     pageParam(r),
		PageSize: pageSize,
	}, query)
}

func (s *Server) handleTagPosts(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		http.Error(w, "tag required", http.StatusBadRequest)
		return
	}
	s.renderListing(w, r, mixin.PageTag, database.PostListOptions{
		Tag:      tag,
		Page:     pageParam(r),
		PageSize: pageSize,
	}, "")
}

func (s *Server) renderListing(w http.ResponseWriter, r *http.Request, page mixin.Page, opts database.PostListOptions, searchQuery string) {
	posts, total, err := s.store.ListPosts(opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("list posts")
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	postIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	// Mixin inconsistencies degrade gracefully: the page renders without
	// them rather than failing.
	mixins, err := s.selector.Select(page, searchQuery, postIDs)
	if err != nil {
		s.logger.Warn().Err(err).Str("page", string(page)).Msg("select mixins")
		mixins = nil
	}

	currentPage := opts.Page
	if currentPage < 1 {
		currentPage = 1
	}
	totalPages := (total + opts.PageSize - 1) / opts.PageSize

	writeJSON(w, map[string]any{
		"items":        mixin.Interleave(posts, mixins),
		"current_page": currentPage,
		"total_pages":  totalPages,
		"has_next":     currentPage < totalPages,
		"has_prev":     currentPage > 1,
	})
}

func (s *Server) handleFeedKeys(w http.ResponseWriter, r *http.Request) {
	feedURL := r.URL.Query().Get("url")
	if feedURL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	text, err := s.fetcher.Fetch(r.Context(), feedURL)
	if err != nil {
		http.Error(w, "Failed to fetch feed", http.StatusBadGateway)
		return
	}
	items, err := s.parser.Parse(text)
	if err != nil {
		http.Error(w, "Failed to parse feed", http.StatusUnprocessableEntity)
		return
	}

	keys := feed.DiscoverKeys(items)
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, map[string]any{"keys": keys})
}

// --- Helpers ---

func pageParam(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
