package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

// TitleHandler provides HTTP handlers for catalog titles.
type TitleHandler struct {
	service *services.TitleService
	policy  Policy
	maxYear int
}

func NewTitleHandler(service *services.TitleService, policy Policy, maxYear int) *TitleHandler {
	return &TitleHandler{service: service, policy: policy, maxYear: maxYear}
}

// TitleRouter registers title routes on the given router.
func TitleRouter(r chi.Router, service *services.TitleService, policy Policy, maxYear int, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTitleHandler(service, policy, maxYear)

	r.Get("/", handler.List)
	r.With(authMiddleware, requirePolicyWrite(policy)).Post("/", handler.Create)
	r.Get("/{titleID}", handler.Get)
	r.With(authMiddleware, requirePolicyWrite(policy)).Patch("/{titleID}", handler.Update)
	r.With(authMiddleware, requirePolicyWrite(policy)).Delete("/{titleID}", handler.Delete)
}

// TitleUpsertRequest carries category and genres as slugs, resolved to rows
// at write time.
type TitleUpsertRequest struct {
	Name        *string  `json:"name"`
	Year        *int     `json:"year"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Genres      []string `json:"genre"`
}

func (h *TitleHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := types.TitleFilter{
		CategorySlug: strings.TrimSpace(query.Get("category")),
		GenreSlug:    strings.TrimSpace(query.Get("genre")),
		Name:         strings.TrimSpace(query.Get("name")),
	}
	if rawYear := strings.TrimSpace(query.Get("year")); rawYear != "" {
		year, err := strconv.Atoi(rawYear)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		filter.Year = year
	}

	titles, total, err := h.service.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list titles")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: titles, Page: page, Limit: limit, Total: total})
}

func (h *TitleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch title")
		return
	}

	writeJSON(w, http.StatusOK, title)
}

func (h *TitleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TitleUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	fields := map[string]string{}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		fields["name"] = "name is required"
	}
	if req.Year == nil {
		fields["year"] = "year is required"
	} else if msg := h.validateYear(*req.Year); msg != "" {
		fields["year"] = msg
	}
	if req.Category == nil || strings.TrimSpace(*req.Category) == "" {
		fields["category"] = "category is required"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, fields)
		return
	}

	title := types.Title{
		Name: strings.TrimSpace(*req.Name),
		Year: *req.Year,
	}
	if req.Description != nil {
		title.Description = *req.Description
	}
	genres := req.Genres
	if genres == nil {
		genres = []string{}
	}

	created, err := h.service.Create(r.Context(), title, strings.TrimSpace(*req.Category), genres)
	if err != nil {
		if h.writeSlugError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create title")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *TitleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch title")
		return
	}

	var req TitleUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"name": "name is required"})
			return
		}
		title.Name = name
	}
	if req.Year != nil {
		if msg := h.validateYear(*req.Year); msg != "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"year": msg})
			return
		}
		title.Year = *req.Year
	}
	if req.Description != nil {
		title.Description = *req.Description
	}

	categorySlug := ""
	if req.Category != nil {
		categorySlug = strings.TrimSpace(*req.Category)
	}

	updated, err := h.service.Update(r.Context(), title, categorySlug, req.Genres)
	if err != nil {
		if h.writeSlugError(w, err) {
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update title")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *TitleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete title")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TitleHandler) validateYear(year int) string {
	if year < types.MinTitleYear || year > h.maxYear {
		return fmt.Sprintf("year must be between %d and %d", types.MinTitleYear, h.maxYear)
	}
	return ""
}

// writeSlugError reports unknown category/genre slugs as field-level
// validation failures. Returns true when the error was handled.
func (h *TitleHandler) writeSlugError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, store.ErrUnknownCategory):
		writeFieldErrors(w, http.StatusBadRequest, map[string]string{"category": "unknown category slug"})
		return true
	case errors.Is(err, store.ErrUnknownGenre):
		writeFieldErrors(w, http.StatusBadRequest, map[string]string{"genre": err.Error()})
		return true
	}
	return false
}
