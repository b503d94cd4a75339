package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

const maxSlugLength = 50

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// TaxonomyHandler serves a slug-keyed catalog taxonomy. The same handler
// backs /categories and /genres; only the service and the attached policy
// differ at registration.
type TaxonomyHandler struct {
	service *services.TaxonomyService
	policy  Policy
	label   string
}

func NewTaxonomyHandler(service *services.TaxonomyService, policy Policy, label string) *TaxonomyHandler {
	return &TaxonomyHandler{service: service, policy: policy, label: label}
}

// TaxonomyRouter registers list/create/delete routes. There is no detail
// GET and no update; the slug is the immutable identity key.
func TaxonomyRouter(r chi.Router, service *services.TaxonomyService, policy Policy, label string, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTaxonomyHandler(service, policy, label)

	r.Get("/", handler.List)
	r.With(authMiddleware, requirePolicyWrite(policy)).Post("/", handler.Create)
	r.With(authMiddleware, requirePolicyWrite(policy)).Delete("/{slug}", handler.Delete)
}

type TaxonomyRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	items, total, err := h.service.List(r.Context(), search, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *TaxonomyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TaxonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)

	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "name is required"
	}
	switch {
	case req.Slug == "":
		fields["slug"] = "slug is required"
	case len(req.Slug) > maxSlugLength:
		fields["slug"] = "slug is too long"
	case !slugPattern.MatchString(req.Slug):
		fields["slug"] = "slug contains invalid characters"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, fields)
		return
	}

	item, err := h.service.Create(r.Context(), types.Category{Name: req.Name, Slug: req.Slug})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"slug": "slug already exists"})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create "+h.label)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *TaxonomyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.service.DeleteBySlug(r.Context(), slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, h.label+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete "+h.label)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
