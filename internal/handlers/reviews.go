package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

// ReviewHandler provides HTTP handlers for reviews, always scoped under a
// title.
type ReviewHandler struct {
	reviewService *services.ReviewService
	titleService  *services.TitleService
	policy        Policy
}

func NewReviewHandler(reviewService *services.ReviewService, titleService *services.TitleService, policy Policy) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		titleService:  titleService,
		policy:        policy,
	}
}

// ReviewRouter registers review routes on a router mounted at
// /titles/{titleID}/reviews. The parent title is resolved before any
// review operation runs.
func ReviewRouter(
	r chi.Router,
	reviewService *services.ReviewService,
	commentService *services.CommentService,
	titleService *services.TitleService,
	policy Policy,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewReviewHandler(reviewService, titleService, policy)

	r.Use(handler.requireTitle)
	r.Get("/", handler.List)
	r.With(authMiddleware, requirePolicyWrite(policy)).Post("/", handler.Create)
	r.Get("/{reviewID}", handler.Get)
	r.With(authMiddleware).Patch("/{reviewID}", handler.Update)
	r.With(authMiddleware).Delete("/{reviewID}", handler.Delete)

	r.Route("/{reviewID}/comments", func(r chi.Router) {
		CommentRouter(r, commentService, reviewService, policy, authMiddleware)
	})
}

type ReviewUpsertRequest struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

// requireTitle resolves the titleID path segment to a stored title so every
// nested operation 404s when the parent is absent.
func (h *ReviewHandler) requireTitle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titleID, err := parseIDParam(r, "titleID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := h.titleService.Get(r.Context(), titleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "title not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to fetch title")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	titleID, _ := parseIDParam(r, "titleID")
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, total, err := h.reviewService.ListByTitle(r.Context(), titleID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: reviews, Page: page, Limit: limit, Total: total})
}

func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	titleID, _ := parseIDParam(r, "titleID")
	id, err := parseIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.reviewService.Get(r.Context(), titleID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch review")
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// Create posts a review as the authenticated caller. The author is always
// the token identity; any client-supplied author is ignored. A second
// review by the same author on the same title is rejected.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	titleID, _ := parseIDParam(r, "titleID")
	identity := identityFromContext(r.Context())

	var req ReviewUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	fields := map[string]string{}
	if req.Text == nil || *req.Text == "" {
		fields["text"] = "text is required"
	}
	if req.Score == nil {
		fields["score"] = "score is required"
	} else if msg := validateScore(*req.Score); msg != "" {
		fields["score"] = msg
	}
	if len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, fields)
		return
	}

	review, err := h.reviewService.Create(r.Context(), types.Review{
		TitleID:  titleID,
		AuthorID: identity.UserID,
		Text:     *req.Text,
		Score:    *req.Score,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusBadRequest, "you have already reviewed this title")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create review")
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	titleID, _ := parseIDParam(r, "titleID")
	id, err := parseIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.reviewService.Get(r.Context(), titleID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch review")
		return
	}

	if err := h.policy.CanWrite(identityFromContext(r.Context()), review.AuthorID); err != nil {
		writePolicyError(w, err)
		return
	}

	var req ReviewUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Text != nil {
		if *req.Text == "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"text": "text is required"})
			return
		}
		review.Text = *req.Text
	}
	if req.Score != nil {
		if msg := validateScore(*req.Score); msg != "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"score": msg})
			return
		}
		review.Score = *req.Score
	}

	updated, err := h.reviewService.Update(r.Context(), review)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update review")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	titleID, _ := parseIDParam(r, "titleID")
	id, err := parseIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.reviewService.Get(r.Context(), titleID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch review")
		return
	}

	if err := h.policy.CanWrite(identityFromContext(r.Context()), review.AuthorID); err != nil {
		writePolicyError(w, err)
		return
	}

	if err := h.reviewService.Delete(r.Context(), titleID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateScore(score int) string {
	if score < types.MinScore || score > types.MaxScore {
		return fmt.Sprintf("score must be between %d and %d", types.MinScore, types.MaxScore)
	}
	return ""
}
