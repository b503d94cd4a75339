package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

// CommentHandler provides HTTP handlers for comments, scoped under a
// review which is itself scoped under a title.
type CommentHandler struct {
	commentService *services.CommentService
	reviewService  *services.ReviewService
	policy         Policy
}

func NewCommentHandler(commentService *services.CommentService, reviewService *services.ReviewService, policy Policy) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		reviewService:  reviewService,
		policy:         policy,
	}
}

// CommentRouter registers comment routes on a router mounted at
// /titles/{titleID}/reviews/{reviewID}/comments. The title has already been
// resolved by the parent router; the review is resolved here.
func CommentRouter(
	r chi.Router,
	commentService *services.CommentService,
	reviewService *services.ReviewService,
	policy Policy,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewCommentHandler(commentService, reviewService, policy)

	r.Use(handler.requireReview)
	r.Get("/", handler.List)
	r.With(authMiddleware, requirePolicyWrite(policy)).Post("/", handler.Create)
	r.Get("/{commentID}", handler.Get)
	r.With(authMiddleware).Patch("/{commentID}", handler.Update)
	r.With(authMiddleware).Delete("/{commentID}", handler.Delete)
}

type CommentUpsertRequest struct {
	Text *string `json:"text"`
}

// requireReview resolves the reviewID path segment within the enclosing
// title, so a review id that exists under a different title still 404s.
func (h *CommentHandler) requireReview(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titleID, err := parseIDParam(r, "titleID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		reviewID, err := parseIDParam(r, "reviewID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := h.reviewService.Get(r.Context(), titleID, reviewID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "review not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to fetch review")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	reviewID, _ := parseIDParam(r, "reviewID")
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, total, err := h.commentService.ListByReview(r.Context(), reviewID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: comments, Page: page, Limit: limit, Total: total})
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	reviewID, _ := parseIDParam(r, "reviewID")
	id, err := parseIDParam(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Get(r.Context(), reviewID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch comment")
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

// Create posts a comment as the authenticated caller; the author is always
// the token identity.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	reviewID, _ := parseIDParam(r, "reviewID")
	identity := identityFromContext(r.Context())

	var req CommentUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Text == nil || *req.Text == "" {
		writeFieldErrors(w, http.StatusBadRequest, map[string]string{"text": "text is required"})
		return
	}

	comment, err := h.commentService.Create(r.Context(), types.Comment{
		ReviewID: reviewID,
		AuthorID: identity.UserID,
		Text:     *req.Text,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	reviewID, _ := parseIDParam(r, "reviewID")
	id, err := parseIDParam(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Get(r.Context(), reviewID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch comment")
		return
	}

	if err := h.policy.CanWrite(identityFromContext(r.Context()), comment.AuthorID); err != nil {
		writePolicyError(w, err)
		return
	}

	var req CommentUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Text != nil {
		if *req.Text == "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"text": "text is required"})
			return
		}
		comment.Text = *req.Text
	}

	updated, err := h.commentService.Update(r.Context(), comment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reviewID, _ := parseIDParam(r, "reviewID")
	id, err := parseIDParam(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Get(r.Context(), reviewID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch comment")
		return
	}

	if err := h.policy.CanWrite(identityFromContext(r.Context()), comment.AuthorID); err != nil {
		writePolicyError(w, err)
		return
	}

	if err := h.commentService.Delete(r.Context(), reviewID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
