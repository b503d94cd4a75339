package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

// UserHandler provides the users resource: admin-managed account CRUD plus
// the self-service /users/me endpoint.
type UserHandler struct {
	userService *services.UserService
	policy      Policy
}

func NewUserHandler(userService *services.UserService, policy Policy) *UserHandler {
	return &UserHandler{userService: userService, policy: policy}
}

// UserRouter registers user routes on the given router. Every route
// requires authentication; all but /me additionally require the policy's
// write side (admin).
func UserRouter(r chi.Router, userService *services.UserService, policy Policy, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService, policy)

	r.Use(authMiddleware)
	r.Get("/me", handler.Me)
	r.Patch("/me", handler.UpdateMe)

	r.With(handler.requirePolicy).Get("/", handler.List)
	r.With(handler.requirePolicy).Post("/", handler.Create)
	r.Route("/{username}", func(r chi.Router) {
		r.Use(handler.requirePolicy)
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Delete("/", handler.Delete)
	})
}

// UserResponse is the public account shape; confirmation data and internal
// timestamps stay server-side.
type UserResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

func userResponse(user types.User) UserResponse {
	return UserResponse{
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Bio:       user.Bio,
		Role:      user.Role,
	}
}

// UserUpsertRequest is the admin create payload.
type UserUpsertRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

// UserPatchRequest is a partial update; absent fields stay untouched.
type UserPatchRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

func (h *UserHandler) requirePolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.policy.CanRead(identityFromContext(r.Context())); err != nil {
			writePolicyError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	users, total, err := h.userService.List(r.Context(), search, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	items := make([]UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse(user))
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	fields := validateSignUp(req.Username, req.Email)
	if req.Role != "" && !types.ValidRole(req.Role) {
		fields["role"] = "unknown role"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, fields)
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusBadRequest, "a user with this username or email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse(user))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	h.applyPatch(w, r, user, true)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if err := h.userService.Delete(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's own profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

// UpdateMe applies a partial self-update. The role field is only honored
// for admin callers; for everyone else it is stripped server-side so a
// client-declared role can never escalate the account.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	h.applyPatch(w, r, user, identity.IsAdmin())
}

func (h *UserHandler) applyPatch(w http.ResponseWriter, r *http.Request, user types.User, allowRole bool) {
	var req UserPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if fields := validateSignUp(user.Username, email); fields["email"] != "" {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"email": fields["email"]})
			return
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Role != nil && allowRole {
		if !types.ValidRole(*req.Role) {
			writeFieldErrors(w, http.StatusBadRequest, map[string]string{"role": "unknown role"})
			return
		}
		user.Role = *req.Role
	}

	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusBadRequest, "email already in use")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, userResponse(updated))
}
