package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/mailer"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
)

const (
	maxUsernameLength = 150
	maxEmailLength    = 254

	// reservedUsername collides with the self-service /users/me/ path
	// segment and is rejected at sign-up.
	reservedUsername = "me"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

// AuthHandler provides the sign-up and token-exchange endpoints.
type AuthHandler struct {
	userService *services.UserService
	dispatcher  mailer.Dispatcher
	logger      *slog.Logger
	secret      []byte
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, dispatcher mailer.Dispatcher, logger *slog.Logger, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		dispatcher:  dispatcher,
		logger:      logger,
		secret:      []byte(jwtSecret),
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, dispatcher mailer.Dispatcher, logger *slog.Logger, jwtSecret string) {
	handler := NewAuthHandler(userService, dispatcher, logger, jwtSecret)

	r.Post("/signup", handler.SignUp)
	r.Post("/token", handler.Token)
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type TokenRequest struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// SignUp get-or-creates the user identified by the (username, email) pair,
// issues a fresh confirmation code and dispatches it by email. Repeating
// the request re-issues the code; the response shape does not change.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if fields := validateSignUp(req.Username, req.Email); len(fields) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, fields)
		return
	}

	user, code, err := h.userService.SignUp(r.Context(), req.Username, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusBadRequest, "a user with this username or email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	// Delivery is fire-and-forget for the caller, but a publish failure
	// must be visible to operators.
	if err := h.dispatcher.DispatchConfirmation(r.Context(), mailer.ConfirmationEmail{
		To:       user.Email,
		Username: user.Username,
		Code:     code,
	}); err != nil {
		h.logger.Error("confirmation email dispatch failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, SignUpRequest{Username: user.Username, Email: user.Email})
}

// Token exchanges a confirmation code for a signed access token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.ConfirmationCode == "" {
		writeError(w, http.StatusBadRequest, "username and confirmation_code are required")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if !h.userService.CheckConfirmationCode(user, req.ConfirmationCode) {
		writeFieldErrors(w, http.StatusBadRequest, map[string]string{
			"confirmation_code": "invalid confirmation code",
		})
		return
	}

	token, err := issueToken(user, h.secret, defaultTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func validateSignUp(username, email string) map[string]string {
	fields := map[string]string{}

	switch {
	case username == "":
		fields["username"] = "username is required"
	case len(username) > maxUsernameLength:
		fields["username"] = "username is too long"
	case !usernamePattern.MatchString(username):
		fields["username"] = "username contains invalid characters"
	case username == reservedUsername:
		fields["username"] = "username is reserved"
	}

	switch {
	case email == "":
		fields["email"] = "email is required"
	case len(email) > maxEmailLength:
		fields["email"] = "email is too long"
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			fields["email"] = "email is invalid"
		}
	}

	return fields
}
