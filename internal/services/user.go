package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByPair(ctx context.Context, username, email string) (types.User, error)
	List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetConfirmationCode(ctx context.Context, id int, codeHash string) error
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases, including the sign-up
// get-or-create flow and confirmation-code handling.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// SignUp resolves the (username, email) pair to exactly one stored user and
// issues a fresh confirmation code for it, overwriting any previous code.
// The plaintext code is returned for delivery; only its bcrypt hash is
// persisted.
//
// The pair is the identity key: a repeat sign-up with the same pair reuses
// the existing row. A row matching only one half of the pair is a genuine
// collision and surfaces store.ErrConflict. A concurrent first sign-up with
// the identical pair is resolved by re-reading after the unique violation,
// never surfaced to the caller.
func (s *UserService) SignUp(ctx context.Context, username, email string) (types.User, string, error) {
	user, err := s.repo.GetByPair(ctx, username, email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.repo.Create(ctx, types.User{
			Username: username,
			Email:    email,
			Role:     types.RoleUser,
		})
		if errors.Is(err, store.ErrConflict) {
			user, err = s.repo.GetByPair(ctx, username, email)
			if errors.Is(err, store.ErrNotFound) {
				return types.User{}, "", store.ErrConflict
			}
		}
	}
	if err != nil {
		return types.User{}, "", err
	}

	code := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, "", err
	}
	if err := s.repo.SetConfirmationCode(ctx, user.ID, string(hash)); err != nil {
		return types.User{}, "", err
	}
	return user, code, nil
}

// CheckConfirmationCode reports whether code matches the user's stored
// confirmation-code hash. A successful check does not invalidate the code;
// the stored hash only changes on the next sign-up request.
func (s *UserService) CheckConfirmationCode(user types.User, code string) bool {
	if user.ConfirmationCodeHash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.ConfirmationCodeHash), []byte(code)) == nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, search, offset, limit)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
