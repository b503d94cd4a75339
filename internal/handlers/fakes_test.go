package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reviewdb/apiserver/internal/mailer"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
	"github.com/reviewdb/apiserver/types"
)

const testSecret = "test-secret"
const testMaxYear = 2026

// fakeUserRepo is an in-memory services.UserRepository. It mirrors the
// store's uniqueness semantics so the handlers see the same errors.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByPair(_ context.Context, username, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username && user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context, search string, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]types.User, 0, len(r.users))
	for id := 1; id < r.nextID; id++ {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		if search == "" || strings.HasPrefix(user.Username, search) {
			matched = append(matched, user)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) SetConfirmationCode(_ context.Context, id int, codeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ConfirmationCodeHash = codeHash
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// fakeTaxonomyRepo is an in-memory services.TaxonomyRepository.
type fakeTaxonomyRepo struct {
	mu     sync.Mutex
	items  []types.Category
	nextID int
}

func newFakeTaxonomyRepo() *fakeTaxonomyRepo {
	return &fakeTaxonomyRepo{nextID: 1}
}

func (r *fakeTaxonomyRepo) List(_ context.Context, search string, offset, limit int) ([]types.Category, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]types.Category, 0, len(r.items))
	for _, item := range r.items {
		if search == "" || strings.Contains(strings.ToLower(item.Name), strings.ToLower(search)) {
			matched = append(matched, item)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeTaxonomyRepo) GetBySlug(_ context.Context, slug string) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.Slug == slug {
			return item, nil
		}
	}
	return types.Category{}, store.ErrNotFound
}

func (r *fakeTaxonomyRepo) Create(_ context.Context, item types.Category) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Slug == item.Slug {
			return types.Category{}, store.ErrConflict
		}
	}
	item.ID = r.nextID
	r.nextID++
	r.items = append(r.items, item)
	return item, nil
}

func (r *fakeTaxonomyRepo) DeleteBySlug(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.Slug == slug {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeTitleRepo is an in-memory services.TitleRepository resolving slugs
// against the fake taxonomies.
type fakeTitleRepo struct {
	mu         sync.Mutex
	titles     map[int]types.Title
	nextID     int
	categories *fakeTaxonomyRepo
	genres     *fakeTaxonomyRepo
}

func newFakeTitleRepo(categories, genres *fakeTaxonomyRepo) *fakeTitleRepo {
	return &fakeTitleRepo{
		titles:     map[int]types.Title{},
		nextID:     1,
		categories: categories,
		genres:     genres,
	}
}

func (r *fakeTitleRepo) List(_ context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]types.Title, 0, len(r.titles))
	for id := 1; id < r.nextID; id++ {
		title, ok := r.titles[id]
		if !ok {
			continue
		}
		if filter.CategorySlug != "" && (title.Category == nil || title.Category.Slug != filter.CategorySlug) {
			continue
		}
		if filter.Year != 0 && title.Year != filter.Year {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(title.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.GenreSlug != "" {
			found := false
			for _, genre := range title.Genres {
				if genre.Slug == filter.GenreSlug {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		matched = append(matched, title)
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeTitleRepo) Get(_ context.Context, id int) (types.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title, ok := r.titles[id]
	if !ok {
		return types.Title{}, store.ErrNotFound
	}
	return title, nil
}

func (r *fakeTitleRepo) resolve(title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	if categorySlug != "" {
		category, err := r.categories.GetBySlug(context.Background(), categorySlug)
		if err != nil {
			return types.Title{}, store.ErrUnknownCategory
		}
		title.Category = &category
	}
	if genreSlugs != nil {
		genres := make([]types.Genre, 0, len(genreSlugs))
		for _, slug := range genreSlugs {
			genre, err := r.genres.GetBySlug(context.Background(), slug)
			if err != nil {
				return types.Title{}, fmt.Errorf("%w: %s", store.ErrUnknownGenre, slug)
			}
			genres = append(genres, types.Genre(genre))
		}
		title.Genres = genres
	}
	return title, nil
}

func (r *fakeTitleRepo) Create(_ context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	resolved, err := r.resolve(title, categorySlug, genreSlugs)
	if err != nil {
		return types.Title{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved.ID = r.nextID
	r.nextID++
	r.titles[resolved.ID] = resolved
	return resolved, nil
}

func (r *fakeTitleRepo) Update(_ context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	resolved, err := r.resolve(title, categorySlug, genreSlugs)
	if err != nil {
		return types.Title{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.titles[resolved.ID]; !ok {
		return types.Title{}, store.ErrNotFound
	}
	r.titles[resolved.ID] = resolved
	return resolved, nil
}

func (r *fakeTitleRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.titles[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.titles, id)
	return nil
}

// fakeReviewRepo is an in-memory services.ReviewRepository enforcing the
// one-review-per-author-per-title constraint.
type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews map[int]types.Review
	nextID  int
	users   *fakeUserRepo
}

func newFakeReviewRepo(users *fakeUserRepo) *fakeReviewRepo {
	return &fakeReviewRepo{reviews: map[int]types.Review{}, nextID: 1, users: users}
}

func (r *fakeReviewRepo) username(authorID int) string {
	user, err := r.users.GetByID(context.Background(), authorID)
	if err != nil {
		return ""
	}
	return user.Username
}

func (r *fakeReviewRepo) ListByTitle(_ context.Context, titleID, offset, limit int) ([]types.Review, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]types.Review, 0, len(r.reviews))
	for id := 1; id < r.nextID; id++ {
		review, ok := r.reviews[id]
		if !ok || review.TitleID != titleID {
			continue
		}
		matched = append(matched, review)
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeReviewRepo) Get(_ context.Context, titleID, id int) (types.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok || review.TitleID != titleID {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (r *fakeReviewRepo) Create(_ context.Context, review types.Review) (types.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.TitleID == review.TitleID && existing.AuthorID == review.AuthorID {
			return types.Review{}, store.ErrConflict
		}
	}
	review.ID = r.nextID
	r.nextID++
	review.Author = r.username(review.AuthorID)
	review.PubDate = time.Now()
	r.reviews[review.ID] = review
	return review, nil
}

func (r *fakeReviewRepo) Update(_ context.Context, review types.Review) (types.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.reviews[review.ID]
	if !ok || existing.TitleID != review.TitleID {
		return types.Review{}, store.ErrNotFound
	}
	existing.Text = review.Text
	existing.Score = review.Score
	r.reviews[review.ID] = existing
	return existing, nil
}

func (r *fakeReviewRepo) Delete(_ context.Context, titleID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok || review.TitleID != titleID {
		return store.ErrNotFound
	}
	delete(r.reviews, id)
	return nil
}

// fakeCommentRepo is an in-memory services.CommentRepository.
type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[int]types.Comment
	nextID   int
	users    *fakeUserRepo
}

func newFakeCommentRepo(users *fakeUserRepo) *fakeCommentRepo {
	return &fakeCommentRepo{comments: map[int]types.Comment{}, nextID: 1, users: users}
}

func (r *fakeCommentRepo) ListByReview(_ context.Context, reviewID, offset, limit int) ([]types.Comment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]types.Comment, 0, len(r.comments))
	for id := 1; id < r.nextID; id++ {
		comment, ok := r.comments[id]
		if !ok || comment.ReviewID != reviewID {
			continue
		}
		matched = append(matched, comment)
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeCommentRepo) Get(_ context.Context, reviewID, id int) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok || comment.ReviewID != reviewID {
		return types.Comment{}, store.ErrNotFound
	}
	return comment, nil
}

func (r *fakeCommentRepo) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID
	r.nextID++
	if user, err := r.users.GetByID(context.Background(), comment.AuthorID); err == nil {
		comment.Author = user.Username
	}
	comment.PubDate = time.Now()
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *fakeCommentRepo) Update(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.comments[comment.ID]
	if !ok || existing.ReviewID != comment.ReviewID {
		return types.Comment{}, store.ErrNotFound
	}
	existing.Text = comment.Text
	r.comments[comment.ID] = existing
	return existing, nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, reviewID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok || comment.ReviewID != reviewID {
		return store.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

// captureDispatcher records dispatched confirmation emails for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	emails []mailer.ConfirmationEmail
}

func (d *captureDispatcher) DispatchConfirmation(_ context.Context, email mailer.ConfirmationEmail) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, email)
	return nil
}

func (d *captureDispatcher) last(t *testing.T) mailer.ConfirmationEmail {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.emails) == 0 {
		t.Fatal("no confirmation email dispatched")
	}
	return d.emails[len(d.emails)-1]
}

// testEnv wires the full router against in-memory repositories, mirroring
// the production server wiring.
type testEnv struct {
	router     *chi.Mux
	users      *fakeUserRepo
	categories *fakeTaxonomyRepo
	genres     *fakeTaxonomyRepo
	titles     *fakeTitleRepo
	reviews    *fakeReviewRepo
	comments   *fakeCommentRepo
	dispatcher *captureDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	categories := newFakeTaxonomyRepo()
	genres := newFakeTaxonomyRepo()
	titles := newFakeTitleRepo(categories, genres)
	reviews := newFakeReviewRepo(users)
	comments := newFakeCommentRepo(users)
	dispatcher := &captureDispatcher{}

	userService := services.NewUserService(users)
	categoryService := services.NewTaxonomyService(categories)
	genreService := services.NewTaxonomyService(genres)
	titleService := services.NewTitleService(titles)
	reviewService := services.NewReviewService(reviews)
	commentService := services.NewCommentService(comments)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	requireAuth := RequireAuth(testSecret)
	optionalAuth := OptionalAuth(testSecret)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, dispatcher, logger, testSecret)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, AdminOnly(), requireAuth)
	})
	router.Route("/categories", func(r chi.Router) {
		TaxonomyRouter(r, categoryService, AdminOrReadOnly(), "category", optionalAuth)
	})
	router.Route("/genres", func(r chi.Router) {
		TaxonomyRouter(r, genreService, AdminOrReadOnly(), "genre", optionalAuth)
	})
	router.Route("/titles", func(r chi.Router) {
		TitleRouter(r, titleService, AdminOrReadOnly(), testMaxYear, optionalAuth)
		r.Route("/{titleID}/reviews", func(r chi.Router) {
			ReviewRouter(r, reviewService, commentService, titleService, OwnerOrReadOnly(), optionalAuth)
		})
	})

	return &testEnv{
		router:     router,
		users:      users,
		categories: categories,
		genres:     genres,
		titles:     titles,
		reviews:    reviews,
		comments:   comments,
		dispatcher: dispatcher,
	}
}

// addUser seeds an account and returns a valid access token for it.
func (e *testEnv) addUser(t *testing.T, username, role string) (types.User, string) {
	t.Helper()
	user, err := e.users.Create(context.Background(), types.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	token, err := issueToken(user, []byte(testSecret), defaultTokenTTL)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (e *testEnv) addCategory(t *testing.T, name, slug string) types.Category {
	t.Helper()
	item, err := e.categories.Create(context.Background(), types.Category{Name: name, Slug: slug})
	if err != nil {
		t.Fatalf("seed category %s: %v", slug, err)
	}
	return item
}

func (e *testEnv) addGenre(t *testing.T, name, slug string) types.Category {
	t.Helper()
	item, err := e.genres.Create(context.Background(), types.Category{Name: name, Slug: slug})
	if err != nil {
		t.Fatalf("seed genre %s: %v", slug, err)
	}
	return item
}

func (e *testEnv) addTitle(t *testing.T, name string, year int, categorySlug string) types.Title {
	t.Helper()
	title, err := e.titles.Create(context.Background(), types.Title{Name: name, Year: year}, categorySlug, nil)
	if err != nil {
		t.Fatalf("seed title %s: %v", name, err)
	}
	return title
}

// do runs one request through the router. A non-empty token is attached as
// a bearer credential; a nil body sends no payload.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.NewDecoder(rec.Body).Decode(&value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return value
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}
