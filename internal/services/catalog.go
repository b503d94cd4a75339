package services

import (
	"context"

	"github.com/reviewdb/apiserver/types"
)

// TaxonomyRepository defines persistence operations for the slug-keyed
// taxonomies (categories and genres).
type TaxonomyRepository interface {
	List(ctx context.Context, search string, offset, limit int) ([]types.Category, int, error)
	GetBySlug(ctx context.Context, slug string) (types.Category, error)
	Create(ctx context.Context, item types.Category) (types.Category, error)
	DeleteBySlug(ctx context.Context, slug string) error
}

// TitleRepository defines persistence operations for titles.
type TitleRepository interface {
	List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error)
	Get(ctx context.Context, id int) (types.Title, error)
	Create(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error)
	Update(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error)
	Delete(ctx context.Context, id int) error
}

// TaxonomyService encapsulates category/genre use-cases. One instance
// serves each taxonomy.
type TaxonomyService struct {
	repo TaxonomyRepository
}

func NewTaxonomyService(repo TaxonomyRepository) *TaxonomyService {
	return &TaxonomyService{repo: repo}
}

func (s *TaxonomyService) List(ctx context.Context, search string, offset, limit int) ([]types.Category, int, error) {
	return s.repo.List(ctx, search, offset, limit)
}

func (s *TaxonomyService) GetBySlug(ctx context.Context, slug string) (types.Category, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *TaxonomyService) Create(ctx context.Context, item types.Category) (types.Category, error) {
	return s.repo.Create(ctx, item)
}

func (s *TaxonomyService) DeleteBySlug(ctx context.Context, slug string) error {
	return s.repo.DeleteBySlug(ctx, slug)
}

// TitleService encapsulates title use-cases.
type TitleService struct {
	repo TitleRepository
}

func NewTitleService(repo TitleRepository) *TitleService {
	return &TitleService{repo: repo}
}

func (s *TitleService) List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *TitleService) Get(ctx context.Context, id int) (types.Title, error) {
	return s.repo.Get(ctx, id)
}

func (s *TitleService) Create(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	return s.repo.Create(ctx, title, categorySlug, genreSlugs)
}

func (s *TitleService) Update(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	return s.repo.Update(ctx, title, categorySlug, genreSlugs)
}

func (s *TitleService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
