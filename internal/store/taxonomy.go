package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/reviewdb/apiserver/types"
)

// TaxonomyRepository handles persistence for the slug-keyed catalog
// taxonomies. Categories and genres share the same shape (name + unique
// slug), so one repository parameterized by table serves both.
type TaxonomyRepository struct {
	db    *sql.DB
	table string
}

func NewCategoryRepository(db *sql.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db, table: "categories"}
}

func NewGenreRepository(db *sql.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db, table: "genres"}
}

func (r *TaxonomyRepository) List(ctx context.Context, search string, offset, limit int) ([]types.Category, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	countQuery := `SELECT COUNT(1) FROM ` + r.table + ` WHERE name ILIKE '%' || $1 || '%'`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT id, name, slug
		FROM ` + r.table + `
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, search, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.Category, 0, limit)
	for rows.Next() {
		var item types.Category
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *TaxonomyRepository) GetBySlug(ctx context.Context, slug string) (types.Category, error) {
	query := `SELECT id, name, slug FROM ` + r.table + ` WHERE slug = $1`
	var item types.Category
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&item.ID, &item.Name, &item.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return item, nil
}

func (r *TaxonomyRepository) Create(ctx context.Context, item types.Category) (types.Category, error) {
	query := `
		INSERT INTO ` + r.table + ` (name, slug)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, item.Name, item.Slug).Scan(&item.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Category{}, ErrConflict
		}
		return types.Category{}, err
	}
	return item, nil
}

func (r *TaxonomyRepository) DeleteBySlug(ctx context.Context, slug string) error {
	query := `DELETE FROM ` + r.table + ` WHERE slug = $1`
	result, err := r.db.ExecContext(ctx, query, slug)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
