package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/reviewdb/apiserver/types"
)

// TitleRepository handles persistence for titles, including the category
// reference and the genre join table.
type TitleRepository struct {
	db *sql.DB
}

func NewTitleRepository(db *sql.DB) *TitleRepository {
	return &TitleRepository{db: db}
}

const titleSelect = `
	SELECT t.id, t.name, t.year, t.description,
		c.id, c.name, c.slug,
		ROUND(AVG(r.score)::numeric, 1)
	FROM titles t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN reviews r ON r.title_id = t.id`

const titleGroupBy = ` GROUP BY t.id, c.id`

func scanTitle(row interface{ Scan(...any) error }) (types.Title, error) {
	var (
		title        types.Title
		categoryID   sql.NullInt64
		categoryName sql.NullString
		categorySlug sql.NullString
		rating       sql.NullFloat64
	)
	err := row.Scan(
		&title.ID,
		&title.Name,
		&title.Year,
		&title.Description,
		&categoryID,
		&categoryName,
		&categorySlug,
		&rating,
	)
	if err != nil {
		return types.Title{}, err
	}
	if categoryID.Valid {
		title.Category = &types.Category{
			ID:   int(categoryID.Int64),
			Name: categoryName.String,
			Slug: categorySlug.String,
		}
	}
	if rating.Valid {
		value := rating.Float64
		title.Rating = &value
	}
	return title, nil
}

func (r *TitleRepository) List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	where, args := buildTitleFilter(filter)

	countQuery := `
		SELECT COUNT(1)
		FROM titles t
		LEFT JOIN categories c ON c.id = t.category_id` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := titleSelect + where + titleGroupBy +
		fmt.Sprintf(` ORDER BY t.id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	titles := make([]types.Title, 0, limit)
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, 0, err
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range titles {
		genres, err := r.titleGenres(ctx, titles[i].ID)
		if err != nil {
			return nil, 0, err
		}
		titles[i].Genres = genres
	}

	return titles, total, nil
}

func (r *TitleRepository) Get(ctx context.Context, id int) (types.Title, error) {
	query := titleSelect + ` WHERE t.id = $1` + titleGroupBy
	title, err := scanTitle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Title{}, ErrNotFound
		}
		return types.Title{}, err
	}

	genres, err := r.titleGenres(ctx, id)
	if err != nil {
		return types.Title{}, err
	}
	title.Genres = genres
	return title, nil
}

// Create inserts a title with its category and genre associations resolved
// by slug inside one transaction. An unknown slug aborts the transaction so
// no title row is left behind.
func (r *TitleRepository) Create(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Title{}, err
	}
	defer tx.Rollback()

	categoryID, err := resolveCategory(ctx, tx, categorySlug)
	if err != nil {
		return types.Title{}, err
	}

	const query = `
		INSERT INTO titles (name, year, description, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRowContext(ctx, query, title.Name, title.Year, title.Description, categoryID).Scan(&title.ID); err != nil {
		return types.Title{}, err
	}

	if err := replaceGenres(ctx, tx, title.ID, genreSlugs); err != nil {
		return types.Title{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Title{}, err
	}
	return r.Get(ctx, title.ID)
}

// Update rewrites the title row and, when genreSlugs is non-nil, replaces
// the genre associations. A nil slice means "leave genres untouched" so
// PATCH can be partial.
func (r *TitleRepository) Update(ctx context.Context, title types.Title, categorySlug string, genreSlugs []string) (types.Title, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Title{}, err
	}
	defer tx.Rollback()

	var categoryID sql.NullInt64
	if categorySlug != "" {
		id, err := resolveCategory(ctx, tx, categorySlug)
		if err != nil {
			return types.Title{}, err
		}
		categoryID = id
	} else if title.Category != nil {
		categoryID = sql.NullInt64{Int64: int64(title.Category.ID), Valid: true}
	}

	const query = `
		UPDATE titles
		SET name = $1,
			year = $2,
			description = $3,
			category_id = $4
		WHERE id = $5`
	result, err := tx.ExecContext(ctx, query, title.Name, title.Year, title.Description, categoryID, title.ID)
	if err != nil {
		return types.Title{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Title{}, err
	}
	if affected == 0 {
		return types.Title{}, ErrNotFound
	}

	if genreSlugs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM title_genres WHERE title_id = $1`, title.ID); err != nil {
			return types.Title{}, err
		}
		if err := replaceGenres(ctx, tx, title.ID, genreSlugs); err != nil {
			return types.Title{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Title{}, err
	}
	return r.Get(ctx, title.ID)
}

func (r *TitleRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM titles WHERE id = $1`, id)
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

func (r *TitleRepository) titleGenres(ctx context.Context, titleID int) ([]types.Genre, error) {
	const query = `
		SELECT g.id, g.name, g.slug
		FROM genres g
		JOIN title_genres tg ON tg.genre_id = g.id
		WHERE tg.title_id = $1
		ORDER BY g.id`
	rows, err := r.db.QueryContext(ctx, query, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := make([]types.Genre, 0, 4)
	for rows.Next() {
		var genre types.Genre
		if err := rows.Scan(&genre.ID, &genre.Name, &genre.Slug); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

func resolveCategory(ctx context.Context, tx *sql.Tx, slug string) (sql.NullInt64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE slug = $1`, slug).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.NullInt64{}, ErrUnknownCategory
		}
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func replaceGenres(ctx context.Context, tx *sql.Tx, titleID int, slugs []string) error {
	for _, slug := range slugs {
		var genreID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM genres WHERE slug = $1`, slug).Scan(&genreID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrUnknownGenre, slug)
			}
			return err
		}
		const insert = `
			INSERT INTO title_genres (title_id, genre_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, titleID, genreID); err != nil {
			return err
		}
	}
	return nil
}

func buildTitleFilter(filter types.TitleFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		clauses = append(clauses, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if filter.GenreSlug != "" {
		args = append(args, filter.GenreSlug)
		clauses = append(clauses, fmt.Sprintf(
			"t.id IN (SELECT tg.title_id FROM title_genres tg JOIN genres g ON g.id = tg.genre_id WHERE g.slug = $%d)",
			len(args)))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		clauses = append(clauses, fmt.Sprintf("t.year = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		clauses = append(clauses, fmt.Sprintf("t.name ILIKE '%%' || $%d || '%%'", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
