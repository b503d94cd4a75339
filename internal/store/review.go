package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/reviewdb/apiserver/types"
)

// ReviewRepository handles persistence for reviews. Every query is scoped
// by title so a review is only reachable under the title it belongs to.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewSelect = `
	SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
	FROM reviews r
	JOIN users u ON u.id = r.author_id`

func scanReview(row interface{ Scan(...any) error }) (types.Review, error) {
	var review types.Review
	err := row.Scan(
		&review.ID,
		&review.TitleID,
		&review.AuthorID,
		&review.Author,
		&review.Text,
		&review.Score,
		&review.PubDate,
	)
	return review, err
}

func (r *ReviewRepository) ListByTitle(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	const countQuery = `SELECT COUNT(1) FROM reviews WHERE title_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, titleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = reviewSelect + `
		WHERE r.title_id = $1
		ORDER BY r.id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, titleID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0, limit)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *ReviewRepository) Get(ctx context.Context, titleID, id int) (types.Review, error) {
	const query = reviewSelect + ` WHERE r.title_id = $1 AND r.id = $2`
	review, err := scanReview(r.db.QueryRowContext(ctx, query, titleID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	review.PubDate = time.Now()

	const query = `
		INSERT INTO reviews (title_id, author_id, text, score, pub_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		review.TitleID,
		review.AuthorID,
		review.Text,
		review.Score,
		review.PubDate,
	).Scan(&review.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Review{}, ErrConflict
		}
		return types.Review{}, err
	}
	return r.Get(ctx, review.TitleID, review.ID)
}

func (r *ReviewRepository) Update(ctx context.Context, review types.Review) (types.Review, error) {
	const query = `
		UPDATE reviews
		SET text = $1,
			score = $2
		WHERE title_id = $3 AND id = $4`
	result, err := r.db.ExecContext(ctx, query, review.Text, review.Score, review.TitleID, review.ID)
	if err != nil {
		return types.Review{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Review{}, err
	}
	if affected == 0 {
		return types.Review{}, ErrNotFound
	}
	return r.Get(ctx, review.TitleID, review.ID)
}

func (r *ReviewRepository) Delete(ctx context.Context, titleID, id int) error {
	const query = `DELETE FROM reviews WHERE title_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, titleID, id)
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
