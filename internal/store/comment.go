package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/reviewdb/apiserver/types"
)

// CommentRepository handles persistence for comments, scoped by review.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentSelect = `
	SELECT c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
	FROM comments c
	JOIN users u ON u.id = c.author_id`

func scanComment(row interface{ Scan(...any) error }) (types.Comment, error) {
	var comment types.Comment
	err := row.Scan(
		&comment.ID,
		&comment.ReviewID,
		&comment.AuthorID,
		&comment.Author,
		&comment.Text,
		&comment.PubDate,
	)
	return comment, err
}

func (r *CommentRepository) ListByReview(ctx context.Context, reviewID, offset, limit int) ([]types.Comment, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	const countQuery = `SELECT COUNT(1) FROM comments WHERE review_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, reviewID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = commentSelect + `
		WHERE c.review_id = $1
		ORDER BY c.id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, reviewID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0, limit)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

func (r *CommentRepository) Get(ctx context.Context, reviewID, id int) (types.Comment, error) {
	const query = commentSelect + ` WHERE c.review_id = $1 AND c.id = $2`
	comment, err := scanComment(r.db.QueryRowContext(ctx, query, reviewID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.PubDate = time.Now()

	const query = `
		INSERT INTO comments (review_id, author_id, text, pub_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.ReviewID,
		comment.AuthorID,
		comment.Text,
		comment.PubDate,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return r.Get(ctx, comment.ReviewID, comment.ID)
}

func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET text = $1
		WHERE review_id = $2 AND id = $3`
	result, err := r.db.ExecContext(ctx, query, comment.Text, comment.ReviewID, comment.ID)
	if err != nil {
		return types.Comment{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Comment{}, err
	}
	if affected == 0 {
		return types.Comment{}, ErrNotFound
	}
	return r.Get(ctx, comment.ReviewID, comment.ID)
}

func (r *CommentRepository) Delete(ctx context.Context, reviewID, id int) error {
	const query = `DELETE FROM comments WHERE review_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, reviewID, id)
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
