package services

import (
	"context"

	"github.com/reviewdb/apiserver/types"
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	ListByTitle(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error)
	Get(ctx context.Context, titleID, id int) (types.Review, error)
	Create(ctx context.Context, review types.Review) (types.Review, error)
	Update(ctx context.Context, review types.Review) (types.Review, error)
	Delete(ctx context.Context, titleID, id int) error
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByReview(ctx context.Context, reviewID, offset, limit int) ([]types.Comment, int, error)
	Get(ctx context.Context, reviewID, id int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, reviewID, id int) error
}

// ReviewService encapsulates review use-cases.
type ReviewService struct {
	repo ReviewRepository
}

func NewReviewService(repo ReviewRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

func (s *ReviewService) ListByTitle(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error) {
	return s.repo.ListByTitle(ctx, titleID, offset, limit)
}

func (s *ReviewService) Get(ctx context.Context, titleID, id int) (types.Review, error) {
	return s.repo.Get(ctx, titleID, id)
}

func (s *ReviewService) Create(ctx context.Context, review types.Review) (types.Review, error) {
	return s.repo.Create(ctx, review)
}

func (s *ReviewService) Update(ctx context.Context, review types.Review) (types.Review, error) {
	return s.repo.Update(ctx, review)
}

func (s *ReviewService) Delete(ctx context.Context, titleID, id int) error {
	return s.repo.Delete(ctx, titleID, id)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	repo CommentRepository
}

func NewCommentService(repo CommentRepository) *CommentService {
	return &CommentService{repo: repo}
}

func (s *CommentService) ListByReview(ctx context.Context, reviewID, offset, limit int) ([]types.Comment, int, error) {
	return s.repo.ListByReview(ctx, reviewID, offset, limit)
}

func (s *CommentService) Get(ctx context.Context, reviewID, id int) (types.Comment, error) {
	return s.repo.Get(ctx, reviewID, id)
}

func (s *CommentService) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	return s.repo.Create(ctx, comment)
}

func (s *CommentService) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	return s.repo.Update(ctx, comment)
}

func (s *CommentService) Delete(ctx context.Context, reviewID, id int) error {
	return s.repo.Delete(ctx, reviewID, id)
}
