package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/internal/event"
	"github.com/MoonJiyun2/IdeaShelf/internal/repository"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
)

// Review error messages shown to users.
const (
	msgContentRequired = "감상평을 입력해주세요."
	msgRatingRange     = "평점은 1점에서 5점 사이여야 합니다."
	msgParentOtherBook = "다른 책의 감상평에는 답글을 달 수 없습니다."
)

// ReviewService implements the business logic for reviews and replies.
type ReviewService struct {
	repo     repository.ReviewRepository
	books    repository.BookRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	repo repository.ReviewRepository,
	books repository.BookRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		repo:     repo,
		books:    books,
		producer: producer,
		logger:   logger,
	}
}

// AddReviewInput holds a new review or reply. Rating is optional.
type AddReviewInput struct {
	BookID   int64
	ParentID *int64
	Nickname string
	Rating   *int
	Content  string
}

// AddReview stores a review after checking the book exists and, for a
// reply, that the parent belongs to the same book. A blank nickname becomes
// "익명".
func (s *ReviewService) AddReview(ctx context.Context, input *AddReviewInput) (*domain.Review, error) {
	content := domain.Normalize(input.Content)
	if content == "" {
		return nil, apperrors.InvalidInput(msgContentRequired)
	}
	if input.Rating != nil && !domain.ValidRating(*input.Rating) {
		return nil, apperrors.InvalidInput(msgRatingRange)
	}

	if _, err := s.books.GetByID(ctx, input.BookID); err != nil {
		return nil, fmt.Errorf("get book for review: %w", err)
	}

	if input.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("get parent review: %w", err)
		}
		if parent.BookID != input.BookID {
			return nil, apperrors.InvalidInput(msgParentOtherBook)
		}
	}

	review := &domain.Review{
		BookID:   input.BookID,
		ParentID: input.ParentID,
		Nickname: domain.Nickname(input.Nickname),
		Rating:   input.Rating,
		Content:  content,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review added",
		slog.Int64("review_id", review.ID),
		slog.Int64("book_id", review.BookID),
		slog.Bool("reply", review.ParentID != nil),
	)

	return review, nil
}

// Reply stores a reply to parentID on the parent's book.
func (s *ReviewService) Reply(ctx context.Context, parentID int64, nickname, content string) (*domain.Review, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("get parent review: %w", err)
	}
	return s.AddReview(ctx, &AddReviewInput{
		BookID:   parent.BookID,
		ParentID: &parent.ID,
		Nickname: nickname,
		Content:  content,
	})
}

// ListReviews returns one level of a book's reviews: top-level ones when
// parentID is nil, otherwise the direct replies to it.
func (s *ReviewService) ListReviews(ctx context.Context, bookID int64, parentID *int64) ([]domain.Review, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, fmt.Errorf("get book for reviews: %w", err)
	}

	reviews, err := s.repo.ListByBook(ctx, bookID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Thread loads every review of a book with one query and arranges them
// into the reply forest.
func (s *ReviewService) Thread(ctx context.Context, bookID int64) (*domain.Thread, error) {
	reviews, err := s.repo.ListAllByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load review thread: %w", err)
	}
	return domain.BuildThread(reviews), nil
}

// Like adds one like to a review and returns the new count.
func (s *ReviewService) Like(ctx context.Context, id int64) (int, error) {
	likes, err := s.repo.IncrementLikes(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("like review: %w", err)
	}

	if err := s.producer.PublishReviewLiked(ctx, id, likes); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.liked event",
			slog.Int64("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	return likes, nil
}
