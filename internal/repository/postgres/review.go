package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/pkg/database"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
)

const reviewColumns = `id, book_id, parent_id, nickname, rating, content, likes, created_at`

// Most liked first, then newest.
const reviewOrder = `ORDER BY likes DESC, created_at DESC, id DESC`

const (
	insertReviewSQL = `
		INSERT INTO reviews (book_id, parent_id, nickname, rating, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, likes, created_at`

	getReviewSQL = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	listTopLevelReviewsSQL = `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE book_id = $1 AND parent_id IS NULL
		` + reviewOrder

	listRepliesSQL = `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE book_id = $1 AND parent_id = $2
		` + reviewOrder

	listAllReviewsSQL = `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE book_id = $1
		` + reviewOrder

	incrementLikesSQL = `UPDATE reviews SET likes = likes + 1 WHERE id = $1 RETURNING likes`
)

// Constraint names from migrations/000002_create_reviews.up.sql.
const (
	reviewBookFK   = "reviews_book_id_fkey"
	reviewParentFK = "reviews_parent_same_book_fkey"
)

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts review. The database assigns id, likes and a creation time
// truncated to the second, which are copied back into review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReview", insertReviewSQL)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, insertReviewSQL,
		review.BookID,
		review.ParentID,
		review.Nickname,
		review.Rating,
		review.Content,
	).Scan(&review.ID, &review.Likes, &review.CreatedAt)
	if err != nil {
		code, constraint := pgErrorCode(err)
		switch {
		case code == foreignKeyViolation && constraint == reviewBookFK:
			return apperrors.NotFound("book", review.BookID)
		case code == foreignKeyViolation:
			return apperrors.InvalidInput("답글을 달 감상평을 이 책에서 찾을 수 없습니다.")
		case code == checkViolation:
			return apperrors.InvalidInput("감상평을 입력해주세요.")
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (review *domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "GetReview", getReviewSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, getReviewSQL, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if len(reviews) == 0 {
		return nil, apperrors.NotFound("review", id)
	}
	return &reviews[0], nil
}

// ListByBook returns the top-level reviews of a book, or the direct replies
// to parentID when it is set.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID int64, parentID *int64) (reviews []domain.Review, err error) {
	query, args := listTopLevelReviewsSQL, []any{bookID}
	if parentID != nil {
		query, args = listRepliesSQL, []any{bookID, *parentID}
	}

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	reviews, err = collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// ListAllByBook returns every review of a book in one query, ordered the
// same way as ListByBook so a thread built from it keeps sibling order.
func (r *ReviewRepository) ListAllByBook(ctx context.Context, bookID int64) (reviews []domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "ListAllReviews", listAllReviewsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, listAllReviewsSQL, bookID)
	if err != nil {
		return nil, fmt.Errorf("list all reviews: %w", err)
	}
	reviews, err = collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("list all reviews: %w", err)
	}
	return reviews, nil
}

// IncrementLikes adds exactly one like and returns the new total.
func (r *ReviewRepository) IncrementLikes(ctx context.Context, id int64) (likes int, err error) {
	ctx, end := database.TraceQuery(ctx, "IncrementLikes", incrementLikesSQL)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, incrementLikesSQL, id).Scan(&likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment likes: %w", err)
	}
	return likes, nil
}

func collectReviews(rows pgx.Rows) ([]domain.Review, error) {
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.BookID,
			&rv.ParentID,
			&rv.Nickname,
			&rv.Rating,
			&rv.Content,
			&rv.Likes,
			&rv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, nil
}
