package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
)

var reviewCols = []string{"id", "book_id", "parent_id", "nickname", "rating", "content", "likes", "created_at"}

func reviewRow(r domain.Review) []any {
	return []any{r.ID, r.BookID, r.ParentID, r.Nickname, r.Rating, r.Content, r.Likes, r.CreatedAt}
}

func TestReviewRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	review := &domain.Review{BookID: 9, Nickname: "익명", Rating: intPtr(5), Content: "좋은 책"}

	mock.ExpectQuery("INSERT INTO reviews .+ RETURNING id, likes, created_at").
		WithArgs(int64(9), (*int64)(nil), "익명", intPtr(5), "좋은 책").
		WillReturnRows(pgxmock.NewRows([]string{"id", "likes", "created_at"}).AddRow(int64(1), 0, now))

	err := repo.Create(context.Background(), review)

	require.NoError(t, err)
	assert.Equal(t, int64(1), review.ID)
	assert.Equal(t, 0, review.Likes)
	assert.Equal(t, now, review.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_ForeignKeyViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"missing book", reviewBookFK, apperrors.ErrNotFound},
		{"parent on another book", reviewParentFK, apperrors.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewReviewRepository(mock)

			review := &domain.Review{BookID: 9, ParentID: int64Ptr(3), Nickname: "익명", Content: "답글"}

			mock.ExpectQuery("INSERT INTO reviews").
				WithArgs(int64(9), int64Ptr(3), "익명", (*int)(nil), "답글").
				WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: tc.constraint})

			err := repo.Create(context.Background(), review)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReviewRepository_Create_BlankContentRejected(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(int64(9), (*int64)(nil), "익명", (*int)(nil), "   ").
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "reviews_content_not_blank"})

	err := repo.Create(context.Background(), &domain.Review{BookID: 9, Nickname: "익명", Content: "   "})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	want := domain.Review{ID: 4, BookID: 9, ParentID: int64Ptr(1), Nickname: "책벌레", Content: "동의합니다", Likes: 2, CreatedAt: now}

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(want)...))

	got, err := repo.GetByID(context.Background(), 4)

	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(reviewCols))

	got, err := repo.GetByID(context.Background(), 4)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByBook_TopLevel(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	liked := domain.Review{ID: 2, BookID: 9, Nickname: "A", Rating: intPtr(4), Content: "x", Likes: 3, CreatedAt: now}
	fresh := domain.Review{ID: 5, BookID: 9, Nickname: "B", Content: "y", CreatedAt: now}

	mock.ExpectQuery(`SELECT .+ FROM reviews WHERE book_id = \$1 AND parent_id IS NULL ORDER BY likes DESC, created_at DESC, id DESC$`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(liked)...).AddRow(reviewRow(fresh)...))

	reviews, err := repo.ListByBook(context.Background(), 9, nil)

	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, int64(2), reviews[0].ID)
	require.NotNil(t, reviews[0].Rating)
	assert.Equal(t, 4, *reviews[0].Rating)
	assert.Nil(t, reviews[1].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByBook_Replies(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	reply := domain.Review{ID: 7, BookID: 9, ParentID: int64Ptr(2), Nickname: "익명", Content: "reply", CreatedAt: now}

	mock.ExpectQuery(`SELECT .+ FROM reviews WHERE book_id = \$1 AND parent_id = \$2 ORDER BY likes DESC, created_at DESC, id DESC$`).
		WithArgs(int64(9), int64(2)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(reply)...))

	reviews, err := repo.ListByBook(context.Background(), 9, int64Ptr(2))

	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].ParentID)
	assert.Equal(t, int64(2), *reviews[0].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListAllByBook(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	root := domain.Review{ID: 1, BookID: 9, Nickname: "A", Content: "root", CreatedAt: now}
	child := domain.Review{ID: 2, BookID: 9, ParentID: int64Ptr(1), Nickname: "B", Content: "child", CreatedAt: now}

	mock.ExpectQuery(`SELECT .+ FROM reviews WHERE book_id = \$1 ORDER BY likes DESC, created_at DESC, id DESC$`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(root)...).AddRow(reviewRow(child)...))

	reviews, err := repo.ListAllByBook(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, []domain.Review{root, child}, reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListAllByBook_Error(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE book_id").
		WithArgs(int64(9)).
		WillReturnError(errors.New("timeout"))

	reviews, err := repo.ListAllByBook(context.Background(), 9)

	require.Error(t, err)
	assert.Nil(t, reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_IncrementLikes(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery(`UPDATE reviews SET likes = likes \+ 1 WHERE id = \$1 RETURNING likes`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(4))

	likes, err := repo.IncrementLikes(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 4, likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_IncrementLikes_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("UPDATE reviews SET likes").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"likes"}))

	_, err := repo.IncrementLikes(context.Background(), 404)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
