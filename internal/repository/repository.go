package repository

import (
	"context"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
)

// BookRepository defines the interface for book persistence operations.
type BookRepository interface {
	// ListGenres returns the distinct genres in alphabetical order.
	ListGenres(ctx context.Context) ([]string, error)

	// ListByGenre returns the books of one genre ordered by title.
	ListByGenre(ctx context.Context, genre string) ([]domain.Book, error)

	// Search returns books whose title or author contains term, ignoring
	// case, ordered by title.
	Search(ctx context.Context, term string) ([]domain.Book, error)

	// GetByID retrieves a book by its identifier.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// InsertOrIgnore stores book unless its title is already taken. It
	// returns the id of the stored or pre-existing row and whether a new row
	// was created. Existing rows are never modified.
	InsertOrIgnore(ctx context.Context, book *domain.Book) (id int64, created bool, err error)

	// Seed inserts books with insert-or-ignore semantics in one transaction
	// and returns how many were new.
	Seed(ctx context.Context, books []domain.Book) (int, error)
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts review and fills in its ID and CreatedAt.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its identifier.
	GetByID(ctx context.Context, id int64) (*domain.Review, error)

	// ListByBook returns one level of a book's reviews: the top-level ones
	// when parentID is nil, else the direct replies to *parentID.
	ListByBook(ctx context.Context, bookID int64, parentID *int64) ([]domain.Review, error)

	// ListAllByBook returns every review of a book, replies included.
	ListAllByBook(ctx context.Context, bookID int64) ([]domain.Review, error)

	// IncrementLikes adds one like and returns the new count.
	IncrementLikes(ctx context.Context, id int64) (int, error)
}
