package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/internal/event"
	"github.com/MoonJiyun2/IdeaShelf/internal/repository"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
)

const msgTitleAndGenreRequired = "제목과 장르는 필수입니다."

// BookService implements the business logic for the catalogue.
type BookService struct {
	repo     repository.BookRepository
	covers   *CoverService
	producer *event.Producer
	logger   *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(
	repo repository.BookRepository,
	covers *CoverService,
	producer *event.Producer,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		repo:     repo,
		covers:   covers,
		producer: producer,
		logger:   logger,
	}
}

// AddBookInput holds the add-book form. Cover is optional.
type AddBookInput struct {
	Title     string
	Author    string
	Genre     string
	CoverName string
	Cover     io.Reader
}

// AddBookResult reports the stored book and whether it is new. For a
// duplicate title Book is the pre-existing row.
type AddBookResult struct {
	Book    *domain.Book
	Created bool
}

// ListGenres returns every genre in alphabetical order.
func (s *BookService) ListGenres(ctx context.Context) ([]string, error) {
	genres, err := s.repo.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// ListByGenre returns the books of genre ordered by title.
func (s *BookService) ListByGenre(ctx context.Context, genre string) ([]domain.Book, error) {
	genre = domain.Normalize(genre)
	if genre == "" {
		return []domain.Book{}, nil
	}

	books, err := s.repo.ListByGenre(ctx, genre)
	if err != nil {
		return nil, fmt.Errorf("list books by genre: %w", err)
	}
	return books, nil
}

// Search finds books whose title or author contains term. A blank term
// matches nothing.
func (s *BookService) Search(ctx context.Context, term string) ([]domain.Book, error) {
	term = domain.Normalize(term)
	if term == "" {
		return []domain.Book{}, nil
	}

	books, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

// GetBook retrieves a book by ID.
func (s *BookService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// AddBook validates the form, stores the optional cover and inserts the
// book. A title that already exists is not an error: the existing book is
// returned unchanged and the new cover is discarded.
func (s *BookService) AddBook(ctx context.Context, input *AddBookInput) (*AddBookResult, error) {
	book := &domain.Book{
		Title:  domain.Normalize(input.Title),
		Author: domain.Normalize(input.Author),
		Genre:  domain.Normalize(input.Genre),
	}
	if book.Title == "" || book.Genre == "" {
		return nil, apperrors.InvalidInput(msgTitleAndGenreRequired)
	}

	var coverKey string
	if input.Cover != nil {
		res, err := s.covers.Save(ctx, input.CoverName, input.Cover)
		if err != nil {
			return nil, fmt.Errorf("save cover: %w", err)
		}
		coverKey = res.Key
		book.CoverPath = &coverKey
	}

	id, created, err := s.repo.InsertOrIgnore(ctx, book)
	if err != nil {
		if coverKey != "" {
			s.covers.Discard(ctx, coverKey)
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	if !created {
		if coverKey != "" {
			s.covers.Discard(ctx, coverKey)
		}
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load existing book: %w", err)
		}
		s.logger.InfoContext(ctx, "book already catalogued",
			slog.Int64("book_id", id),
			slog.String("title", book.Title),
		)
		return &AddBookResult{Book: existing, Created: false}, nil
	}

	if err := s.producer.PublishBookCreated(ctx, book); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish book.created event",
			slog.Int64("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "book added",
		slog.Int64("book_id", book.ID),
		slog.String("title", book.Title),
		slog.String("genre", book.Genre),
		slog.Bool("has_cover", book.HasCover()),
	)

	return &AddBookResult{Book: book, Created: true}, nil
}

// CoverURL resolves the browser URL of a book's cover, "" when it has none.
func (s *BookService) CoverURL(ctx context.Context, book *domain.Book) string {
	if !book.HasCover() {
		return ""
	}
	return s.covers.URL(ctx, *book.CoverPath)
}

// MaxCoverSize returns the largest accepted cover upload in bytes.
func (s *BookService) MaxCoverSize() int64 {
	return s.covers.MaxSize()
}

// Seed loads the sample catalogue. Titles already present are skipped.
func (s *BookService) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.Seed(ctx, domain.SampleBooks)
	if err != nil {
		return 0, fmt.Errorf("seed books: %w", err)
	}
	s.logger.InfoContext(ctx, "sample books seeded",
		slog.Int("inserted", n),
		slog.Int("total", len(domain.SampleBooks)),
	)
	return n, nil
}
