package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/pkg/database"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
)

const bookColumns = `id, title, author, genre, cover_path, created_at`

const (
	listGenresSQL = `SELECT DISTINCT genre FROM books ORDER BY genre`

	listBooksByGenreSQL = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE genre = $1
		ORDER BY title`

	searchBooksSQL = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE $1 OR author ILIKE $1
		ORDER BY title`

	getBookSQL = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	// The no-op update makes RETURNING yield the existing row on conflict.
	// xmax is zero only for a freshly inserted tuple.
	insertOrIgnoreBookSQL = `
		INSERT INTO books (title, author, genre, cover_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
		RETURNING id, created_at, (xmax = 0) AS created`

	seedBookSQL = `
		INSERT INTO books (title, author, genre)
		VALUES ($1, $2, $3)
		ON CONFLICT (title) DO NOTHING`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere, with LIKE
// wildcards in term taken literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// BookRepository implements book persistence operations using PostgreSQL.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

// ListGenres returns the distinct genres in alphabetical order.
func (r *BookRepository) ListGenres(ctx context.Context) (genres []string, err error) {
	ctx, end := database.TraceQuery(ctx, "ListGenres", listGenresSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, listGenresSQL)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	genres = []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan genre row: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genre rows: %w", err)
	}

	return genres, nil
}

// ListByGenre returns the books of genre ordered by title.
func (r *BookRepository) ListByGenre(ctx context.Context, genre string) (books []domain.Book, err error) {
	ctx, end := database.TraceQuery(ctx, "ListBooksByGenre", listBooksByGenreSQL)
	defer func() { end(err) }()

	books, err = r.queryBooks(ctx, listBooksByGenreSQL, genre)
	if err != nil {
		return nil, fmt.Errorf("list books by genre: %w", err)
	}
	return books, nil
}

// Search matches term against title and author, case-insensitively.
func (r *BookRepository) Search(ctx context.Context, term string) (books []domain.Book, err error) {
	ctx, end := database.TraceQuery(ctx, "SearchBooks", searchBooksSQL)
	defer func() { end(err) }()

	books, err = r.queryBooks(ctx, searchBooksSQL, containsPattern(term))
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

// GetByID retrieves a book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (book *domain.Book, err error) {
	ctx, end := database.TraceQuery(ctx, "GetBook", getBookSQL)
	defer func() { end(err) }()

	var b domain.Book
	err = r.pool.QueryRow(ctx, getBookSQL, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.CoverPath, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// InsertOrIgnore stores book in a single statement. On a duplicate title the
// existing row's id is returned with created=false and the row is left as
// it was. book.ID and book.CreatedAt are set only for a new row.
func (r *BookRepository) InsertOrIgnore(ctx context.Context, book *domain.Book) (id int64, created bool, err error) {
	ctx, end := database.TraceQuery(ctx, "InsertOrIgnoreBook", insertOrIgnoreBookSQL)
	defer func() { end(err) }()

	var b domain.Book
	err = r.pool.QueryRow(ctx, insertOrIgnoreBookSQL,
		book.Title,
		book.Author,
		book.Genre,
		book.CoverPath,
	).Scan(&b.ID, &b.CreatedAt, &created)
	if err != nil {
		if code, _ := pgErrorCode(err); code == checkViolation {
			return 0, false, apperrors.InvalidInput("제목과 장르는 필수입니다.")
		}
		return 0, false, fmt.Errorf("insert book: %w", err)
	}

	if created {
		book.ID = b.ID
		book.CreatedAt = b.CreatedAt
	}
	return b.ID, created, nil
}

// Seed inserts books inside one transaction, skipping titles that already
// exist, and returns the number of rows added.
func (r *BookRepository) Seed(ctx context.Context, books []domain.Book) (inserted int, err error) {
	ctx, end := database.TraceQuery(ctx, "SeedBooks", seedBookSQL)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed transaction: %w", err)
	}

	for _, b := range books {
		tag, err := tx.Exec(ctx, seedBookSQL, b.Title, b.Author, b.Genre)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("seed book %q: %w", b.Title, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed transaction: %w", err)
	}
	return inserted, nil
}

func (r *BookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]domain.Book, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.CoverPath, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}

	return books, nil
}
