package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/internal/service"
	"github.com/MoonJiyun2/IdeaShelf/pkg/httputil"
	"github.com/MoonJiyun2/IdeaShelf/pkg/validator"
)

// multipartOverhead is allowed on top of the cover limit for the other
// form fields.
const multipartOverhead = 1 << 20

// APIHandler serves the JSON API under /api/v1.
type APIHandler struct {
	books   *service.BookService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(books *service.BookService, reviews *service.ReviewService, logger *slog.Logger) *APIHandler {
	return &APIHandler{books: books, reviews: reviews, logger: logger}
}

// --- Request DTOs ---

// CreateBookRequest is the JSON body of POST /api/v1/books.
type CreateBookRequest struct {
	Title  string `json:"title" validate:"required,notblank,max=300"`
	Author string `json:"author" validate:"max=200"`
	Genre  string `json:"genre" validate:"required,notblank,max=100"`
}

// CreateReviewRequest is the JSON body of POST /api/v1/books/{id}/reviews.
type CreateReviewRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Nickname string `json:"nickname" validate:"max=50"`
	Rating   *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	Content  string `json:"content" validate:"required,notblank,max=5000"`
}

// --- Response DTOs ---

type bookResponse struct {
	*domain.Book
	DisplayAuthor string `json:"display_author"`
	CoverURL      string `json:"cover_url,omitempty"`
}

type createBookResponse struct {
	Book    bookResponse `json:"book"`
	Created bool         `json:"created"`
}

type reviewResponse struct {
	domain.Review
	Stars string `json:"stars"`
}

type threadEntryResponse struct {
	Review reviewResponse `json:"review"`
	Depth  int            `json:"depth"`
}

type likeResponse struct {
	ID    int64 `json:"id"`
	Likes int   `json:"likes"`
}

func (h *APIHandler) bookResponse(r *http.Request, b *domain.Book) bookResponse {
	return bookResponse{
		Book:          b,
		DisplayAuthor: b.DisplayAuthor(),
		CoverURL:      h.books.CoverURL(r.Context(), b),
	}
}

func (h *APIHandler) bookList(r *http.Request, books []domain.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for i := range books {
		out = append(out, h.bookResponse(r, &books[i]))
	}
	return out
}

func reviewList(reviews []domain.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, reviewResponse{Review: rv, Stars: rv.Stars()})
	}
	return out
}

// --- Handlers ---

// ListGenres handles GET /api/v1/genres.
func (h *APIHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.books.ListGenres(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, genres)
}

// ListBooks handles GET /api/v1/books?genre= and GET /api/v1/books?q=.
// q takes precedence when both are given.
func (h *APIHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		books []domain.Book
		err   error
	)
	switch {
	case query.Has("q"):
		books, err = h.books.Search(r.Context(), query.Get("q"))
	case query.Has("genre"):
		books, err = h.books.ListByGenre(r.Context(), query.Get("genre"))
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "genre or q is required"},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.bookList(r, books))
}

// GetBook handles GET /api/v1/books/{id}.
func (h *APIHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	book, err := h.books.GetBook(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.bookResponse(r, book))
}

// CreateBook handles POST /api/v1/books. It accepts a JSON body, or a
// multipart form with an optional "cover" file.
func (h *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var input *service.AddBookInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		in, cleanup, err := parseBookForm(w, r, h.books.MaxCoverSize())
		if isTooLarge(err) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "TOO_LARGE", Message: service.CoverTooLargeMessage(h.books.MaxCoverSize())},
			})
			return
		}
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
			})
			return
		}
		defer cleanup()
		input = in
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req CreateBookRequest
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		input = &service.AddBookInput{Title: req.Title, Author: req.Author, Genre: req.Genre}
	}

	result, err := h.books.AddBook(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteData(w, status, createBookResponse{
		Book:    h.bookResponse(r, result.Book),
		Created: result.Created,
	})
}

// ListReviews handles GET /api/v1/books/{id}/reviews?parent_id=.
func (h *APIHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var parentID *int64
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		pid, ok := httputil.ParseID(w, "parent_id", raw)
		if !ok {
			return
		}
		parentID = &pid
	}

	reviews, err := h.reviews.ListReviews(r.Context(), bookID, parentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, reviewList(reviews))
}

// GetThread handles GET /api/v1/books/{id}/thread: every review of the book
// in display order with its nesting depth.
func (h *APIHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	bookID, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if _, err := h.books.GetBook(r.Context(), bookID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	thread, err := h.reviews.Thread(r.Context(), bookID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	entries := thread.Flatten()
	out := make([]threadEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, threadEntryResponse{
			Review: reviewResponse{Review: e.Review, Stars: e.Review.Stars()},
			Depth:  e.Depth,
		})
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// CreateReview handles POST /api/v1/books/{id}/reviews.
func (h *APIHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := httputil.ParseID(w, "book id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.AddReview(r.Context(), &service.AddReviewInput{
		BookID:   bookID,
		ParentID: req.ParentID,
		Nickname: req.Nickname,
		Rating:   req.Rating,
		Content:  req.Content,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, reviewResponse{Review: *review, Stars: review.Stars()})
}

// LikeReview handles POST /api/v1/reviews/{id}/like.
func (h *APIHandler) LikeReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "review id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	likes, err := h.reviews.Like(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, likeResponse{ID: id, Likes: likes})
}

// parseBookForm reads the add-book multipart form shared by the page and
// the API. The returned cleanup closes the cover file and removes any
// temporary files.
func parseBookForm(w http.ResponseWriter, r *http.Request, maxCover int64) (*service.AddBookInput, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCover+multipartOverhead)
	if err := r.ParseMultipartForm(maxCover); err != nil {
		return nil, func() {}, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	input := &service.AddBookInput{
		Title:  r.FormValue("title"),
		Author: r.FormValue("author"),
		Genre:  r.FormValue("genre"),
	}

	var file multipart.File
	cleanup := func() {
		if file != nil {
			_ = file.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	f, header, err := r.FormFile("cover")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to read cover: %w", err)
	case header.Size == 0:
		_ = f.Close()
	default:
		file = f
		input.Cover = f
		input.CoverName = header.Filename
	}

	return input, cleanup, nil
}

// isTooLarge reports whether err came from the request body limit.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
