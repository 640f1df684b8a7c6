package http

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/internal/service"
	"github.com/MoonJiyun2/IdeaShelf/internal/session"
	"github.com/MoonJiyun2/IdeaShelf/internal/view"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
	"github.com/MoonJiyun2/IdeaShelf/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page messages.
const (
	msgInternal        = "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	msgBookNotFound    = "도서를 찾을 수 없습니다."
	msgReviewNotFound  = "감상평을 찾을 수 없습니다."
	msgNoBookSelected  = "먼저 책을 선택해주세요."
	msgEmptyGenre      = "해당 장르에 등록된 책이 아직 없습니다. 사이드바에서 도서를 직접 추가할 수 있어요."
	msgNoResults       = "검색 결과가 없습니다. 정확한 제목/저자를 다시 시도하거나, 사이드바에서 도서를 직접 추가해보세요."
	msgEmptyQuery      = "검색어를 입력해주세요."
	msgNoReviews       = "아직 등록된 감상평이 없습니다. 첫 감상평을 남겨보세요!"
	msgBookAdded       = "도서가 등록되었습니다: "
	msgReviewAdded     = "감상평이 등록되었습니다!"
	msgReplyAdded      = "답글이 등록되었습니다!"
	msgInvalidBookForm = "도서 정보를 읽을 수 없습니다."
)

const timeLayout = "2006-01-02 15:04:05"

// indentStep is the left margin per reply level, in pixels.
const indentStep = 24

var templateFuncs = template.FuncMap{
	"indent": func(depth int) int { return depth * indentStep },
	"datetime": func(t time.Time) string {
		return t.Local().Format(timeLayout)
	},
}

func parseTemplates() *template.Template {
	return template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"))
}

// PageHandler serves the HTML pages. GET / renders whatever the session is
// looking at; every other page route applies one action to the session and
// redirects back to /.
type PageHandler struct {
	books     *service.BookService
	reviews   *service.ReviewService
	sessions  *session.Manager
	templates *template.Template
	logger    *slog.Logger
}

// NewPageHandler creates a new page handler.
func NewPageHandler(
	books *service.BookService,
	reviews *service.ReviewService,
	sessions *session.Manager,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		books:     books,
		reviews:   reviews,
		sessions:  sessions,
		templates: parseTemplates(),
		logger:    logger,
	}
}

// --- View models ---

type notice struct {
	Level   string
	Message string
}

type bookView struct {
	ID       int64
	Title    string
	Author   string
	Genre    string
	CoverURL string
}

type entryView struct {
	ID        int64
	Nickname  string
	Stars     string
	Content   string
	Likes     int
	CreatedAt time.Time
	Depth     int
}

type detailView struct {
	Book        bookView
	ReviewCount int
	Entries     []entryView
}

type pageView struct {
	Page     string
	State    view.State
	Flash    *session.Flash
	Notice   *notice
	Genres   []string
	Books    []bookView
	Detail   *detailView
	MaxCover string
}

func (h *PageHandler) bookView(ctx context.Context, b *domain.Book) bookView {
	return bookView{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.DisplayAuthor(),
		Genre:    b.Genre,
		CoverURL: h.books.CoverURL(ctx, b),
	}
}

// --- Rendering ---

// Index handles GET /.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := h.sessions.Render(ctx)

	pv := &pageView{
		Page:     string(data.State.Page),
		State:    data.State,
		Flash:    data.Flash,
		MaxCover: service.FormatSize(h.books.MaxCoverSize()),
	}

	genres, err := h.books.ListGenres(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pv.Genres = genres

	switch data.State.Page {
	case view.PageBrowse:
		err = h.fillBrowse(ctx, pv)
	case view.PageSearch:
		err = h.fillSearch(ctx, pv)
	case view.PageDetail:
		err = h.fillDetail(ctx, pv)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pv)
}

func (h *PageHandler) fillBrowse(ctx context.Context, pv *pageView) error {
	books, err := h.books.ListByGenre(ctx, pv.State.Genre)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		pv.Notice = &notice{Level: session.LevelInfo, Message: msgEmptyGenre}
	}
	for i := range books {
		pv.Books = append(pv.Books, h.bookView(ctx, &books[i]))
	}
	return nil
}

func (h *PageHandler) fillSearch(ctx context.Context, pv *pageView) error {
	if domain.Normalize(pv.State.Query) == "" {
		pv.Notice = &notice{Level: session.LevelInfo, Message: msgEmptyQuery}
		return nil
	}
	books, err := h.books.Search(ctx, pv.State.Query)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		pv.Notice = &notice{Level: session.LevelWarning, Message: msgNoResults}
	}
	for i := range books {
		pv.Books = append(pv.Books, h.bookView(ctx, &books[i]))
	}
	return nil
}

func (h *PageHandler) fillDetail(ctx context.Context, pv *pageView) error {
	if pv.State.BookID <= 0 {
		pv.Notice = &notice{Level: session.LevelInfo, Message: msgNoBookSelected}
		return nil
	}

	book, err := h.books.GetBook(ctx, pv.State.BookID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			pv.Notice = &notice{Level: session.LevelError, Message: msgBookNotFound}
			return nil
		}
		return err
	}

	thread, err := h.reviews.Thread(ctx, book.ID)
	if err != nil {
		return err
	}

	detail := &detailView{Book: h.bookView(ctx, book), ReviewCount: thread.Len()}
	for _, e := range thread.Flatten() {
		detail.Entries = append(detail.Entries, entryView{
			ID:        e.Review.ID,
			Nickname:  e.Review.Nickname,
			Stars:     e.Review.Stars(),
			Content:   e.Review.Content,
			Likes:     e.Review.Likes,
			CreatedAt: e.Review.CreatedAt,
			Depth:     e.Depth,
		})
	}
	if len(detail.Entries) == 0 {
		pv.Notice = &notice{Level: session.LevelInfo, Message: msgNoReviews}
	}
	pv.Detail = detail
	return nil
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, pv *pageView) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "layout", pv); err != nil {
		h.log(r).ErrorContext(r.Context(), "failed to render page",
			slog.String("page", pv.Page),
			slog.String("error", err.Error()),
		)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.log(r).ErrorContext(r.Context(), "failed to load page",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
	)
	h.render(w, r, http.StatusInternalServerError, &pageView{
		Page:   string(view.PageHome),
		State:  view.Initial(),
		Notice: &notice{Level: session.LevelError, Message: msgInternal},
	})
}

// --- Navigation ---

// Home handles GET /home.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, view.Home(), nil)
}

// Search handles GET /search?q=.
func (h *PageHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := domain.Normalize(r.URL.Query().Get("q"))
	if q == "" {
		h.commit(w, r, view.Search(""), &session.Flash{Level: session.LevelInfo, Message: msgEmptyQuery})
		return
	}
	h.commit(w, r, view.Search(q), nil)
}

// SelectGenre handles GET /genre?genre=.
func (h *PageHandler) SelectGenre(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, view.SelectGenre(domain.Normalize(r.URL.Query().Get("genre"))), nil)
}

// SelectBook handles GET /books/{id}.
func (h *PageHandler) SelectBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.commit(w, r, view.Action{}, &session.Flash{Level: session.LevelError, Message: msgBookNotFound})
		return
	}
	h.commit(w, r, view.SelectBook(id), nil)
}

// Back handles POST /back.
func (h *PageHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, view.Back(), nil)
}

// --- Forms ---

// AddBook handles POST /books, the sidebar add-book form.
func (h *PageHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	input, cleanup, err := parseBookForm(w, r, h.books.MaxCoverSize())
	if err != nil {
		h.log(r).InfoContext(r.Context(), "rejected add-book form", slog.String("error", err.Error()))
		msg := msgInvalidBookForm
		if isTooLarge(err) {
			msg = service.CoverTooLargeMessage(h.books.MaxCoverSize())
		}
		h.commit(w, r, view.Action{}, &session.Flash{Level: session.LevelWarning, Message: msg})
		return
	}
	defer cleanup()

	result, err := h.books.AddBook(r.Context(), input)
	if err != nil {
		h.commit(w, r, view.Action{}, h.errorFlash(r, err, msgBookNotFound))
		return
	}

	h.commit(w, r, view.BookAdded(result.Book.ID), &session.Flash{
		Level:   session.LevelSuccess,
		Message: msgBookAdded + result.Book.Title,
	})
}

// AddReview handles POST /books/{id}/reviews.
func (h *PageHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r)
	if !ok {
		h.commit(w, r, view.Action{}, &session.Flash{Level: session.LevelError, Message: msgBookNotFound})
		return
	}

	_, err := h.reviews.AddReview(r.Context(), &service.AddReviewInput{
		BookID:   bookID,
		Nickname: r.PostFormValue("nickname"),
		Rating:   domain.ParseRating(r.PostFormValue("rating")),
		Content:  r.PostFormValue("content"),
	})
	if err != nil {
		h.commit(w, r, view.Action{}, h.errorFlash(r, err, msgBookNotFound))
		return
	}
	h.commit(w, r, view.SelectBook(bookID), &session.Flash{Level: session.LevelSuccess, Message: msgReviewAdded})
}

// AddReply handles POST /reviews/{id}/replies.
func (h *PageHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	parentID, ok := pathID(r)
	if !ok {
		h.commit(w, r, view.Action{}, &session.Flash{Level: session.LevelError, Message: msgReviewNotFound})
		return
	}

	reply, err := h.reviews.Reply(r.Context(), parentID, r.PostFormValue("nickname"), r.PostFormValue("content"))
	if err != nil {
		h.commit(w, r, view.Action{}, h.errorFlash(r, err, msgReviewNotFound))
		return
	}
	h.commit(w, r, view.SelectBook(reply.BookID), &session.Flash{Level: session.LevelSuccess, Message: msgReplyAdded})
}

// LikeReview handles POST /reviews/{id}/like.
func (h *PageHandler) LikeReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.commit(w, r, view.Action{}, &session.Flash{Level: session.LevelError, Message: msgReviewNotFound})
		return
	}

	if _, err := h.reviews.Like(r.Context(), id); err != nil {
		h.commit(w, r, view.Action{}, h.errorFlash(r, err, msgReviewNotFound))
		return
	}
	h.commit(w, r, view.Action{}, nil)
}

// commit applies action and flash to the session in one save, then
// redirects to /. A zero action leaves the page unchanged.
func (h *PageHandler) commit(w http.ResponseWriter, r *http.Request, action view.Action, flash *session.Flash) {
	err := h.sessions.Update(r.Context(), func(d session.Data) session.Data {
		d.State = view.Transition(d.State, action)
		if flash != nil {
			d.Flash = flash
		}
		return d
	})
	if err != nil {
		h.log(r).ErrorContext(r.Context(), "failed to update session",
			slog.String("action", string(action.Kind)),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// errorFlash turns a service error into the notice shown after the
// redirect. Internal errors are logged and shown generically.
func (h *PageHandler) errorFlash(r *http.Request, err error, notFound string) *session.Flash {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return &session.Flash{Level: session.LevelWarning, Message: apperrors.UserMessage(err, msgInvalidBookForm)}
	case errors.Is(err, apperrors.ErrNotFound):
		return &session.Flash{Level: session.LevelError, Message: notFound}
	default:
		h.log(r).ErrorContext(r.Context(), "form submission failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return &session.Flash{Level: session.LevelError, Message: msgInternal}
	}
}

func (h *PageHandler) log(r *http.Request) *slog.Logger {
	if l := logger.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	return h.logger
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
