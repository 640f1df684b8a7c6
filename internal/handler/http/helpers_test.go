package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	"github.com/MoonJiyun2/IdeaShelf/internal/event"
	"github.com/MoonJiyun2/IdeaShelf/internal/repository"
	"github.com/MoonJiyun2/IdeaShelf/internal/service"
	"github.com/MoonJiyun2/IdeaShelf/internal/session"
	"github.com/MoonJiyun2/IdeaShelf/internal/session/memory"
	"github.com/MoonJiyun2/IdeaShelf/internal/storage/local"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
	"github.com/MoonJiyun2/IdeaShelf/pkg/health"
	"github.com/MoonJiyun2/IdeaShelf/pkg/httputil"
	"github.com/MoonJiyun2/IdeaShelf/pkg/middleware"
)

// Ensure interfaces are satisfied at compile time.
var _ repository.BookRepository = (*fakeBookRepository)(nil)
var _ repository.ReviewRepository = (*fakeReviewRepository)(nil)

// --- In-memory repositories ---

type fakeBookRepository struct {
	mu     sync.Mutex
	nextID int64
	books  []domain.Book
	err    error
}

func (f *fakeBookRepository) sorted(keep func(b domain.Book) bool) []domain.Book {
	out := []domain.Book{}
	for _, b := range f.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (f *fakeBookRepository) ListGenres(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	genres := []string{}
	for _, b := range f.books {
		if !seen[b.Genre] {
			seen[b.Genre] = true
			genres = append(genres, b.Genre)
		}
	}
	sort.Strings(genres)
	return genres, nil
}

func (f *fakeBookRepository) ListByGenre(_ context.Context, genre string) ([]domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(b domain.Book) bool { return b.Genre == genre }), nil
}

func (f *fakeBookRepository) Search(_ context.Context, term string) ([]domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = strings.ToLower(term)
	return f.sorted(func(b domain.Book) bool {
		return strings.Contains(strings.ToLower(b.Title), term) || strings.Contains(strings.ToLower(b.Author), term)
	}), nil
}

func (f *fakeBookRepository) GetByID(_ context.Context, id int64) (*domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.ID == id {
			b := b
			return &b, nil
		}
	}
	return nil, apperrors.NotFound("book", id)
}

func (f *fakeBookRepository) InsertOrIgnore(_ context.Context, book *domain.Book) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.Title == book.Title {
			return b.ID, false, nil
		}
	}
	f.nextID++
	book.ID = f.nextID
	book.CreatedAt = time.Now().UTC().Truncate(time.Second)
	f.books = append(f.books, *book)
	return book.ID, true, nil
}

func (f *fakeBookRepository) Seed(ctx context.Context, books []domain.Book) (int, error) {
	n := 0
	for _, b := range books {
		b := b
		_, created, err := f.InsertOrIgnore(ctx, &b)
		if err != nil {
			return n, err
		}
		if created {
			n++
		}
	}
	return n, nil
}

type fakeReviewRepository struct {
	mu      sync.Mutex
	nextID  int64
	clock   time.Time
	reviews []domain.Review
}

func (f *fakeReviewRepository) Create(_ context.Context, review *domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.clock.IsZero() {
		f.clock = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	}
	f.clock = f.clock.Add(time.Second)
	review.ID = f.nextID
	review.CreatedAt = f.clock
	f.reviews = append(f.reviews, *review)
	return nil
}

func (f *fakeReviewRepository) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, apperrors.NotFound("review", id)
}

func (f *fakeReviewRepository) ordered(keep func(r domain.Review) bool) []domain.Review {
	out := []domain.Review{}
	for _, r := range f.reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Likes != b.Likes {
			return a.Likes > b.Likes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (f *fakeReviewRepository) ListByBook(_ context.Context, bookID int64, parentID *int64) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordered(func(r domain.Review) bool {
		if r.BookID != bookID {
			return false
		}
		if parentID == nil {
			return r.ParentID == nil
		}
		return r.ParentID != nil && *r.ParentID == *parentID
	}), nil
}

func (f *fakeReviewRepository) ListAllByBook(_ context.Context, bookID int64) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordered(func(r domain.Review) bool { return r.BookID == bookID }), nil
}

func (f *fakeReviewRepository) IncrementLikes(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == id {
			f.reviews[i].Likes++
			return f.reviews[i].Likes, nil
		}
	}
	return 0, apperrors.NotFound("review", id)
}

// --- Test app ---

type testApp struct {
	t       *testing.T
	router  http.Handler
	books   *fakeBookRepository
	reviews *fakeReviewRepository
	dir     string
	cookie  *http.Cookie
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := testLogger()

	books := &fakeBookRepository{}
	_, err := books.Seed(context.Background(), domain.SampleBooks)
	require.NoError(t, err)
	reviews := &fakeReviewRepository{}

	dir := t.TempDir()
	producer := event.NewProducer(nil, logger)
	covers := service.NewCoverService(local.New(dir), 1<<20, logger)

	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(reg, "ideashelf")
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Books:     service.NewBookService(books, covers, producer, logger),
		Reviews:   service.NewReviewService(reviews, books, producer, logger),
		Sessions:  session.NewManager(memory.NewStore(time.Hour), time.Hour, false, logger),
		Health:    health.NewHandler(),
		Metrics:   metrics,
		Gatherer:  reg,
		CORS:      middleware.DefaultCORSConfig(),
		UploadDir: dir,
	}, logger)

	return &testApp{t: t, router: router, books: books, reviews: reviews, dir: dir}
}

// do sends a request, carrying the session cookie between calls like a
// browser would.
func (a *testApp) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			a.cookie = c
		}
	}
	return rec
}

func (a *testApp) get(target string) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, target, nil, "")
}

func (a *testApp) postJSON(target string, v any) *httptest.ResponseRecorder {
	a.t.Helper()
	body, err := json.Marshal(v)
	require.NoError(a.t, err)
	return a.do(http.MethodPost, target, bytes.NewReader(body), "application/json")
}

func (a *testApp) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, target, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// page follows a redirect to / and returns the rendered body.
func (a *testApp) page() string {
	a.t.Helper()
	rec := a.get("/")
	require.Equal(a.t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func (a *testApp) addReview(bookID int64, parentID *int64, content string) *domain.Review {
	a.t.Helper()
	r := &domain.Review{BookID: bookID, ParentID: parentID, Nickname: domain.AnonymousNickname, Content: content}
	require.NoError(a.t, a.reviews.Create(context.Background(), r))
	return r
}

func (a *testApp) bookID(title string) int64 {
	a.t.Helper()
	for _, b := range a.books.books {
		if b.Title == title {
			return b.ID
		}
	}
	a.t.Fatalf("book %q not found", title)
	return 0
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// decodeData decodes the data half of the envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// bookForm builds the multipart add-book form. A nil cover omits the file
// part.
func bookForm(t *testing.T, fields map[string]string, coverName string, cover []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if cover != nil {
		part, err := w.CreateFormFile("cover", coverName)
		require.NoError(t, err)
		_, err = part.Write(cover)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serveRequest(a *testApp, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}
