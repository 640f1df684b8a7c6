package http

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonJiyun2/IdeaShelf/internal/session"
)

func assertRedirectHome(t *testing.T, status int, location string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/", location)
}

func TestPages_HomeForNewSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotNil(t, app.cookie)
	assert.Equal(t, session.CookieName, app.cookie.Name)

	body := rec.Body.String()
	assert.Contains(t, body, "시작하기")
	assert.Contains(t, body, "1) 장르 고르기")
	assert.Contains(t, body, "<h2>인기 장르 둘러보기</h2>")
	assert.NotContains(t, body, `class="book-row"`)
}

func TestPages_SelectGenre(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/genre?genre=" + url.QueryEscape("과학"))
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	body := app.page()
	assert.Contains(t, body, "장르: 과학")
	assert.Contains(t, body, "<strong>코스모스</strong>")
	assert.Contains(t, body, "<strong>빅 히스토리</strong>")
	assert.Equal(t, 3, strings.Count(body, `class="book-row"`))
	assert.NotContains(t, body, "<strong>아몬드</strong>")
	assert.NotContains(t, body, `href="/books/`+itoa(app.bookID("아몬드"))+`"`)
}

func TestPages_SelectEmptyGenreKeepsPage(t *testing.T) {
	app := newTestApp(t)

	app.get("/genre?genre=" + url.QueryEscape("과학"))
	app.get("/genre?genre=")

	assert.Contains(t, app.page(), "장르: 과학")
}

func TestPages_Search(t *testing.T) {
	app := newTestApp(t)

	app.get("/search?q=" + url.QueryEscape("유시민"))
	body := app.page()

	assert.Contains(t, body, "검색: “유시민”")
	assert.Contains(t, body, "<strong>역사의 역사</strong>")
	assert.Contains(t, body, "<strong>거꾸로 읽는 세계사</strong>")
	assert.NotContains(t, body, "<strong>아몬드</strong>")
}

func TestPages_SearchNoResults(t *testing.T) {
	app := newTestApp(t)

	app.get("/search?q=" + url.QueryEscape("없는책"))

	body := app.page()
	assert.Contains(t, body, "검색 결과가 없습니다")
	assert.NotContains(t, body, `class="book-row"`)
}

func TestPages_SearchBlankQuery(t *testing.T) {
	app := newTestApp(t)

	app.get("/search?q=%20")
	body := app.page()

	assert.Contains(t, body, "검색어를 입력해주세요.")
	assert.Contains(t, body, "시작하기")
}

func TestPages_DetailAndBack(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("코스모스")

	app.get("/genre?genre=" + url.QueryEscape("과학"))
	rec := app.get("/books/" + itoa(id))
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	body := app.page()
	assert.Contains(t, body, "<h3>코스모스</h3>")
	assert.Contains(t, body, "칼 세이건")
	assert.Contains(t, body, "아직 등록된 감상평이 없습니다")

	rec = app.do(http.MethodPost, "/back", nil, "")
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))
	assert.Contains(t, app.page(), "장르: 과학")
}

func TestPages_BackWithoutGenreGoesHome(t *testing.T) {
	app := newTestApp(t)

	app.get("/books/" + itoa(app.bookID("아몬드")))
	app.do(http.MethodPost, "/back", nil, "")

	assert.Contains(t, app.page(), "시작하기")
}

func TestPages_DetailMissingBook(t *testing.T) {
	app := newTestApp(t)

	app.get("/books/9999")

	assert.Contains(t, app.page(), "도서를 찾을 수 없습니다.")
}

func TestPages_SelectBookInvalidID(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/books/abc")
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	body := app.page()
	assert.Contains(t, body, "도서를 찾을 수 없습니다.")
	assert.Contains(t, body, "시작하기")
}

func TestPages_AddBook(t *testing.T) {
	app := newTestApp(t)
	body, ct := bookForm(t, map[string]string{"title": "데미안", "author": "헤르만 헤세", "genre": "소설"}, "", nil)

	rec := app.do(http.MethodPost, "/books", body, ct)
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	page := app.page()
	assert.Contains(t, page, "도서가 등록되었습니다: 데미안")
	assert.Contains(t, page, "<h3>데미안</h3>")
	assert.Contains(t, page, "<li>저자: <strong>헤르만 헤세</strong></li>")

	assert.NotContains(t, app.page(), "도서가 등록되었습니다")
}

func TestPages_AddBookWithCover(t *testing.T) {
	app := newTestApp(t)
	body, ct := bookForm(t, map[string]string{"title": "표지 책", "genre": "소설"}, "cover.png", pngBytes(t))

	app.do(http.MethodPost, "/books", body, ct)

	assert.Contains(t, app.page(), `<img class="cover" src="/uploads/`)
}

func TestPages_AddBookOversizeCover(t *testing.T) {
	app := newTestApp(t)
	body, ct := bookForm(t, map[string]string{"title": "큰 표지", "genre": "소설"}, "big.png", make([]byte, 3<<20))

	rec := app.do(http.MethodPost, "/books", body, ct)
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	page := app.page()
	assert.Contains(t, page, `<div class="notice warning">표지 이미지는 1MB 이하만 올릴 수 있습니다.</div>`)
	assert.NotContains(t, page, "도서 정보를 읽을 수 없습니다.")
	assert.Len(t, app.books.books, 16)
}

func TestPages_SidebarShowsCoverLimit(t *testing.T) {
	app := newTestApp(t)

	assert.Contains(t, app.page(), "표지 이미지(선택, 1MB 이하)")
}

func TestPages_AddBookValidationFailure(t *testing.T) {
	app := newTestApp(t)
	app.get("/genre?genre=" + url.QueryEscape("역사"))
	body, ct := bookForm(t, map[string]string{"title": "제목만", "genre": "  "}, "", nil)

	app.do(http.MethodPost, "/books", body, ct)

	page := app.page()
	assert.Contains(t, page, `<div class="notice warning">제목과 장르는 필수입니다.</div>`)
	assert.Contains(t, page, "장르: 역사")
	assert.Len(t, app.books.books, 16)
}

func TestPages_AddDuplicateBookOpensExisting(t *testing.T) {
	app := newTestApp(t)
	body, ct := bookForm(t, map[string]string{"title": "아몬드", "author": "누군가", "genre": "에세이"}, "", nil)

	app.do(http.MethodPost, "/books", body, ct)

	page := app.page()
	assert.Contains(t, page, "<h3>아몬드</h3>")
	assert.Contains(t, page, "손원평")
	assert.Len(t, app.books.books, 16)
}

func TestPages_AddReviewAndReply(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("아몬드")
	app.get("/books/" + itoa(id))

	rec := app.postForm("/books/"+itoa(id)+"/reviews", url.Values{
		"nickname": {"독자"},
		"rating":   {"3"},
		"content":  {"감정에 대해 생각하게 된다"},
	})
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	page := app.page()
	assert.Contains(t, page, "감상평이 등록되었습니다!")
	assert.Contains(t, page, "독자 · ★★★☆☆")
	assert.Contains(t, page, "총 1개")

	parent := app.reviews.reviews[0]
	rec = app.postForm("/reviews/"+itoa(parent.ID)+"/replies", url.Values{
		"content": {"동의합니다"},
	})
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	page = app.page()
	assert.Contains(t, page, "답글이 등록되었습니다!")
	assert.Contains(t, page, "총 2개")
	assert.Contains(t, page, "margin-left: 24px")
	assert.Contains(t, page, "동의합니다")
}

func TestPages_AddReviewMalformedRating(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("아몬드")
	app.get("/books/" + itoa(id))

	app.postForm("/books/"+itoa(id)+"/reviews", url.Values{
		"rating":  {"five"},
		"content": {"평점 없이"},
	})

	page := app.page()
	assert.Contains(t, page, "익명 · 평점 없음")
	require.Len(t, app.reviews.reviews, 1)
	assert.Nil(t, app.reviews.reviews[0].Rating)
}

func TestPages_AddReviewBlankContent(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("아몬드")
	app.get("/books/" + itoa(id))

	app.postForm("/books/"+itoa(id)+"/reviews", url.Values{"content": {"   "}})

	assert.Contains(t, app.page(), "감상평을 입력해주세요.")
	assert.Empty(t, app.reviews.reviews)
}

func TestPages_LikeReview(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("아몬드")
	review := app.addReview(id, nil, "좋은 책")
	app.get("/books/" + itoa(id))

	rec := app.do(http.MethodPost, "/reviews/"+itoa(review.ID)+"/like", nil, "")
	assertRedirectHome(t, rec.Code, rec.Header().Get("Location"))

	assert.Contains(t, app.page(), "👍 1")
}

func TestPages_LikeMissingReview(t *testing.T) {
	app := newTestApp(t)

	app.do(http.MethodPost, "/reviews/9999/like", nil, "")

	assert.Contains(t, app.page(), "감상평을 찾을 수 없습니다.")
}

func TestPages_ReviewContentIsEscaped(t *testing.T) {
	app := newTestApp(t)
	id := app.bookID("아몬드")
	app.addReview(id, nil, "<script>alert(1)</script>")
	app.get("/books/" + itoa(id))

	page := app.page()
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestPages_StoreFailureRendersError(t *testing.T) {
	app := newTestApp(t)
	app.books.err = assert.AnError

	rec := app.get("/")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "일시적인 오류가 발생했습니다"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	app.get("/api/v1/genres")
	rec = app.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/genres",service="ideashelf",status="200"} 1`)
}
