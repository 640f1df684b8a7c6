package domain

import (
	"strconv"
	"strings"
	"time"
)

// Review display defaults.
const (
	AnonymousNickname = "익명"
	NoRating          = "평점 없음"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a comment on a book. A nil ParentID marks a top-level review;
// otherwise it is a reply to another review of the same book.
type Review struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Nickname  string    `json:"nickname"`
	Rating    *int      `json:"rating,omitempty"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// IsTopLevel reports whether the review hangs directly off its book.
func (r *Review) IsTopLevel() bool {
	return r.ParentID == nil
}

// Stars renders the review's rating.
func (r *Review) Stars() string {
	return Stars(r.Rating)
}

// Nickname returns the trimmed nickname, or AnonymousNickname when blank.
func Nickname(s string) string {
	if n := Normalize(s); n != "" {
		return n
	}
	return AnonymousNickname
}

// ValidRating reports whether n is within MinRating..MaxRating.
func ValidRating(n int) bool {
	return n >= MinRating && n <= MaxRating
}

// ParseRating reads a rating submitted through a form. Blank, non-numeric
// and out-of-range input all mean "no rating" and yield nil.
func ParseRating(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ValidRating(n) {
		return nil
	}
	return &n
}

// Stars renders a rating as filled and empty stars, e.g. ★★★★☆ for 4.
// A missing or out-of-range rating renders as NoRating.
func Stars(rating *int) string {
	if rating == nil || !ValidRating(*rating) {
		return NoRating
	}
	return strings.Repeat("★", *rating) + strings.Repeat("☆", MaxRating-*rating)
}
