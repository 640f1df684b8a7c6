package domain

import "time"

// UnknownAuthor is shown in place of an empty author.
const UnknownAuthor = "작자 미상"

// Book is a catalogued title. Title is unique across the catalogue.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	CoverPath *string   `json:"cover_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayAuthor returns the author, or UnknownAuthor when none was given.
func (b *Book) DisplayAuthor() string {
	if b.Author == "" {
		return UnknownAuthor
	}
	return b.Author
}

// HasCover reports whether a cover image was stored for the book.
func (b *Book) HasCover() bool {
	return b.CoverPath != nil && *b.CoverPath != ""
}

// SampleBooks is the catalogue seeded into an empty database.
var SampleBooks = []Book{
	{Title: "82년생 김지영", Author: "조남주", Genre: "소설"},
	{Title: "채식주의자", Author: "한강", Genre: "소설"},
	{Title: "소년이 온다", Author: "한강", Genre: "소설"},
	{Title: "아몬드", Author: "손원평", Genre: "소설"},
	{Title: "용의자 x의 헌신", Author: "히가시노 게이고", Genre: "소설"},

	{Title: "무례한 사람에게 웃으며 대처하는 법", Author: "정문정", Genre: "에세이"},
	{Title: "여덟 단어", Author: "박웅현", Genre: "에세이"},
	{Title: "아침에 일어나면 꼭 해야 할 일들", Author: "김민식", Genre: "에세이"},

	{Title: "코스모스", Author: "칼 세이건", Genre: "과학"},
	{Title: "빅 히스토리", Author: "데이비드 크리스천", Genre: "과학"},
	{Title: "세상은 수학이다", Author: "최재천·김민형", Genre: "과학"},

	{Title: "역사의 역사", Author: "유시민", Genre: "역사"},
	{Title: "거꾸로 읽는 세계사", Author: "유시민", Genre: "역사"},
	{Title: "지리의 힘", Author: "팀 마샬", Genre: "역사"},

	{Title: "아주 작은 습관의 힘", Author: "제임스 클리어", Genre: "자기계발"},
	{Title: "미라클 모닝", Author: "할 엘로드", Genre: "자기계발"},
}
