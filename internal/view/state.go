// Package view holds the per-session navigation state and the table of
// transitions between pages.
package view

// Page names a top-level screen.
type Page string

// Pages.
const (
	PageHome   Page = "home"
	PageBrowse Page = "browse"
	PageSearch Page = "search"
	PageDetail Page = "detail"
)

// Valid reports whether p is one of the known pages.
func (p Page) Valid() bool {
	switch p {
	case PageHome, PageBrowse, PageSearch, PageDetail:
		return true
	}
	return false
}

// State is what a session is looking at. It is a value: transitions return
// a new State and never modify their input.
type State struct {
	Page   Page   `json:"page"`
	Genre  string `json:"genre,omitempty"`
	Query  string `json:"query,omitempty"`
	BookID int64  `json:"book_id,omitempty"`
}

// Initial is the state of a new session.
func Initial() State {
	return State{Page: PageHome}
}

// Normalized replaces an unknown page with home, keeping the other fields.
func (s State) Normalized() State {
	if !s.Page.Valid() {
		s.Page = PageHome
	}
	return s
}

// ActionKind names a user action.
type ActionKind string

// Actions.
const (
	ActionHome        ActionKind = "home"
	ActionSearch      ActionKind = "search"
	ActionSelectGenre ActionKind = "select_genre"
	ActionSelectBook  ActionKind = "select_book"
	ActionBookAdded   ActionKind = "book_added"
	ActionBack        ActionKind = "back"
)

// Action is a user action with its argument, if any.
type Action struct {
	Kind   ActionKind
	Query  string
	Genre  string
	BookID int64
}

// Home returns to the start page.
func Home() Action { return Action{Kind: ActionHome} }

// Search runs a search for q.
func Search(q string) Action { return Action{Kind: ActionSearch, Query: q} }

// SelectGenre opens the book list of genre.
func SelectGenre(genre string) Action { return Action{Kind: ActionSelectGenre, Genre: genre} }

// SelectBook opens the detail page of a book.
func SelectBook(id int64) Action { return Action{Kind: ActionSelectBook, BookID: id} }

// BookAdded opens the detail page of a book that was just submitted.
func BookAdded(id int64) Action { return Action{Kind: ActionBookAdded, BookID: id} }

// Back leaves the detail page.
func Back() Action { return Action{Kind: ActionBack} }

// transitionFunc computes the next state, or false to leave the state as
// it is.
type transitionFunc func(from State, a Action) (State, bool)

type transitionKey struct {
	from Page
	kind ActionKind
}

// anyPage matches every source page in the transition table.
const anyPage Page = "*"

var transitions = map[transitionKey]transitionFunc{
	{anyPage, ActionSearch}: func(s State, a Action) (State, bool) {
		if a.Query == "" {
			return s, false
		}
		s.Page, s.Query = PageSearch, a.Query
		return s, true
	},
	{anyPage, ActionSelectGenre}: func(s State, a Action) (State, bool) {
		if a.Genre == "" {
			return s, false
		}
		s.Page, s.Genre = PageBrowse, a.Genre
		return s, true
	},
	{anyPage, ActionSelectBook}: openBook,
	{anyPage, ActionBookAdded}:  openBook,
	{PageDetail, ActionBack}: func(s State, _ Action) (State, bool) {
		if s.Genre != "" {
			s.Page = PageBrowse
		} else {
			s.Page = PageHome
		}
		return s, true
	},
	{anyPage, ActionHome}: func(s State, _ Action) (State, bool) {
		s.Page = PageHome
		return s, true
	},
}

func openBook(s State, a Action) (State, bool) {
	if a.BookID <= 0 {
		return s, false
	}
	s.Page, s.BookID = PageDetail, a.BookID
	return s, true
}

// Transition applies a to s. A row for the current page wins over a
// wildcard row. Actions with a missing argument, and actions with no row
// for the current page, leave s unchanged.
func Transition(s State, a Action) State {
	s = s.Normalized()

	fn, ok := transitions[transitionKey{s.Page, a.Kind}]
	if !ok {
		fn, ok = transitions[transitionKey{anyPage, a.Kind}]
	}
	if !ok {
		return s
	}

	if next, changed := fn(s, a); changed {
		return next
	}
	return s
}
