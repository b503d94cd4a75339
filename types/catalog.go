package types

// MinTitleYear is the earliest release year a title may carry. The upper
// bound comes from config.Catalog.MaxYear.
const MinTitleYear = 1900

// TitleFilter narrows title listings. Zero-valued fields are ignored.
type TitleFilter struct {
	CategorySlug string
	GenreSlug    string
	Year         int
	Name         string
}

// Category groups titles by kind, e.g. "Movies", "Books", "Music".
// The slug is the immutable identity key used in URLs.
type Category struct {
	ID   int    `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre labels a title's genre, e.g. "Drama". Titles carry any number of
// genres through a join table.
type Genre struct {
	ID   int    `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Title represents a reviewable work in the catalog.
// Titles have no owner; only admins may write them.
type Title struct {
	// ID is the unique identifier of the title.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the work.
	Name string `json:"name" db:"name"`

	// Year is the release year, bounded by MinTitleYear and the
	// configured ceiling.
	Year int `json:"year" db:"year"`

	// Description is an optional free-text blurb.
	Description string `json:"description" db:"description"`

	// Category is the single category the title belongs to. Nil when the
	// category was deleted after the title was created.
	Category *Category `json:"category"`

	// Genres is the set of genres associated with the title.
	Genres []Genre `json:"genres"`

	// Rating is the average review score, rounded to one decimal.
	// Nil when the title has no reviews yet.
	Rating *float64 `json:"rating"`
}
