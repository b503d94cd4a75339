package types

import "time"

// Review score bounds, inclusive.
const (
	MinScore = 1
	MaxScore = 10
)

// Review is a user's writeup of a title. A user may review a given title
// at most once; the store enforces this with a unique constraint.
type Review struct {
	// ID is the unique identifier of the review.
	ID int `json:"id" db:"id"`

	// TitleID is the title the review is attached to.
	TitleID int `json:"-" db:"title_id"`

	// AuthorID is the user who wrote the review. Always set server-side
	// from the authenticated identity.
	AuthorID int `json:"-" db:"author_id"`

	// Author is the author's username, resolved on read.
	Author string `json:"author"`

	// Text is the review body.
	Text string `json:"text" db:"text"`

	// Score is the author's rating of the title, MinScore..MaxScore.
	Score int `json:"score" db:"score"`

	// PubDate is when the review was created.
	PubDate time.Time `json:"pub_date" db:"pub_date"`
}

// Comment is a reply attached to a review.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// ReviewID is the review the comment is attached to.
	ReviewID int `json:"-" db:"review_id"`

	// AuthorID is the user who wrote the comment. Always set server-side.
	AuthorID int `json:"-" db:"author_id"`

	// Author is the author's username, resolved on read.
	Author string `json:"author"`

	// Text is the comment body.
	Text string `json:"text" db:"text"`

	// PubDate is when the comment was created.
	PubDate time.Time `json:"pub_date" db:"pub_date"`
}
