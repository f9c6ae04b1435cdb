package models

import "time"

// Post represents a blog post owned by its author
type Post struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Created  time.Time `json:"created"`
	AuthorID int64     `json:"author_id"`
	// Filled by joins against the user table, never written back.
	AuthorUsername string `json:"author_username,omitempty"`
}

// IsOwnedBy reports whether user authored the post.
func (p *Post) IsOwnedBy(user *User) bool {
	return p != nil && user != nil && p.AuthorID == user.ID
}

// FuturePost is a canned post that /auto can publish on behalf of a user.
type FuturePost struct {
	ID    int64
	Title string
	Body  string
}
