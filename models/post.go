package models

import "time"

// Post - represents blog post
// @ID - opaque ID assigned by the document store
// @Title - title
// @Content - content, stored as markdown
// @Author - email of the session that created this post. Never changes after creation
// @CreatedAt - creation time, assigned by the store
// @UpdatedAt - time of the last update. Nil until the post is updated for the first time
type Post struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// CreatePostRequest - represents post creation request
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePostRequest - represents post update request
type UpdatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
