package postService

// UpdateRequest - new title and content of an existing post
type UpdateRequest struct {
	ID      string
	Title   string
	Content string
}
