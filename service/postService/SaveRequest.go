package postService

// SaveRequest - fields of a new post. Author is the email of the creating session
type SaveRequest struct {
	Title   string
	Content string
	Author  string
}
