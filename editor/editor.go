// Package editor - post editor: publish, update and delete posts with form validation
// and a single "currently editing" selection.
//
// Mutations are fire-and-forget relative to feeds: a feed observes the result through its
// next snapshot, the editor only resets its own form state.
package editor

import (
	"context"
	"errors"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/postService"
	"github.com/Viktor-Kode/bloghub/store"
	"log"
	"strings"
	"sync"
)

var (
	// ErrNotConfirmed - delete was not confirmed by the user
	ErrNotConfirmed = errors.New("delete not confirmed")
	// ErrNotEditing - no post is selected for editing
	ErrNotEditing = errors.New("no post is being edited")
)

// ValidationError - required field is empty after trimming
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " must not be empty"
}

// OperationError - store call of an editor operation failed
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return e.Op + " post: " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Confirmer - asks the user to confirm a destructive action
type Confirmer func() bool

// Confirmed - confirmer for callers that already asked
func Confirmed() bool {
	return true
}

// Draft - form state: title and content being typed, and the post being edited, if any
type Draft struct {
	PostID  string
	Title   string
	Content string
}

// Editor - one editor per view/session. Safe for concurrent use
type Editor struct {
	store    store.Store
	logInfo  *log.Logger
	logError *log.Logger

	mu      sync.Mutex
	form    Draft
	editing *Draft
}

// New - creates editor
func New(s store.Store, logInfo, logError *log.Logger) *Editor {
	return &Editor{
		store:    s,
		logInfo:  logInfo,
		logError: logError,
	}
}

// Validate - both fields must be non-empty after trimming. Returns trimmed values
func Validate(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return "", "", &ValidationError{Field: "title"}
	}
	if content == "" {
		return "", "", &ValidationError{Field: "content"}
	}
	return title, content, nil
}

// SetForm - stores the new-post form state
func (e *Editor) SetForm(title, content string) {
	e.mu.Lock()
	e.form = Draft{Title: title, Content: content}
	e.mu.Unlock()
}

// Form - current new-post form state
func (e *Editor) Form() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form
}

// Publish - creates a post. The new-post form is cleared on success
// A result arriving after ctx is cancelled is dropped and ctx.Err() returned
func (e *Editor) Publish(ctx context.Context, title, content, author string) (string, error) {
	title, content, err := Validate(title, content)
	if err != nil {
		e.logInfo.Printf("Can't create post: invalid request. Error: %s", err)
		return "", err
	}

	id, err := postService.Save(ctx, e.store, &postService.SaveRequest{Title: title, Content: content, Author: author})
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logInfo.Printf("Dropping create result of a cancelled view. Author: %s", author)
		return "", ctxErr
	}
	if err != nil {
		e.logError.Printf("Error saving post. Author: %s. Error: %s", author, err)
		return "", &OperationError{Op: OpCreate, Err: err}
	}

	e.logInfo.Printf("Post created. ID: %s. Author: %s", id, author)
	e.SetForm("", "")
	return id, nil
}

// Update - replaces title and content of the post
func (e *Editor) Update(ctx context.Context, id, title, content string) error {
	title, content, err := Validate(title, content)
	if err != nil {
		e.logInfo.Printf("Can't update post %s: invalid request. Error: %s", id, err)
		return err
	}

	err = postService.Update(ctx, e.store, &postService.UpdateRequest{ID: id, Title: title, Content: content})
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logInfo.Printf("Dropping update result of a cancelled view. ID: %s", id)
		return ctxErr
	}
	if err != nil {
		e.logError.Printf("Error updating post %s: %s", id, err)
		return &OperationError{Op: OpUpdate, Err: err}
	}

	e.logInfo.Printf("Post updated. ID: %s", id)
	return nil
}

// Delete - deletes the post once confirm returns true. There is no undo
func (e *Editor) Delete(ctx context.Context, id string, confirm Confirmer) error {
	if confirm == nil || !confirm() {
		e.logInfo.Printf("Delete of post %s not confirmed", id)
		return ErrNotConfirmed
	}

	err := postService.Delete(ctx, e.store, id)
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logInfo.Printf("Dropping delete result of a cancelled view. ID: %s", id)
		return ctxErr
	}
	if err != nil {
		e.logError.Printf("Error deleting post %s: %s", id, err)
		return &OperationError{Op: OpDelete, Err: err}
	}

	e.mu.Lock()
	if e.editing != nil && e.editing.PostID == id {
		e.editing = nil
	}
	e.mu.Unlock()

	e.logInfo.Printf("Post deleted. ID: %s", id)
	return nil
}

// BeginEdit - selects the post for editing. A previous selection and its unsaved changes are discarded
func (e *Editor) BeginEdit(post models.Post) {
	e.mu.Lock()
	e.editing = &Draft{PostID: post.ID, Title: post.Title, Content: post.Content}
	e.mu.Unlock()
}

// SetDraft - updates the edit form of the selected post
func (e *Editor) SetDraft(title, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editing == nil {
		return ErrNotEditing
	}
	e.editing.Title = title
	e.editing.Content = content
	return nil
}

// Editing - the edit selection, if any
func (e *Editor) Editing() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editing == nil {
		return Draft{}, false
	}
	return *e.editing, true
}

// Cancel - drops the edit selection without touching the store
func (e *Editor) Cancel() {
	e.mu.Lock()
	e.editing = nil
	e.mu.Unlock()
}

// SaveEdit - updates the selected post with the draft. The selection is cleared on success and kept on failure
func (e *Editor) SaveEdit(ctx context.Context) error {
	draft, ok := e.Editing()
	if !ok {
		return ErrNotEditing
	}
	if err := e.Update(ctx, draft.PostID, draft.Title, draft.Content); err != nil {
		return err
	}

	e.mu.Lock()
	// another BeginEdit may have replaced the selection while the update was in flight
	if e.editing != nil && e.editing.PostID == draft.PostID {
		e.editing = nil
	}
	e.mu.Unlock()
	return nil
}

// UserMessage - generic message shown to the user for an editor error
func UserMessage(err error) string {
	var validationErr *ValidationError
	var operationErr *OperationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return "Please fill in both fields."
	case errors.Is(err, ErrNotConfirmed):
		return "Delete was not confirmed."
	case errors.Is(err, ErrNotEditing):
		return "No post is being edited."
	case errors.As(err, &operationErr):
		switch operationErr.Op {
		case OpUpdate:
			return "Could not update post. Try again."
		case OpDelete:
			return "Could not delete post. Try again."
		}
	}
	return "Something went wrong. Try again."
}
