package restapi

import (
	"encoding/json"
	"errors"
	"github.com/Viktor-Kode/bloghub/editor"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/postService"
	"github.com/Viktor-Kode/bloghub/session"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"log"
	"math"
	"net/http"
)

// PostAPIHandler - used for dependency injection
type PostAPIHandler struct {
	store    store.Store
	editor   *editor.Editor
	logInfo  *log.Logger
	logError *log.Logger
}

// NewPostAPIHandler - creates handler. Mutations go through the editor so the API and the
// dashboard share validation
func NewPostAPIHandler(s store.Store, logInfo, logError *log.Logger) *PostAPIHandler {
	return &PostAPIHandler{
		store:    s,
		editor:   editor.New(s, logInfo, logError),
		logInfo:  logInfo,
		logError: logError,
	}
}

// GetPostsRequestQueryParams - structure for storing query params of GET request for range of posts
type GetPostsRequestQueryParams struct {
	Page         string
	PostsPerPage string
}

// error codes for this API
var (
	// InvalidPostTitle - invalid post title
	InvalidPostTitle = models.NewRequestErrorCode("INVALID_TITLE")
	// InvalidPostContent - invalid post content
	InvalidPostContent = models.NewRequestErrorCode("INVALID_CONTENT")
	// NoSuchPost - post does not exist
	NoSuchPost = models.NewRequestErrorCode("NO_SUCH_POST")
	// InvalidPostsRange - invalid range of posts
	InvalidPostsRange = models.NewRequestErrorCode("INVALID_POSTS_RANGE")
	// ConfirmationRequired - delete request without confirm=true
	ConfirmationRequired = models.NewRequestErrorCode("CONFIRMATION_REQUIRED")
)

const (
	// MaxPostsPerPage - maximum posts that can be displayed per page
	MaxPostsPerPage int = 40
	// MaxPage - highest page whose offset still fits an int
	MaxPage int = math.MaxInt / MaxPostsPerPage

	DefaultPage         int = 0
	DefaultPostsPerPage int = 10
)

// ValidateGetPostsRequestQueryParams - validate query params of GET request for range of posts
func ValidateGetPostsRequestQueryParams(rangeParams *GetPostsRequestQueryParams) models.RequestErrorCode {
	if rangeParams.Page != "" {
		if page, err := cast.ToIntE(rangeParams.Page); err != nil || page < 0 || page > MaxPage {
			return InvalidPostsRange
		}
	}
	if rangeParams.PostsPerPage != "" {
		if postsPerPage, err := cast.ToIntE(rangeParams.PostsPerPage); err != nil ||
			postsPerPage > MaxPostsPerPage || postsPerPage <= 0 {
			return InvalidPostsRange
		}
	}

	return nil
}

// values - page and posts per page of validated params, defaults for missing ones
func (rangeParams *GetPostsRequestQueryParams) values() (int, int) {
	page, postsPerPage := DefaultPage, DefaultPostsPerPage
	if rangeParams.Page != "" {
		page = cast.ToInt(rangeParams.Page)
	}
	if rangeParams.PostsPerPage != "" {
		postsPerPage = cast.ToInt(rangeParams.PostsPerPage)
	}
	return page, postsPerPage
}

// editorErrorCode - maps editor errors to response status and error code
func editorErrorCode(err error) (int, models.RequestErrorCode) {
	var validationErr *editor.ValidationError
	switch {
	case errors.As(err, &validationErr):
		if validationErr.Field == "title" {
			return http.StatusBadRequest, InvalidPostTitle
		}
		return http.StatusBadRequest, InvalidPostContent
	case errors.Is(err, editor.ErrNotConfirmed):
		return http.StatusBadRequest, ConfirmationRequired
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, NoSuchPost
	}
	return http.StatusInternalServerError, TechnicalError
}

// ownPost - loads the post and checks the session user is its author. Responds on failure
func (api *PostAPIHandler) ownPost(w http.ResponseWriter, r *http.Request, postID string) (models.Post, bool) {
	s, _ := session.FromContext(r.Context())

	post, err := postService.GetByID(r.Context(), api.store, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.logInfo.Printf("No such post. Post ID: %s", postID)
			RespondWithError(w, http.StatusNotFound, NoSuchPost)
			return models.Post{}, false
		}
		api.logError.Printf("Error retrieving post. Post ID: %s. Error: %s", postID, err)
		RespondWithError(w, http.StatusInternalServerError, TechnicalError)
		return models.Post{}, false
	}
	if post.Author != s.Email {
		api.logInfo.Printf("User %s is not the author of post %s", s.Email, postID)
		RespondWithError(w, http.StatusForbidden, NoPermissions)
		return models.Post{}, false
	}
	return post, true
}

// CreatePostHandler - this handler serves post creation requests. Requires session
func (api *PostAPIHandler) CreatePostHandler() http.Handler {
	logInfo := api.logInfo
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())

		request := models.CreatePostRequest{}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			RespondWithError(w, http.StatusBadRequest, BadRequestBody)
			return
		}

		logInfo.Printf("Got new post creation request. Author: %s", s.Email)

		postID, err := api.editor.Publish(r.Context(), request.Title, request.Content, s.Email)
		if err != nil {
			code, errorCode := editorErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}

		createdPost, err := postService.GetByID(r.Context(), api.store, postID)
		if err != nil {
			api.logError.Printf("Error retrieving created post %s: %s", postID, err)
			RespondWithError(w, http.StatusInternalServerError, TechnicalError)
			return
		}
		RespondWithBody(w, http.StatusCreated, createdPost)
	})
}

// UpdatePostHandler - this handler serves post update requests. Only the author may update
func (api *PostAPIHandler) UpdatePostHandler() http.Handler {
	logInfo := api.logInfo
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := models.UpdatePostRequest{}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			RespondWithError(w, http.StatusBadRequest, BadRequestBody)
			return
		}

		postID := mux.Vars(r)["id"]
		logInfo.Printf("Got new post update request. Post ID: %s", postID)

		if _, _, err := editor.Validate(request.Title, request.Content); err != nil {
			code, errorCode := editorErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}
		if _, ok := api.ownPost(w, r, postID); !ok {
			return
		}

		if err := api.editor.Update(r.Context(), postID, request.Title, request.Content); err != nil {
			code, errorCode := editorErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}

		updatedPost, err := postService.GetByID(r.Context(), api.store, postID)
		if err != nil {
			code, errorCode := editorErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}
		RespondWithBody(w, http.StatusOK, updatedPost)
	})
}

// DeletePostHandler - this handler serves post deletion requests. Only the author may delete,
// and the request must carry confirm=true
func (api *PostAPIHandler) DeletePostHandler() http.Handler {
	logInfo := api.logInfo
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["id"]
		logInfo.Printf("Got new post deletion request. Post ID: %s", postID)

		confirmed := cast.ToBool(r.FormValue("confirm"))
		if !confirmed {
			RespondWithError(w, http.StatusBadRequest, ConfirmationRequired)
			return
		}
		if _, ok := api.ownPost(w, r, postID); !ok {
			return
		}

		if err := api.editor.Delete(r.Context(), postID, editor.Confirmed); err != nil {
			code, errorCode := editorErrorCode(err)
			RespondWithError(w, code, errorCode)
			return
		}
		Respond(w, http.StatusOK)
	})
}

// GetCertainPostHandler - this handler serves GET request for single post
func (api *PostAPIHandler) GetCertainPostHandler() http.Handler {
	logInfo := api.logInfo
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["id"]
		logInfo.Printf("Got single post retrieve request. Post ID: %s", postID)

		post, err := postService.GetByID(r.Context(), api.store, postID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logInfo.Printf("Can't retrieve post: no such post. Post ID: %s", postID)
				RespondWithError(w, http.StatusNotFound, NoSuchPost)
				return
			}
			logError.Printf("Error retrieving post. Post ID: %s. Error: %s", postID, err)
			RespondWithError(w, http.StatusInternalServerError, TechnicalError)
			return
		}

		RespondWithBody(w, http.StatusOK, post)
	})
}

// GetPostsHandler - this handler serves GET request for all posts in the given range, newest first
func (api *PostAPIHandler) GetPostsHandler() http.Handler {
	logInfo := api.logInfo
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeParams := &GetPostsRequestQueryParams{
			Page:         r.FormValue("page"),
			PostsPerPage: r.FormValue("posts-per-page"),
		}

		logInfo.Printf("Got range of posts retrieve request. Range params: %+v", rangeParams)

		if err := ValidateGetPostsRequestQueryParams(rangeParams); err != nil {
			logInfo.Printf("Can't retrieve range of posts: invalid query params. Error: %s", err)
			RespondWithError(w, http.StatusBadRequest, err)
			return
		}

		page, postsPerPage := rangeParams.values()
		posts, err := postService.GetPostsInRange(r.Context(), api.store, page, postsPerPage)
		if err != nil {
			logError.Printf("Error retrieving range of posts: %s", err)
			RespondWithError(w, http.StatusInternalServerError, TechnicalError)
			return
		}

		RespondWithBody(w, http.StatusOK, posts)
	})
}

// GetUserPostsHandler - all posts of the session user, newest first. Requires session
func (api *PostAPIHandler) GetUserPostsHandler() http.Handler {
	logError := api.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())

		posts, err := postService.GetAllByAuthor(r.Context(), api.store, s.Email)
		if err != nil {
			logError.Printf("Error retrieving posts of user %s: %s", s.Email, err)
			RespondWithError(w, http.StatusInternalServerError, TechnicalError)
			return
		}

		RespondWithBody(w, http.StatusOK, posts)
	})
}
