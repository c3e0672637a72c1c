// Package renderapi - server side rendered pages: sign in, the dashboard with the post editor,
// and the public posts
package renderapi

import (
	"embed"
	"errors"
	"github.com/Viktor-Kode/bloghub/auth"
	"github.com/Viktor-Kode/bloghub/editor"
	"github.com/Viktor-Kode/bloghub/feed"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/service/postService"
	"github.com/Viktor-Kode/bloghub/session"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"
)

//go:embed layouts
var layouts embed.FS

// Handler - renders pages
type Handler struct {
	store     store.Store
	feeds     *feed.Synchronizer
	editors   *editor.Registry
	provider  *auth.Provider
	federated bool
	templates map[string]*template.Template
	logInfo   *log.Logger
	logError  *log.Logger
}

const (
	timeFormat = "January 2 2006, 15:04:05"
	siteSuffix = " | Bloghub"

	// LoginPath - where pages without a session are sent
	LoginPath = "/login"
	// DashboardPath - landing page after sign in
	DashboardPath = "/dashboard"
)

// page messages
const (
	postNotFoundMessage   = "Post not found."
	postLoadFailedMessage = "Failed to load post."
	signInFailedMessage   = "Wrong email or password."
	registerFailedMessage = "Could not create account. Try again."
)

// SiteHead - represents <head> tag data
type SiteHead struct {
	Title string
}

// SiteDescription - represents site description visible on front
type SiteDescription struct {
	Title       string
	Description string
}

var defaultSiteDescription = SiteDescription{
	Title:       "Bloghub",
	Description: "Write, edit and share posts",
}

// Site - represents all site data
type Site struct {
	Head    SiteHead
	Desc    SiteDescription
	Session *models.Session
	Message string
	Data    interface{}
}

type loginPageData struct {
	Email            string
	FederatedEnabled bool
}

type dashboardPageData struct {
	Form    editor.Draft
	Draft   editor.Draft
	Editing bool
	Posts   []models.Post
}

type postPageData struct {
	Post *models.Post
}

type allPostsPageData struct {
	Posts []models.Post
}

type confirmDeletePageData struct {
	Post models.Post
}

var markdownPolicy = bluemonday.UGCPolicy()

// renderMarkdown - markdown to sanitized HTML
func renderMarkdown(content string) template.HTML {
	unsafe := blackfriday.MarkdownCommon([]byte(content))
	return template.HTML(markdownPolicy.SanitizeBytes(unsafe))
}

func convertTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}

var renderFuncs = template.FuncMap{
	"convertTime": convertTime,
	"markdown":    renderMarkdown,
}

var pages = []string{"login", "dashboard", "confirm-delete", "posts", "post"}

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(renderFuncs).ParseFS(layouts,
			"layouts/partials/head.html",
			"layouts/partials/header.html",
			"layouts/partials/footer.html",
			"layouts/"+page+".html")
		if err != nil {
			return nil, err
		}
		templates[page] = tmpl
	}
	return templates, nil
}

// NewRenderAPIHandler - creates handler. Templates are parsed once
func NewRenderAPIHandler(s store.Store, feeds *feed.Synchronizer, editors *editor.Registry, provider *auth.Provider,
	federated bool, logInfo, logError *log.Logger) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:     s,
		feeds:     feeds,
		editors:   editors,
		provider:  provider,
		federated: federated,
		templates: templates,
		logInfo:   logInfo,
		logError:  logError,
	}, nil
}

func (renderApi *Handler) render(w http.ResponseWriter, r *http.Request, code int, page, title, message string, data interface{}) {
	site := Site{
		Head:    SiteHead{Title: title + siteSuffix},
		Desc:    defaultSiteDescription,
		Message: message,
		Data:    data,
	}
	if s, ok := session.FromContext(r.Context()); ok {
		site.Session = &s
	}

	var sb strings.Builder
	if err := renderApi.templates[page].ExecuteTemplate(&sb, page, site); err != nil {
		renderApi.logError.Printf("Error rendering %s page: %s", page, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(sb.String()))
}

// RenderLoginPageHandler - sign in and registration forms
func (renderApi *Handler) RenderLoginPageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); ok {
			http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
			return
		}
		renderApi.render(w, r, http.StatusOK, "login", "Sign in", "",
			loginPageData{FederatedEnabled: renderApi.federated})
	})
}

// LoginHandler - handles the sign in form
func (renderApi *Handler) LoginHandler() http.Handler {
	logInfo := renderApi.logInfo
	logError := renderApi.logError
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))

		credentials, err := renderApi.provider.SignInWithPassword(r.Context(), email, r.FormValue("password"))
		if err != nil {
			code, message := http.StatusUnauthorized, signInFailedMessage
			if !errors.Is(err, auth.ErrWrongCredentials) && !errors.Is(err, auth.ErrInvalidEmail) {
				logError.Printf("Error signing in user %s: %s", email, err)
				code, message = http.StatusInternalServerError, editor.UserMessage(err)
			}
			renderApi.render(w, r, code, "login", "Sign in", message,
				loginPageData{Email: email, FederatedEnabled: renderApi.federated})
			return
		}

		auth.SetCookies(w, credentials)
		logInfo.Printf("User signed in. Email: %s", email)
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// RegisterHandler - handles the registration form and signs the new user in
func (renderApi *Handler) RegisterHandler() http.Handler {
	logInfo := renderApi.logInfo
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		err := renderApi.provider.Register(r.Context(), email, password)
		if err != nil {
			message := registerFailedMessage
			switch {
			case errors.Is(err, auth.ErrInvalidEmail):
				message = "Email is not valid."
			case errors.Is(err, auth.ErrInvalidPassword):
				message = "Password must be 8 to 38 characters long."
			case errors.Is(err, auth.ErrUserExists):
				message = "This email is already registered."
			}
			logInfo.Printf("Can't register user %s: %s", email, err)
			renderApi.render(w, r, http.StatusBadRequest, "login", "Sign in", message,
				loginPageData{Email: email, FederatedEnabled: renderApi.federated})
			return
		}

		credentials, err := renderApi.provider.SignInWithPassword(r.Context(), email, password)
		if err != nil {
			renderApi.logError.Printf("Error signing in registered user %s: %s", email, err)
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		auth.SetCookies(w, credentials)
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// LogoutHandler - drops the session and its editor state
func (renderApi *Handler) LogoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := session.FromContext(r.Context()); ok {
			renderApi.editors.Forget(s.Email)
			renderApi.logInfo.Printf("User signed out. Email: %s", s.Email)
		}
		auth.SignOut(w)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}

func (renderApi *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, code int, message string) {
	s, _ := session.FromContext(r.Context())
	e := renderApi.editors.For(s.Email)

	posts, err := renderApi.feeds.Snapshot(r.Context(), feed.ByAuthor(s.Email))
	if err != nil {
		renderApi.logError.Printf("Error loading posts of user %s: %s", s.Email, err)
		code, message = http.StatusInternalServerError, editor.UserMessage(err)
	}

	draft, editing := e.Editing()
	renderApi.render(w, r, code, "dashboard", "Dashboard", message, dashboardPageData{
		Form:    e.Form(),
		Draft:   draft,
		Editing: editing,
		Posts:   posts,
	})
}

func editorErrorStatus(err error) int {
	var validationErr *editor.ValidationError
	if errors.As(err, &validationErr) || errors.Is(err, editor.ErrNotConfirmed) || errors.Is(err, editor.ErrNotEditing) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RenderDashboardPageHandler - the signed in user's posts and the post editor. Requires session
func (renderApi *Handler) RenderDashboardPageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderApi.renderDashboard(w, r, http.StatusOK, "")
	})
}

// PublishHandler - handles the new post form. Requires session
func (renderApi *Handler) PublishHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		e := renderApi.editors.For(s.Email)

		title, content := r.FormValue("title"), r.FormValue("content")
		e.SetForm(title, content)
		if _, err := e.Publish(r.Context(), title, content, s.Email); err != nil {
			renderApi.renderDashboard(w, r, editorErrorStatus(err), editor.UserMessage(err))
			return
		}
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// ownPost - the post if the session user wrote it. Renders the dashboard with a message otherwise
func (renderApi *Handler) ownPost(w http.ResponseWriter, r *http.Request) (models.Post, bool) {
	s, _ := session.FromContext(r.Context())
	post, err := postService.GetByID(r.Context(), renderApi.store, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			renderApi.renderDashboard(w, r, http.StatusNotFound, postNotFoundMessage)
			return models.Post{}, false
		}
		renderApi.logError.Printf("Error loading post %s: %s", mux.Vars(r)["id"], err)
		renderApi.renderDashboard(w, r, http.StatusInternalServerError, postLoadFailedMessage)
		return models.Post{}, false
	}
	if post.Author != s.Email {
		renderApi.logInfo.Printf("User %s is not the author of post %s", s.Email, post.ID)
		renderApi.renderDashboard(w, r, http.StatusForbidden, postNotFoundMessage)
		return models.Post{}, false
	}
	return post, true
}

// BeginEditHandler - selects one of the user's posts for editing. Requires session
func (renderApi *Handler) BeginEditHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, ok := renderApi.ownPost(w, r)
		if !ok {
			return
		}
		s, _ := session.FromContext(r.Context())
		renderApi.editors.For(s.Email).BeginEdit(post)
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// SaveEditHandler - saves the edit form. Requires session
func (renderApi *Handler) SaveEditHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		e := renderApi.editors.For(s.Email)

		err := e.SetDraft(r.FormValue("title"), r.FormValue("content"))
		if err == nil {
			err = e.SaveEdit(r.Context())
		}
		if err != nil {
			renderApi.renderDashboard(w, r, editorErrorStatus(err), editor.UserMessage(err))
			return
		}
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// CancelEditHandler - drops the edit selection. Requires session
func (renderApi *Handler) CancelEditHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		renderApi.editors.For(s.Email).Cancel()
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// RenderConfirmDeletePageHandler - asks to confirm deletion. Requires session
func (renderApi *Handler) RenderConfirmDeletePageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, ok := renderApi.ownPost(w, r)
		if !ok {
			return
		}
		renderApi.render(w, r, http.StatusOK, "confirm-delete", "Delete post", "", confirmDeletePageData{Post: post})
	})
}

// DeleteHandler - deletes the post once the confirm form was submitted. Requires session
func (renderApi *Handler) DeleteHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, ok := renderApi.ownPost(w, r)
		if !ok {
			return
		}
		s, _ := session.FromContext(r.Context())

		confirmed := func() bool { return r.FormValue("confirm") == "true" }
		if err := renderApi.editors.For(s.Email).Delete(r.Context(), post.ID, confirmed); err != nil {
			renderApi.renderDashboard(w, r, editorErrorStatus(err), editor.UserMessage(err))
			return
		}
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	})
}

// RenderAllPostsPageHandler - all posts, newest first
func (renderApi *Handler) RenderAllPostsPageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts, err := renderApi.feeds.Snapshot(r.Context(), feed.AllPosts())
		if err != nil {
			renderApi.logError.Printf("Error loading all posts: %s", err)
			renderApi.render(w, r, http.StatusInternalServerError, "posts", "Posts", editor.UserMessage(err),
				allPostsPageData{})
			return
		}
		renderApi.render(w, r, http.StatusOK, "posts", "Posts", "", allPostsPageData{Posts: posts})
	})
}

// RenderPostPageHandler - handler for server-side rendering of /posts/{id} page
func (renderApi *Handler) RenderPostPageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["id"]

		post, err := postService.GetByID(r.Context(), renderApi.store, postID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				renderApi.render(w, r, http.StatusNotFound, "post", "Not found", postNotFoundMessage, postPageData{})
				return
			}
			renderApi.logError.Printf("Error loading post %s: %s", postID, err)
			renderApi.render(w, r, http.StatusInternalServerError, "post", "Error", postLoadFailedMessage, postPageData{})
			return
		}

		renderApi.render(w, r, http.StatusOK, "post", post.Title, "", postPageData{Post: &post})
	})
}
