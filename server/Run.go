package server

import (
	"context"
	"github.com/Viktor-Kode/bloghub/auth"
	"github.com/Viktor-Kode/bloghub/editor"
	"github.com/Viktor-Kode/bloghub/feed"
	"github.com/Viktor-Kode/bloghub/handler/renderapi"
	"github.com/Viktor-Kode/bloghub/handler/restapi"
	"github.com/Viktor-Kode/bloghub/session"
	"github.com/Viktor-Kode/bloghub/store"
	"github.com/Viktor-Kode/bloghub/store/memory"
	"github.com/Viktor-Kode/bloghub/store/mongo"
	"github.com/Viktor-Kode/bloghub/store/postgres"
	"github.com/gorilla/mux"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	logInfo  = log.New(os.Stdout, "INFO: ", log.Ltime)
	logError = log.New(os.Stderr, "ERROR: ", log.Ltime)
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func loggers(component string) (*log.Logger, *log.Logger) {
	return log.New(os.Stdout, "["+component+"] INFO: ", log.Ltime),
		log.New(os.Stderr, "["+component+"] ERROR: ", log.Ltime)
}

// pinger - stores that can check their backend connection
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenStore - opens the document store selected by config
func OpenStore(ctx context.Context, config Config) (store.Store, error) {
	storeLogInfo, storeLogError := loggers("store." + config.DbDriver)
	switch config.DbDriver {
	case DriverPostgres:
		logInfo.Printf("Opening database on host=%s, port=%s, user=%s, db name=%s...",
			config.DbHost, config.DbPort, config.DbUser, config.DbName)
		s, err := postgres.New(ctx, config.PostgresConnString(), storeLogInfo, storeLogError)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		logInfo.Printf("Opening mongo database %s...", config.DbName)
		s, err := mongo.New(ctx, config.MongoURI, config.DbName, storeLogInfo, storeLogError)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		logInfo.Print("Using in-memory document store. Data is lost on restart")
		return memory.NewStorage(), nil
	}
}

// NewRouter - builds every component on top of the store and mounts the routes
func NewRouter(s store.Store, config Config) (*mux.Router, error) {
	var federated auth.FederatedProvider
	if config.FederatedEnabled() {
		federated = auth.NewGoogleProvider(config.GoogleClientID, config.GoogleClientSecret, config.GoogleRedirectURL)
	}

	authLogInfo, authLogError := loggers("auth")
	provider := auth.NewProvider(s, auth.Config{
		SigningKey: config.JwtSecret,
		TokenTTL:   config.TokenTTL,
		HashCost:   config.BcryptCost,
	}, federated, authLogInfo, authLogError)

	sessionLogInfo, sessionLogError := loggers("session")
	guard := session.NewGuard(session.NewTokenResolver(config.JwtSecret, sessionLogInfo, sessionLogError),
		nil, sessionLogInfo)

	feedLogInfo, feedLogError := loggers("feed")
	feeds := feed.NewSynchronizer(s, feedLogInfo, feedLogError)
	editorLogInfo, editorLogError := loggers("editor")
	// an editor can not outlive the token of its session
	editors := editor.NewRegistry(s, config.TokenTTL, editorLogInfo, editorLogError)

	postLogInfo, postLogError := loggers("restApi.post")
	postAPIHandler := restapi.NewPostAPIHandler(s, postLogInfo, postLogError)
	userLogInfo, userLogError := loggers("restApi.user")
	userAPIHandler := restapi.NewUserAPIHandler(provider, editors.Forget, userLogInfo, userLogError)
	liveLogInfo, liveLogError := loggers("restApi.feed")
	feedAPIHandler := restapi.NewFeedAPIHandler(feeds, liveLogInfo, liveLogError)
	renderLogInfo, renderLogError := loggers("renderApi.render")
	renderAPIHandler, err := renderapi.NewRenderAPIHandler(s, feeds, editors, provider, federated != nil,
		renderLogInfo, renderLogError)
	if err != nil {
		return nil, err
	}

	unauthorized := restapi.Unauthorized()
	toLogin := session.RedirectTo(renderapi.LoginPath)

	router := mux.NewRouter()

	router.HandleFunc("/api/hc", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := s.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				logError.Printf("Health check failed: %s", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	// set auth handlers
	router.Handle("/api/user/register", userAPIHandler.RegisterUserHandler()).Methods("POST")
	router.Handle("/api/user/login", userAPIHandler.LoginUserHandler()).Methods("POST")
	router.Handle("/api/user/logout", guard.Optional(userAPIHandler.LogoutUserHandler())).Methods("POST")
	router.Handle("/api/user/session", guard.Require(unauthorized, userAPIHandler.SessionHandler())).Methods("GET")
	router.Handle("/api/user/oauth/google", userAPIHandler.FederatedLoginHandler()).Methods("GET")
	router.Handle("/api/user/oauth/google/callback",
		userAPIHandler.FederatedCallbackHandler(renderapi.DashboardPath)).Methods("GET")

	// set blog posts related rest api
	router.Handle("/api/posts/live", feedAPIHandler.AllPostsFeedHandler()).Methods("GET")
	router.Handle("/api/user/posts/live",
		guard.Require(unauthorized, feedAPIHandler.UserPostsFeedHandler())).Methods("GET")
	router.Handle("/api/user/posts", guard.Require(unauthorized, postAPIHandler.GetUserPostsHandler())).Methods("GET")
	router.Handle("/api/posts", postAPIHandler.GetPostsHandler()).Methods("GET")
	router.Handle("/api/posts", guard.Require(unauthorized, postAPIHandler.CreatePostHandler())).Methods("POST")
	router.Handle("/api/posts/{id}", postAPIHandler.GetCertainPostHandler()).Methods("GET")
	router.Handle("/api/posts/{id}", guard.Require(unauthorized, postAPIHandler.UpdatePostHandler())).Methods("PUT")
	router.Handle("/api/posts/{id}", guard.Require(unauthorized, postAPIHandler.DeletePostHandler())).Methods("DELETE")

	// set pages rendering handlers
	router.Path("/login").Handler(guard.Optional(renderAPIHandler.RenderLoginPageHandler())).Methods("GET")
	router.Path("/login").Handler(renderAPIHandler.LoginHandler()).Methods("POST")
	router.Path("/register").Handler(renderAPIHandler.RegisterHandler()).Methods("POST")
	router.Path("/logout").Handler(guard.Optional(renderAPIHandler.LogoutHandler())).Methods("GET")
	router.Path("/dashboard").Handler(guard.Require(toLogin, renderAPIHandler.RenderDashboardPageHandler())).Methods("GET")
	router.Path("/dashboard/posts").Handler(guard.Require(toLogin, renderAPIHandler.PublishHandler())).Methods("POST")
	router.Path("/dashboard/edit/{id}").Handler(guard.Require(toLogin, renderAPIHandler.BeginEditHandler())).Methods("GET")
	router.Path("/dashboard/edit").Handler(guard.Require(toLogin, renderAPIHandler.SaveEditHandler())).Methods("POST")
	router.Path("/dashboard/cancel").Handler(guard.Require(toLogin, renderAPIHandler.CancelEditHandler())).Methods("POST")
	router.Path("/dashboard/delete/{id}").
		Handler(guard.Require(toLogin, renderAPIHandler.RenderConfirmDeletePageHandler())).Methods("GET")
	router.Path("/dashboard/delete/{id}").Handler(guard.Require(toLogin, renderAPIHandler.DeleteHandler())).Methods("POST")
	router.Path("/posts").Handler(guard.Optional(renderAPIHandler.RenderAllPostsPageHandler())).Methods("GET")
	router.Path("/posts/{id}").Handler(guard.Optional(renderAPIHandler.RenderPostPageHandler())).Methods("GET")
	router.Path("/").Handler(http.RedirectHandler("/posts", http.StatusFound)).Methods("GET")

	return router, nil
}

// RunServer - reads config, opens the store and serves until SIGINT or SIGTERM
func RunServer() {
	config, err := LoadConfig()
	if err != nil {
		logError.Fatalf("Invalid configuration: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	s, err := OpenStore(ctx, config)
	cancel()
	if err != nil {
		logError.Fatalf("Error opening document store: %s", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logError.Printf("Error closing document store: %s", err)
		}
	}()
	logInfo.Print("Document store successfully opened")

	router, err := NewRouter(s, config)
	if err != nil {
		logError.Fatalf("Error building handlers: %s", err)
	}

	srv := &http.Server{Addr: ":" + config.ServerPort, Handler: router}
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logInfo.Print("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logError.Printf("Error shutting down server: %s", err)
		}
	}()

	logInfo.Printf("Starting server on port %s", config.ServerPort)
	// omitting host will run server on all interfaces
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logError.Printf("Server failed: %s", err)
	}
}
