package restapi

import (
	"context"
	"github.com/Viktor-Kode/bloghub/feed"
	"github.com/Viktor-Kode/bloghub/models"
	"github.com/Viktor-Kode/bloghub/session"
	"github.com/gorilla/websocket"
	"log"
	"net/http"
	"time"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FeedAPIHandler - streams live feeds over websockets
type FeedAPIHandler struct {
	sync     *feed.Synchronizer
	upgrader websocket.Upgrader
	logInfo  *log.Logger
	logError *log.Logger
}

// NewFeedAPIHandler - creates handler
func NewFeedAPIHandler(sync *feed.Synchronizer, logInfo, logError *log.Logger) *FeedAPIHandler {
	return &FeedAPIHandler{
		sync: sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logInfo:  logInfo,
		logError: logError,
	}
}

// feedFrame - websocket message carrying the full ordered feed
type feedFrame struct {
	Posts []models.Post `json:"posts"`
}

// feedErrorFrame - last websocket message of a feed that ended with an error
type feedErrorFrame struct {
	Error models.RequestErrorCode `json:"error"`
}

// AllPostsFeedHandler - live public feed
func (api *FeedAPIHandler) AllPostsFeedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.serve(w, r, feed.AllPosts())
	})
}

// UserPostsFeedHandler - live feed of the session user's posts. Requires session
func (api *FeedAPIHandler) UserPostsFeedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		api.serve(w, r, feed.ByAuthor(s.Email))
	})
}

func (api *FeedAPIHandler) serve(w http.ResponseWriter, r *http.Request, spec feed.Spec) {
	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already responded
		api.logInfo.Printf("Websocket upgrade failed: %s", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := api.sync.Subscribe(ctx, spec)
	if err != nil {
		api.logError.Printf("Error subscribing to feed: %s", err)
		api.writeFrame(conn, feedErrorFrame{Error: TechnicalError})
		return
	}
	defer f.Close()

	// the read loop only watches for the client going away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-f.Updates():
			if !ok {
				return
			}
			if update.Err != nil {
				api.logError.Printf("Feed ended with error: %s", update.Err)
				api.writeFrame(conn, feedErrorFrame{Error: TechnicalError})
				return
			}
			posts := update.Posts
			if posts == nil {
				posts = []models.Post{}
			}
			if !api.writeFrame(conn, feedFrame{Posts: posts}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			api.logInfo.Print("Feed client disconnected")
			return
		}
	}
}

func (api *FeedAPIHandler) writeFrame(conn *websocket.Conn, frame interface{}) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		api.logInfo.Printf("Error writing feed frame: %s", err)
		return false
	}
	return true
}
