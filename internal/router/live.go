package router

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"elearning/internal/coursework"
	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/session"
	"elearning/internal/store"
	"elearning/internal/syncstatus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Live message types.
const (
	LiveSession       = "session"
	LiveDenied        = "denied"
	LiveSync          = "sync"
	LiveNotifications = "notifications"
	LiveMaterials     = "materials"
	LiveTasks         = "tasks"
	LivePending       = "pending"
	LiveSettings      = "settings"

	liveDismissBanner = "dismissBanner"
)

// LiveMessage is one frame of the live feed.
type LiveMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// GET: /v1/live
//
// Upgrades to a websocket that streams the caller's session state and, while the session is
// authorized, the collections their dashboard shows. The socket is closed when the session signs
// out, which is also what happens right after a denial.
func (api *API) ServeLive(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(api.Config.SessionCookieName)
	if err != nil {
		writeError(w, r, qerrors.UnauthenticatedError)
		return
	}
	client, err := api.Gateway.Backend().Resume(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, r, qerrors.UnauthenticatedError)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     api.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("error upgrading live connection: %v\n", err)
		return
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l := &liveConn{
		api:    api,
		ctx:    ctx,
		out:    make(chan LiveMessage, 16),
		synced: make(chan struct{}, 1),
	}

	unsubSync := api.Repo.Sync().Subscribe(l.setSync)
	defer unsubSync()

	controller := session.NewController(api.Repo, client)
	unsubSession := controller.Subscribe(func(snapshot session.Snapshot) {
		l.onSession(snapshot, cancel)
	})
	defer unsubSession()
	controller.Start(ctx)
	defer controller.Close()
	defer l.stopFeeds()

	g.Go(func() error {
		return l.writeLoop(conn)
	})
	g.Go(func() error {
		defer cancel()
		return l.readLoop(conn)
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		glog.V(1).Infof("live connection closed: %v", err)
	}
}

// liveConn is the state of one live connection.
type liveConn struct {
	api *API
	ctx context.Context
	out chan LiveMessage

	// The latest sync state, coalesced so a slow socket never holds up writers.
	syncMu    sync.Mutex
	syncState *syncstatus.State
	synced    chan struct{}

	feedMu  sync.Mutex
	feedKey string
	feeds   []store.Subscription
	started bool
}

func (l *liveConn) send(msg LiveMessage) {
	select {
	case l.out <- msg:
	case <-l.ctx.Done():
	}
}

func (l *liveConn) setSync(state syncstatus.State) {
	l.syncMu.Lock()
	l.syncState = &state
	l.syncMu.Unlock()

	select {
	case l.synced <- struct{}{}:
	default:
	}
}

func (l *liveConn) takeSync() *syncstatus.State {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()
	state := l.syncState
	l.syncState = nil
	return state
}

func (l *liveConn) onSession(snapshot session.Snapshot, closeConn context.CancelFunc) {
	l.send(LiveMessage{Type: LiveSession, Data: snapshot})
	if snapshot.Denial != nil {
		l.send(LiveMessage{Type: LiveDenied, Message: snapshot.Denial.Error()})
	}

	switch snapshot.State {
	case session.Authorized:
		l.startFeeds(snapshot.Profile)
	case session.Unauthenticated:
		l.feedMu.Lock()
		started := l.started
		l.feedMu.Unlock()
		l.stopFeeds()
		if started {
			closeConn()
		}
	default:
		l.feedMu.Lock()
		l.started = true
		l.feedMu.Unlock()
		l.stopFeeds()
	}
}

// startFeeds subscribes to what the profile's dashboard shows. Feeds are replaced when the profile
// changes in a way that changes visibility.
func (l *liveConn) startFeeds(profile *models.UserProfile) {
	key := string(profile.Role) + "|" + profile.ID + "|" + profile.ClassID

	l.feedMu.Lock()
	l.started = true
	if l.feedKey == key {
		l.feedMu.Unlock()
		return
	}
	old := l.feeds
	l.feeds = nil
	l.feedKey = key
	l.feedMu.Unlock()

	for _, sub := range old {
		sub.Stop()
	}

	repo := l.api.Repo
	subs := []store.Subscription{
		repo.WatchNotifications(l.ctx, profile.ID, func(notifications []*models.Notification, err error) {
			if err == nil {
				l.send(LiveMessage{Type: LiveNotifications, Data: notifications})
			}
		}),
		repo.WatchMaterials(l.ctx, func(materials []*models.Material, err error) {
			if err == nil {
				l.send(LiveMessage{Type: LiveMaterials, Data: coursework.VisibleMaterials(materials, profile)})
			}
		}),
		repo.WatchTasks(l.ctx, func(tasks []*models.Task, err error) {
			if err == nil {
				l.send(LiveMessage{Type: LiveTasks, Data: coursework.VisibleTasks(tasks, profile)})
			}
		}),
		repo.WatchSiteSettings(l.ctx, func(settings *models.SiteSettings) {
			l.send(LiveMessage{Type: LiveSettings, Data: settings})
		}),
	}
	if profile.IsAdmin() {
		subs = append(subs, l.api.Registration.WatchPending(l.ctx, func(pending []*models.UserProfile, err error) {
			if err == nil {
				l.send(LiveMessage{Type: LivePending, Data: pending})
			}
		}))
	}

	l.feedMu.Lock()
	if l.feedKey != key {
		// Replaced or stopped while subscribing.
		l.feedMu.Unlock()
		for _, sub := range subs {
			sub.Stop()
		}
		return
	}
	l.feeds = subs
	l.feedMu.Unlock()
}

func (l *liveConn) stopFeeds() {
	l.feedMu.Lock()
	old := l.feeds
	l.feeds = nil
	l.feedKey = ""
	l.feedMu.Unlock()

	for _, sub := range old {
		sub.Stop()
	}
}

func (l *liveConn) writeLoop(conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg LiveMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	for {
		select {
		case msg := <-l.out:
			if err := write(msg); err != nil {
				return err
			}
		case <-l.synced:
			if state := l.takeSync(); state != nil {
				if err := write(LiveMessage{Type: LiveSync, Data: state}); err != nil {
					return err
				}
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-l.ctx.Done():
			// Flush what the session already published, such as a denial, before closing.
			for {
				select {
				case msg := <-l.out:
					if err := write(msg); err != nil {
						return err
					}
				default:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return conn.Close()
				}
			}
		}
	}
}

func (l *liveConn) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if l.ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Type == liveDismissBanner {
			l.api.Repo.Sync().DismissBanner()
		}
	}
}

func (api *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range api.Config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
