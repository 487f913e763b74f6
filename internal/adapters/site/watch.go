package site

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nexonsite/internal/core"
	"nexonsite/internal/livedata"
	"nexonsite/internal/ordering"
	"nexonsite/pkg/domain"
)

const (
	watchWriteTimeout = 10 * time.Second
	watchPingInterval = 30 * time.Second
)

// Watch message types.
const (
	MessageSnapshot          = "snapshot"
	MessageSubscriptionError = "subscription_error"
	MessageRefresh           = "refresh"
)

// WatchMessage is one frame of a watch stream.
type WatchMessage struct {
	Type      string           `json:"type"`
	Path      string           `json:"path,omitempty"`
	Records   []domain.Record  `json:"records"`
	Document  *domain.Record   `json:"document,omitempty"`
	Exists    bool             `json:"exists,omitempty"`
	Error     string           `json:"error,omitempty"`
	Operation domain.Operation `json:"operation,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// stream is the slice of a watcher the socket loop drives.
type stream interface {
	next() (msg *WatchMessage, changed <-chan struct{}, final bool)
	refresh()
	close()
}

type collectionStream struct {
	w    *livedata.CollectionWatcher
	path string
	sort bool
	// filter, when set, drops records the caller may not read.
	filter func([]domain.Record) []domain.Record
}

func (s collectionStream) next() (*WatchMessage, <-chan struct{}, bool) {
	st, changed := s.w.Snapshot()
	if st.Loading {
		return nil, changed, false
	}
	if st.Err != nil {
		return errorMessage(s.path, domain.OperationList, st.Err), changed, true
	}
	records := st.Data
	if s.filter != nil {
		records = s.filter(records)
	}
	if s.sort {
		records = ordering.Sort(records)
	}
	return &WatchMessage{Type: MessageSnapshot, Path: s.path, Records: nonNil(records)}, changed, false
}

func (s collectionStream) refresh() { s.w.Refresh() }
func (s collectionStream) close()   { s.w.Close() }

type documentStream struct {
	w       *livedata.DocumentWatcher
	path    string
	visible func(domain.Record) bool
}

func (s documentStream) next() (*WatchMessage, <-chan struct{}, bool) {
	st, changed := s.w.Snapshot()
	if st.Loading {
		return nil, changed, false
	}
	if st.Err != nil {
		return errorMessage(s.path, domain.OperationGet, st.Err), changed, true
	}
	doc := st.Data
	if doc != nil && s.visible != nil && !s.visible(*doc) {
		doc = nil
	}
	return &WatchMessage{Type: MessageSnapshot, Path: s.path, Document: doc, Exists: doc != nil}, changed, false
}

func (s documentStream) refresh() { s.w.Refresh() }
func (s documentStream) close()   { s.w.Close() }

func errorMessage(path string, op domain.Operation, err error) *WatchMessage {
	msg := &WatchMessage{Type: MessageSubscriptionError, Path: path, Operation: op, Error: err.Error()}
	var perr *domain.PermissionError
	if errors.As(err, &perr) {
		msg.Path = perr.Context.Path
		msg.Operation = perr.Context.Operation
	}
	return msg
}

// openStream builds the watcher for ?collection=<name> or ?doc=<collection>/<id>.
func (h *Handler) openStream(ctx context.Context, r *http.Request) (stream, error) {
	q := r.URL.Query()
	opts := append([]livedata.Option{livedata.WithLogger(h.logger.Named("live"))}, h.deps.Live...)
	store := h.deps.Service.Store()
	principal := domain.PrincipalFromContext(r.Context())

	if doc := q.Get("doc"); doc != "" {
		i := strings.LastIndex(doc, "/")
		if i <= 0 || i == len(doc)-1 {
			return nil, errors.New("doc must be <collection>/<id>")
		}
		ref := domain.Doc(doc[:i], doc[i+1:])
		w := livedata.NewDocumentWatcher(ctx, store, opts...)
		w.Watch(ref)
		ds := documentStream{w: w, path: ref.Path()}
		if ref.Collection == core.CollectionPosts {
			ds.visible = func(rec domain.Record) bool { return core.PostVisible(principal, rec) }
		}
		return ds, nil
	}

	collection := q.Get("collection")
	if collection == "" {
		return nil, errors.New("collection or doc query parameter is required")
	}
	cs := collectionStream{path: collection, sort: collection == core.CollectionPortfolio}
	query := domain.Collection(collection)
	if collection == core.CollectionPosts {
		query = core.PostsQuery()
		cs.filter = func(recs []domain.Record) []domain.Record { return core.VisiblePosts(principal, recs) }
	}
	cs.w = livedata.NewCollectionWatcher(ctx, store, opts...)
	cs.w.Watch(query)
	return cs, nil
}

// handleWatch upgrades to a websocket and pushes the watcher state after
// every change. A subscription failure is sent once and ends the stream.
// Clients may send {"type":"refresh"} to reopen the channel.
func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	st, err := h.openStream(ctx, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer st.close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("watch upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	go func() {
		defer cancel()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg WatchMessage
			if json.Unmarshal(raw, &msg) == nil && msg.Type == MessageRefresh {
				st.refresh()
			}
		}
	}()

	ping := time.NewTicker(watchPingInterval)
	defer ping.Stop()

	for ctx.Err() == nil {
		msg, changed, final := st.next()
		if msg != nil {
			if err := writeFrame(conn, msg); err != nil {
				h.logger.Debug("watch write failed", zap.Error(err))
				return
			}
			if final {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg.Type),
					time.Now().Add(watchWriteTimeout))
				return
			}
		}
		if !waitChange(ctx, conn, changed, ping.C) {
			return
		}
	}
}

// waitChange blocks until the watcher state changes, pinging the client
// meanwhile. It returns false when the stream should end.
func waitChange(ctx context.Context, conn *websocket.Conn, changed <-chan struct{}, ping <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-changed:
			return true
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteTimeout)); err != nil {
				return false
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg *WatchMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
	return conn.WriteJSON(msg)
}
