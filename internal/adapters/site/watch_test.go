package site_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexonsite/internal/adapters/site"
	"nexonsite/internal/core"
	"nexonsite/pkg/domain"
)

func (f *fixture) dial(t *testing.T, query string, admin bool) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/watch?" + query
	header := http.Header{}
	if admin {
		header.Set("Authorization", "Bearer "+f.token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) site.WatchMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg site.WatchMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func adminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{Subject: "editor", Role: domain.RoleAdmin})
}

func TestWatchCollectionPushesSnapshots(t *testing.T) {
	f := newFixture(t, false)
	conn := f.dial(t, "collection="+core.CollectionPortfolio, false)

	first := readFrame(t, conn)
	assert.Equal(t, site.MessageSnapshot, first.Type)
	assert.Empty(t, first.Records)

	created, _, err := f.svc.CreatePortfolioItem(adminCtx(), core.PortfolioItem{Title: "Live"})
	require.NoError(t, err)

	for {
		msg := readFrame(t, conn)
		require.Equal(t, site.MessageSnapshot, msg.Type)
		if len(msg.Records) == 1 {
			assert.Equal(t, created.ID, msg.Records[0].ID)
			assert.Equal(t, "Live", msg.Records[0].String("title"))
			break
		}
	}

	require.NoError(t, conn.WriteJSON(site.WatchMessage{Type: site.MessageRefresh}))
	msg := readFrame(t, conn)
	assert.Equal(t, site.MessageSnapshot, msg.Type)
}

func TestWatchDocument(t *testing.T) {
	f := newFixture(t, false)
	post, _, err := f.svc.CreatePost(adminCtx(), core.Post{Title: "Watched", Published: true})
	require.NoError(t, err)

	conn := f.dial(t, "doc="+core.CollectionPosts+"/"+post.ID, false)
	msg := readFrame(t, conn)
	require.Equal(t, site.MessageSnapshot, msg.Type)
	require.True(t, msg.Exists)
	assert.Equal(t, "Watched", msg.Document.String("title"))
}

func TestWatchHidesDraftPosts(t *testing.T) {
	f := newFixture(t, false)
	draft, _, err := f.svc.CreatePost(adminCtx(), core.Post{Title: "Draft"})
	require.NoError(t, err)
	_, _, err = f.svc.CreatePost(adminCtx(), core.Post{Title: "Live", Published: true})
	require.NoError(t, err)

	doc := f.dial(t, "doc="+core.CollectionPosts+"/"+draft.ID, false)
	msg := readFrame(t, doc)
	require.Equal(t, site.MessageSnapshot, msg.Type)
	assert.False(t, msg.Exists)
	assert.Nil(t, msg.Document)

	list := f.dial(t, "collection="+core.CollectionPosts, false)
	msg = readFrame(t, list)
	require.Equal(t, site.MessageSnapshot, msg.Type)
	require.Len(t, msg.Records, 1)
	assert.Equal(t, "Live", msg.Records[0].String("title"))

	admin := f.dial(t, "collection="+core.CollectionPosts, true)
	msg = readFrame(t, admin)
	require.Equal(t, site.MessageSnapshot, msg.Type)
	assert.Len(t, msg.Records, 2)
}

func TestWatchDeniedCollectionSendsSubscriptionError(t *testing.T) {
	f := newFixture(t, false)
	conn := f.dial(t, "collection=drafts", false)

	msg := readFrame(t, conn)
	assert.Equal(t, site.MessageSubscriptionError, msg.Type)
	assert.Equal(t, "drafts", msg.Path)
	assert.Equal(t, domain.OperationList, msg.Operation)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	admin := f.dial(t, "collection=drafts", true)
	assert.Equal(t, site.MessageSnapshot, readFrame(t, admin).Type)
}

func TestWatchRequiresTarget(t *testing.T) {
	f := newFixture(t, false)
	resp, body := f.do(t, http.MethodGet, "/api/v1/watch", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "collection")

	resp, _ = f.do(t, http.MethodGet, "/api/v1/watch?doc=posts", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
