package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daoquery/internal/cache"
	"daoquery/internal/jsonrpc"
	"daoquery/internal/querier"
	"daoquery/internal/subscription"
)

// echoExecutor answers every request with its method name
type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	resp, _ := jsonrpc.NewResponse(req.ID, req.Method)
	return resp
}

func (e echoExecutor) ExecuteBatch(ctx context.Context, requests []*jsonrpc.Request) []*jsonrpc.Response {
	responses := make([]*jsonrpc.Response, len(requests))
	for i, req := range requests {
		responses[i] = e.Execute(ctx, req)
	}
	return responses
}

type nopTransport struct{}

func (nopTransport) Call(context.Context, querier.Params, string, json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type wsFixture struct {
	cache      *cache.Cache
	subManager *subscription.Manager
	conn       *websocket.Conn
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	c, err := cache.New(nopTransport{}, cache.Options{Size: 10}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	registry := subscription.NewRegistry(c, zerolog.Nop())
	t.Cleanup(registry.Close)
	subManager := subscription.NewManager(registry, 2, zerolog.Nop())

	srv := httptest.NewServer(NewHandler(echoExecutor{}, subManager, zerolog.Nop()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &wsFixture{cache: c, subManager: subManager, conn: conn}
}

func (f *wsFixture) send(t *testing.T, msg string) {
	t.Helper()
	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func (f *wsFixture) read(t *testing.T) []byte {
	t.Helper()
	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := f.conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func (f *wsFixture) readResponse(t *testing.T) *jsonrpc.Response {
	t.Helper()
	resp, err := jsonrpc.ParseResponse(f.read(t))
	require.NoError(t, err)
	return resp
}

func (f *wsFixture) subscribe(t *testing.T, tokens ...string) string {
	t.Helper()
	params, err := json.Marshal(map[string][]string{"tokens": tokens})
	require.NoError(t, err)
	f.send(t, `{"jsonrpc":"2.0","id":1,"method":"cache_subscribe","params":`+string(params)+`}`)

	resp := f.readResponse(t)
	require.Nil(t, resp.Error)
	var subID string
	require.NoError(t, resp.GetResultAs(&subID))
	require.NotEmpty(t, subID)
	return subID
}

func TestClient_InvalidationNotification(t *testing.T) {
	f := newWSFixture(t)
	token := cache.WalletBalancesToken("juno1wallet")
	subID := f.subscribe(t, string(token))

	f.cache.Invalidate(cache.Token("other"))
	f.cache.Invalidate(token)

	var notification jsonrpc.Notification
	require.NoError(t, json.Unmarshal(f.read(t), &notification))
	assert.Equal(t, subscription.NotificationMethod, notification.Method)
	assert.Equal(t, subID, notification.Params.Subscription)
	assert.JSONEq(t, `{"token":"`+string(token)+`"}`, string(notification.Params.Result))
}

func TestClient_Unsubscribe(t *testing.T) {
	f := newWSFixture(t)
	subID := f.subscribe(t, "t1")

	f.send(t, `{"jsonrpc":"2.0","id":2,"method":"cache_unsubscribe","params":{"id":"`+subID+`"}}`)
	resp := f.readResponse(t)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `true`, string(resp.Result))

	f.send(t, `{"jsonrpc":"2.0","id":3,"method":"cache_unsubscribe","params":{"id":"`+subID+`"}}`)
	resp = f.readResponse(t)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `false`, string(resp.Result))
}

func TestClient_SubscribeValidation(t *testing.T) {
	f := newWSFixture(t)

	f.send(t, `{"jsonrpc":"2.0","id":1,"method":"cache_subscribe","params":{"tokens":[]}}`)
	resp := f.readResponse(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)

	f.subscribe(t, "a")
	f.subscribe(t, "b")
	f.send(t, `{"jsonrpc":"2.0","id":1,"method":"cache_subscribe","params":{"tokens":["c"]}}`)
	resp = f.readResponse(t)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "maximum subscriptions")
}

func TestClient_ForwardsRegularRequests(t *testing.T) {
	f := newWSFixture(t)
	f.send(t, `{"jsonrpc":"2.0","id":7,"method":"cache_stats"}`)

	resp := f.readResponse(t)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"cache_stats"`, string(resp.Result))
}

func TestClient_BatchKeepsOrder(t *testing.T) {
	f := newWSFixture(t)
	f.send(t, `[
		{"jsonrpc":"2.0","id":1,"method":"contract_query"},
		{"jsonrpc":"2.0","id":2,"method":"cache_subscribe","params":{"tokens":["t"]}},
		{"jsonrpc":"2.0","id":3,"method":"cache_stats"}
	]`)

	responses, isBatch, err := jsonrpc.ParseBatchResponse(f.read(t))
	require.NoError(t, err)
	require.True(t, isBatch)
	require.Len(t, responses, 3)
	assert.JSONEq(t, `"contract_query"`, string(responses[0].Result))
	assert.Nil(t, responses[1].Error)
	assert.JSONEq(t, `"cache_stats"`, string(responses[2].Result))
	assert.Equal(t, 1, f.subManager.GetTotalSubscriptionCount())
}

func TestClient_CloseRemovesSession(t *testing.T) {
	f := newWSFixture(t)
	f.subscribe(t, "t")
	require.Equal(t, 1, f.subManager.GetSessionCount())

	require.NoError(t, f.conn.Close())
	assert.Eventually(t, func() bool {
		return f.subManager.GetSessionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
