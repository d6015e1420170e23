package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daoquery/internal/cache"
	"daoquery/internal/config"
	"daoquery/internal/contracts/contractstest"
	"daoquery/internal/contracts/cw20base"
	"daoquery/internal/contracts/cw4group"
	"daoquery/internal/drafts"
	"daoquery/internal/jsonrpc"
)

const (
	chainID   = "juno-1"
	groupAddr = "juno1group"
	tokenAddr = "juno1token"
)

type chainSet map[string]bool

func (c chainSet) HasPool(chainID string) bool { return c[chainID] }

type fixture struct {
	handler   *Handler
	transport *contractstest.Transport
	cache     *cache.Cache
	store     *drafts.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	transport := contractstest.New()
	c, err := cache.New(transport, cache.Options{Size: 100}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	store := drafts.NewMemoryStore()
	manager := drafts.NewManager(store, time.Hour, "draft:", zerolog.Nop())

	cfg := &config.Config{ListPageLimit: 2, RequestTimeout: 5000}
	h := NewHandler(chainSet{chainID: true}, c, manager, cfg, zerolog.Nop())
	return &fixture{handler: h, transport: transport, cache: c, store: store}
}

func (f *fixture) call(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) rpc(t *testing.T, method string, params interface{}) *jsonrpc.Response {
	t.Helper()
	req, err := jsonrpc.NewRequest(method, params, jsonrpc.NewIDInt(1))
	require.NoError(t, err)
	body, err := req.Bytes()
	require.NoError(t, err)

	rec := f.call(t, string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	resp, err := jsonrpc.ParseResponse(rec.Body.Bytes())
	require.NoError(t, err)
	return resp
}

func TestHandler_ContractQueryIsCached(t *testing.T) {
	f := newFixture(t)
	f.transport.Reply(groupAddr, "total_weight", cw4group.TotalWeightResponse{Weight: 9})

	params := map[string]interface{}{
		"chainId":         chainID,
		"contractAddress": groupAddr,
		"operation":       "total_weight",
	}
	for i := 0; i < 3; i++ {
		resp := f.rpc(t, "contract_query", params)
		require.Nil(t, resp.Error)
		assert.JSONEq(t, `{"weight":9}`, string(resp.Result))
	}
	assert.Equal(t, 1, f.transport.Calls(groupAddr, "total_weight"))

	resp := f.rpc(t, "contract_invalidate", map[string]string{"token": string(cache.ContractToken(chainID, groupAddr))})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"dropped":1}`, string(resp.Result))

	f.rpc(t, "contract_query", params)
	assert.Equal(t, 2, f.transport.Calls(groupAddr, "total_weight"))
}

func TestHandler_ContractQueryFailureIsCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	params := map[string]interface{}{
		"chainId":         chainID,
		"contractAddress": groupAddr,
		"operation":       "admin",
		"args":            map[string]interface{}{},
	}

	resp := f.rpc(t, "contract_query", params)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeRemoteQuery, resp.Error.Code)

	f.rpc(t, "contract_query", params)
	assert.Equal(t, 1, f.transport.Calls(groupAddr, "admin"))

	admin := "juno1admin"
	f.transport.Reply(groupAddr, "admin", cw4group.AdminResponse{Admin: &admin})

	resp = f.rpc(t, "contract_invalidateKey", params)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"dropped":true}`, string(resp.Result))

	resp = f.rpc(t, "contract_query", params)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"admin":"juno1admin"}`, string(resp.Result))
}

func TestHandler_InvalidParams(t *testing.T) {
	f := newFixture(t)

	resp := f.rpc(t, "contract_query", map[string]string{"chainId": "unknown-1", "contractAddress": groupAddr, "operation": "admin"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)

	resp = f.rpc(t, "contract_query", map[string]string{"chainId": chainID, "contractAddress": groupAddr})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)

	resp = f.rpc(t, "cw20_balance", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestHandler_UnknownMethod(t *testing.T) {
	f := newFixture(t)
	resp := f.rpc(t, "eth_blockNumber", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestHandler_ListAllMembers(t *testing.T) {
	f := newFixture(t)
	members := []cw4group.Member{{Addr: "a", Weight: 1}, {Addr: "b", Weight: 1}, {Addr: "c", Weight: 1}}
	f.transport.Handle(groupAddr, "list_members", func(msg json.RawMessage) (interface{}, error) {
		var args struct {
			StartAfter string `json:"start_after"`
			Limit      int    `json:"limit"`
		}
		if err := json.Unmarshal(msg, &args); err != nil {
			return nil, err
		}
		switch args.StartAfter {
		case "":
			return cw4group.ListMembersResponse{Members: members[:2]}, nil
		case "b":
			return cw4group.ListMembersResponse{Members: members[2:]}, nil
		}
		return cw4group.ListMembersResponse{Members: []cw4group.Member{}}, nil
	})

	resp := f.rpc(t, "cw4_listAllMembers", map[string]string{"chainId": chainID, "contractAddress": groupAddr})
	require.Nil(t, resp.Error)

	var out cw4group.ListMembersResponse
	require.NoError(t, resp.GetResultAs(&out))
	assert.Len(t, out.Members, 3)
	assert.Equal(t, 2, f.transport.Calls(groupAddr, "list_members"))
}

func TestHandler_BalanceAndRefresh(t *testing.T) {
	f := newFixture(t)
	f.transport.Reply(tokenAddr, "balance", cw20base.BalanceResponse{Balance: "12"})

	params := map[string]string{"chainId": chainID, "contractAddress": tokenAddr, "address": "juno1wallet"}
	resp := f.rpc(t, "cw20_balance", params)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"balance":"12"}`, string(resp.Result))

	resp = f.rpc(t, "wallet_refreshBalances", map[string]string{"address": "juno1wallet"})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"dropped":1}`, string(resp.Result))

	f.rpc(t, "cw20_balance", params)
	assert.Equal(t, 2, f.transport.Calls(tokenAddr, "balance"))
}

func TestHandler_Drafts(t *testing.T) {
	f := newFixture(t)

	resp := f.rpc(t, "draft_load", map[string]string{"id": "newDao"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeDraftNotFound, resp.Error.Code)

	resp = f.rpc(t, "draft_save", map[string]interface{}{"id": "newDao", "document": map[string]string{"name": "x"}})
	require.Nil(t, resp.Error)

	resp = f.rpc(t, "draft_load", map[string]string{"id": "newDao"})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"name":"x"}`, string(resp.Result))

	resp = f.rpc(t, "draft_clear", map[string]string{"id": "newDao"})
	require.Nil(t, resp.Error)

	value, found, err := f.store.Read(context.Background(), "draft:newDao")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "null", value)

	resp = f.rpc(t, "draft_save", map[string]string{"id": ""})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestHandler_Batch(t *testing.T) {
	f := newFixture(t)
	f.transport.Reply(groupAddr, "hooks", cw4group.HooksResponse{Hooks: []string{}})

	query := `{"jsonrpc":"2.0","id":%d,"method":"contract_query","params":{"chainId":"juno-1","contractAddress":"juno1group","operation":"hooks"}}`
	body := "[" + fmt.Sprintf(query, 1) + "," + fmt.Sprintf(query, 2) + `,{"jsonrpc":"2.0","id":3,"method":"cache_stats"}]`

	rec := f.call(t, body)
	responses, isBatch, err := jsonrpc.ParseBatchResponse(rec.Body.Bytes())
	require.NoError(t, err)
	require.True(t, isBatch)
	require.Len(t, responses, 3)
	for _, r := range responses[:2] {
		require.Nil(t, r.Error)
		assert.JSONEq(t, `{"hooks":[]}`, string(r.Result))
	}
	assert.Equal(t, 1, f.transport.Calls(groupAddr, "hooks"))
}

func TestHandler_RejectsNonPost(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_ParseError(t *testing.T) {
	f := newFixture(t)
	rec := f.call(t, "{not json")
	resp, err := jsonrpc.ParseResponse(rec.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeParseError, resp.Error.Code)
}
