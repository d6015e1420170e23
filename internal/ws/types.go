package ws

import (
	"context"

	"daoquery/internal/jsonrpc"
)

// Subscription methods served by the WebSocket front end only
const (
	MethodSubscribe   = "cache_subscribe"
	MethodUnsubscribe = "cache_unsubscribe"
)

// Executor runs regular JSON-RPC methods. *proxy.Handler implements it.
type Executor interface {
	Execute(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response
	ExecuteBatch(ctx context.Context, requests []*jsonrpc.Request) []*jsonrpc.Response
}

type subscribeParams struct {
	Tokens []string `json:"tokens"`
}

type unsubscribeParams struct {
	ID string `json:"id"`
}

func isSubscriptionMethod(method string) bool {
	return method == MethodSubscribe || method == MethodUnsubscribe
}
