package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"daoquery/internal/cache"
	"daoquery/internal/jsonrpc"
	"daoquery/internal/subscription"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB
)

// Client represents a WebSocket client connection
type Client struct {
	conn       *websocket.Conn
	executor   Executor
	subManager *subscription.Manager
	logger     zerolog.Logger

	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, executor Executor, subManager *subscription.Manager, logger zerolog.Logger) *Client {
	return &Client{
		conn:       conn,
		executor:   executor,
		subManager: subManager,
		logger:     logger,
		sendChan:   make(chan []byte, 256),
		closeChan:  make(chan struct{}),
	}
}

// Run starts the client read and write loops
func (c *Client) Run(ctx context.Context) {
	// Configure connection
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start write goroutine
	go c.writePump(ctx)

	// Read loop (runs in current goroutine)
	c.readPump(ctx)
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		// Process the message
		c.handleMessage(ctx, data)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		case data := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	requests, isBatch, err := jsonrpc.ParseBatchRequest(data)
	if err != nil {
		c.sendError(jsonrpc.NewIDNull(), jsonrpc.ErrParse)
		return
	}

	if isBatch {
		c.sendBatchResponse(c.handleBatch(ctx, requests))
	} else {
		c.sendResponse(c.handleSingle(ctx, requests[0]))
	}
}

// handleSingle handles a single JSON-RPC request
func (c *Client) handleSingle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if isSubscriptionMethod(req.Method) {
		return c.handleSubscription(req)
	}
	return c.executor.Execute(ctx, req)
}

// handleBatch answers subscription requests locally and forwards the rest
// as one batch, keeping the response order of the request
func (c *Client) handleBatch(ctx context.Context, requests []*jsonrpc.Request) []*jsonrpc.Response {
	responses := make([]*jsonrpc.Response, len(requests))
	var regularReqs []*jsonrpc.Request
	var regularIndices []int

	for i, req := range requests {
		if isSubscriptionMethod(req.Method) {
			responses[i] = c.handleSubscription(req)
			continue
		}
		regularReqs = append(regularReqs, req)
		regularIndices = append(regularIndices, i)
	}

	if len(regularReqs) > 0 {
		for j, resp := range c.executor.ExecuteBatch(ctx, regularReqs) {
			responses[regularIndices[j]] = resp
		}
	}
	return responses
}

func (c *Client) handleSubscription(req *jsonrpc.Request) *jsonrpc.Response {
	if err := req.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, err.Error()))
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case MethodSubscribe:
		result, err = c.handleSubscribe(req)
	case MethodUnsubscribe:
		result, err = c.handleUnsubscribe(req)
	}
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error()))
	}

	resp, err := jsonrpc.NewResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInternal)
	}
	return resp
}

// handleSubscribe handles cache_subscribe and returns the subscription ID
func (c *Client) handleSubscribe(req *jsonrpc.Request) (interface{}, error) {
	var p subscribeParams
	if err := req.ParamsAs(&p); err != nil {
		return nil, err
	}

	tokens := make([]cache.Token, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		if t == "" {
			return nil, errors.New("empty token")
		}
		tokens = append(tokens, cache.Token(t))
	}

	session := c.subManager.GetOrCreateSession(c.conn, c.send)
	subID, err := session.Subscribe(tokens)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("subID", subID).
		Int("tokens", len(tokens)).
		Msg("subscription created")
	return subID, nil
}

// handleUnsubscribe handles cache_unsubscribe. Unknown IDs yield false.
func (c *Client) handleUnsubscribe(req *jsonrpc.Request) (interface{}, error) {
	var p unsubscribeParams
	if err := req.ParamsAs(&p); err != nil {
		return nil, err
	}

	success := false
	if session := c.subManager.GetSession(c.conn); session != nil {
		success = session.Unsubscribe(p.ID) == nil
	}

	c.logger.Debug().
		Str("subID", p.ID).
		Bool("success", success).
		Msg("unsubscribe requested")
	return success, nil
}

// sendResponse sends a JSON-RPC response
func (c *Client) sendResponse(resp *jsonrpc.Response) {
	data, err := resp.Bytes()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal response")
		return
	}
	c.send(data)
}

// sendBatchResponse sends a batch of JSON-RPC responses
func (c *Client) sendBatchResponse(responses []*jsonrpc.Response) {
	data, err := jsonrpc.MarshalBatchResponse(responses)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal batch response")
		return
	}
	c.send(data)
}

// sendError sends a JSON-RPC error response
func (c *Client) sendError(id jsonrpc.ID, rpcErr *jsonrpc.Error) {
	resp := jsonrpc.NewErrorResponse(id, rpcErr)
	c.sendResponse(resp)
}

// send sends data to the client
func (c *Client) send(data []byte) {
	select {
	case c.sendChan <- data:
	case <-c.closeChan:
	default:
		// Channel full, drop message
		c.logger.Warn().Msg("send channel full, dropping message")
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.subManager.RemoveSession(c.conn)
		c.conn.Close()
		c.logger.Debug().Msg("client closed")
	})
}
