package proxy

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"daoquery/internal/cache"
	"daoquery/internal/config"
	"daoquery/internal/drafts"
	"daoquery/internal/jsonrpc"
)

// ChainChecker reports whether a chain is served
type ChainChecker interface {
	HasPool(chainID string) bool
}

// Handler handles HTTP JSON-RPC requests
type Handler struct {
	chains         ChainChecker
	cache          *cache.Cache
	drafts         *drafts.Manager
	listLimit      int
	requestTimeout time.Duration
	maxBodySize    int64
	methods        map[string]methodFunc
	logger         zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(chains ChainChecker, queryCache *cache.Cache, draftManager *drafts.Manager, cfg *config.Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		chains:         chains,
		cache:          queryCache,
		drafts:         draftManager,
		listLimit:      cfg.ListPageLimit,
		requestTimeout: cfg.GetRequestTimeoutDuration(),
		maxBodySize:    cfg.MaxBodySize,
		logger:         logger.With().Str("component", "proxy").Logger(),
	}
	h.registerMethods()
	return h
}

// ServeHTTP handles HTTP requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only accept POST requests
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Read request body
	var body []byte
	var err error
	if h.maxBodySize > 0 {
		body, err = io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
		if err != nil {
			h.writeJSONRPCError(w, jsonrpc.NewIDNull(), jsonrpc.NewError(jsonrpc.CodeParseError, "failed to read request body"))
			return
		}
		if int64(len(body)) > h.maxBodySize {
			h.writeJSONRPCError(w, jsonrpc.NewIDNull(), jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "request body too large"))
			return
		}
	} else {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			h.writeJSONRPCError(w, jsonrpc.NewIDNull(), jsonrpc.NewError(jsonrpc.CodeParseError, "failed to read request body"))
			return
		}
	}

	// Parse JSON-RPC request(s)
	requests, isBatch, err := jsonrpc.ParseBatchRequest(body)
	if err != nil {
		h.writeJSONRPCError(w, jsonrpc.NewIDNull(), jsonrpc.ErrParse)
		return
	}

	if isBatch {
		h.writeBatchResponse(w, h.ExecuteBatch(r.Context(), requests))
	} else {
		h.writeResponse(w, h.Execute(r.Context(), requests[0]))
	}
}

// Execute runs a single request. It is shared with the WebSocket front end.
func (h *Handler) Execute(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if err := req.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, err.Error()))
	}

	method, ok := h.methods[req.Method]
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrMethodNotFound)
	}

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := method(ctx, req)
	if err != nil {
		rpcErr := toRPCError(err)
		h.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Int("code", rpcErr.Code).
			Dur("elapsed", time.Since(start)).
			Msg("request failed")
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	var resp *jsonrpc.Response
	if raw, ok := result.(json.RawMessage); ok {
		resp = jsonrpc.NewResponseRaw(req.ID, raw)
	} else if resp, err = jsonrpc.NewResponse(req.ID, result); err != nil {
		h.logger.Error().Err(err).Str("method", req.Method).Msg("failed to marshal result")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInternal)
	}

	h.logger.Debug().
		Str("method", req.Method).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
	return resp
}

// ExecuteBatch runs the requests concurrently so that identical queries
// in one batch share a single remote call
func (h *Handler) ExecuteBatch(ctx context.Context, requests []*jsonrpc.Request) []*jsonrpc.Response {
	responses := make([]*jsonrpc.Response, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *jsonrpc.Request) {
			defer wg.Done()
			responses[i] = h.Execute(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return responses
}

// writeResponse writes a JSON-RPC response
func (h *Handler) writeResponse(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	data, err := resp.Bytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal response")
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Write(data)
}

// writeBatchResponse writes a batch of JSON-RPC responses
func (h *Handler) writeBatchResponse(w http.ResponseWriter, responses []*jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	data, err := jsonrpc.MarshalBatchResponse(responses)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal batch response")
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Write(data)
}

// writeJSONRPCError writes a JSON-RPC error response
func (h *Handler) writeJSONRPCError(w http.ResponseWriter, id jsonrpc.ID, rpcErr *jsonrpc.Error) {
	resp := jsonrpc.NewErrorResponse(id, rpcErr)
	h.writeResponse(w, resp)
}

// writeError writes a plain HTTP error
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}
