package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"daoquery/internal/cache"
	"daoquery/internal/contracts/cw20base"
	"daoquery/internal/contracts/cw4group"
	"daoquery/internal/contracts/cwdvoting"
	"daoquery/internal/drafts"
	"daoquery/internal/jsonrpc"
	"daoquery/internal/paginate"
	"daoquery/internal/querier"
)

// methodFunc executes one gateway method and returns its result
type methodFunc func(ctx context.Context, req *jsonrpc.Request) (interface{}, error)

// errInvalidParams marks request-shape errors
var errInvalidParams = errors.New("invalid params")

type contractParams struct {
	ChainID         string `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
}

func (p contractParams) params() querier.Params {
	return querier.Params{ChainID: p.ChainID, ContractAddress: p.ContractAddress}
}

type contractQueryParams struct {
	contractParams
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args"`
	Tokens    []string        `json:"tokens"`
}

type tokenParams struct {
	Token string `json:"token"`
}

type addressParams struct {
	contractParams
	Address string `json:"address"`
}

type walletParams struct {
	Address string `json:"address"`
}

type governanceTokenParams struct {
	contractParams
	WalletAddress        string `json:"walletAddress"`
	FetchTreasuryBalance bool   `json:"fetchTreasuryBalance"`
}

type draftParams struct {
	ID       string          `json:"id"`
	Document json.RawMessage `json:"document"`
}

func (h *Handler) registerMethods() {
	h.methods = map[string]methodFunc{
		"contract_query":             h.contractQuery,
		"contract_invalidate":        h.contractInvalidate,
		"contract_invalidateKey":     h.contractInvalidateKey,
		"cw4_listAllMembers":         h.cw4ListAllMembers,
		"cw20_balance":               h.cw20Balance,
		"cw20_listAllAccounts":       h.cw20ListAllAccounts,
		"voting_governanceTokenInfo": h.votingGovernanceTokenInfo,
		"wallet_refreshBalances":     h.walletRefreshBalances,
		"draft_save":                 h.draftSave,
		"draft_load":                 h.draftLoad,
		"draft_clear":                h.draftClear,
		"cache_stats":                h.cacheStats,
	}
}

// decodeParams decodes request params, marking failures as invalid params
func (h *Handler) decodeParams(req *jsonrpc.Request, v interface{}) error {
	if err := req.ParamsAs(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func (h *Handler) checkContract(p contractParams) error {
	if err := p.params().Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	if !h.chains.HasPool(p.ChainID) {
		return fmt.Errorf("%w: %v", errInvalidParams, fmt.Errorf("%w: '%s'", ErrUnknownChain, p.ChainID))
	}
	return nil
}

func (h *Handler) contractQuery(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p contractQueryParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.checkContract(p.contractParams); err != nil {
		return nil, err
	}

	key, err := cache.NewKey(p.params(), p.Operation, p.Args)
	if err != nil {
		return nil, err
	}

	deps := make([]cache.Token, 0, len(p.Tokens)+1)
	for _, t := range p.Tokens {
		deps = append(deps, cache.Token(t))
	}
	deps = append(deps, cache.ContractToken(p.ChainID, p.ContractAddress))

	return h.cache.Fetch(ctx, key, deps...)
}

func (h *Handler) contractInvalidate(_ context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p tokenParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Token == "" {
		return nil, fmt.Errorf("%w: token is required", errInvalidParams)
	}
	return map[string]int{"dropped": h.cache.Invalidate(cache.Token(p.Token))}, nil
}

func (h *Handler) contractInvalidateKey(_ context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p contractQueryParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	key, err := cache.NewKey(p.params(), p.Operation, p.Args)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"dropped": h.cache.InvalidateKey(key)}, nil
}

func (h *Handler) cw4ListAllMembers(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p contractParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.checkContract(p); err != nil {
		return nil, err
	}
	s, err := cw4group.New(h.cache, p.params())
	if err != nil {
		return nil, err
	}
	return s.ListAllMembersWithLimit(ctx, h.listLimit)
}

func (h *Handler) cw20Balance(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p addressParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.checkContract(p.contractParams); err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, fmt.Errorf("%w: address is required", errInvalidParams)
	}
	s, err := cw20base.New(h.cache, p.params())
	if err != nil {
		return nil, err
	}
	return s.Balance(ctx, p.Address)
}

func (h *Handler) cw20ListAllAccounts(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p contractParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.checkContract(p); err != nil {
		return nil, err
	}
	s, err := cw20base.New(h.cache, p.params())
	if err != nil {
		return nil, err
	}
	return s.ListAllAccounts(ctx)
}

func (h *Handler) votingGovernanceTokenInfo(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p governanceTokenParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.checkContract(p.contractParams); err != nil {
		return nil, err
	}
	s, err := cwdvoting.New(h.cache, p.params())
	if err != nil {
		return nil, err
	}
	return s.GovernanceTokenInfo(ctx, cwdvoting.GovernanceTokenOptions{
		WalletAddress:        p.WalletAddress,
		FetchTreasuryBalance: p.FetchTreasuryBalance,
	})
}

func (h *Handler) walletRefreshBalances(_ context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p walletParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, fmt.Errorf("%w: address is required", errInvalidParams)
	}
	return map[string]int{"dropped": cw20base.RefreshWalletBalances(h.cache, p.Address)}, nil
}

func (h *Handler) draftSave(_ context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p draftParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if len(p.Document) == 0 {
		return nil, fmt.Errorf("%w: document is required", errInvalidParams)
	}
	if err := h.drafts.Save(p.ID, p.Document); err != nil {
		return nil, err
	}
	return true, nil
}

func (h *Handler) draftLoad(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p draftParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	return h.drafts.Load(ctx, p.ID)
}

func (h *Handler) draftClear(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	var p draftParams
	if err := h.decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := h.drafts.Clear(ctx, p.ID); err != nil {
		return nil, err
	}
	return true, nil
}

type statsResult struct {
	cache.Stats
	Entries       int    `json:"entries"`
	DraftFailures uint64 `json:"draftFailures"`
}

func (h *Handler) cacheStats(context.Context, *jsonrpc.Request) (interface{}, error) {
	return statsResult{
		Stats:         h.cache.Stats(),
		Entries:       h.cache.Len(),
		DraftFailures: h.drafts.Failures(),
	}, nil
}

// toRPCError maps a method error to a JSON-RPC error
func toRPCError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, errInvalidParams),
		errors.Is(err, cache.ErrInvalidKey),
		errors.Is(err, drafts.ErrInvalidDraftID),
		errors.Is(err, paginate.ErrInvalidLimit):
		return jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())
	case errors.Is(err, drafts.ErrDraftNotFound):
		return jsonrpc.NewError(jsonrpc.CodeDraftNotFound, err.Error())
	case errors.Is(err, querier.ErrRemoteQuery),
		errors.Is(err, paginate.ErrCursorStalled):
		return jsonrpc.NewError(jsonrpc.CodeRemoteQuery, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return jsonrpc.NewError(jsonrpc.CodeServerError, "request timed out")
	default:
		return jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error())
	}
}
