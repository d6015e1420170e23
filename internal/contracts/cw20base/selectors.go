// Package cw20base reads cw20 token contracts through the cache. Balance
// and allowance queries depend on the owner's wallet balances token, so
// RefreshWalletBalances makes them refetch after a transaction.
package cw20base

import (
	"context"

	"daoquery/internal/cache"
	"daoquery/internal/contracts"
	"daoquery/internal/paginate"
	"daoquery/internal/querier"
)

// AllAccountsLimit is the page size used when listing every account
const AllAccountsLimit = 30

// Selectors are the cached queries of one cw20 contract
type Selectors struct {
	base contracts.Base
}

// New creates selectors for the token at params
func New(c *cache.Cache, params querier.Params) (*Selectors, error) {
	base, err := contracts.NewBase(c, params)
	if err != nil {
		return nil, err
	}
	return &Selectors{base: base}, nil
}

// RefreshWalletBalances drops every cached query that depends on the
// balances of address and returns how many entries were dropped
func RefreshWalletBalances(c *cache.Cache, address string) int {
	return c.Invalidate(cache.WalletBalancesToken(address))
}

// Balance returns the token balance of address
func (s *Selectors) Balance(ctx context.Context, address string) (BalanceResponse, error) {
	return contracts.Query[BalanceResponse](ctx, s.base, "balance",
		balanceArgs{Address: address},
		cache.WalletBalancesToken(address))
}

// TokenInfo returns name, symbol, decimals and supply
func (s *Selectors) TokenInfo(ctx context.Context) (TokenInfoResponse, error) {
	return contracts.Query[TokenInfoResponse](ctx, s.base, "token_info", contracts.Empty{})
}

// Minter returns the minter, or nil when minting is disabled
func (s *Selectors) Minter(ctx context.Context) (*MinterResponse, error) {
	return contracts.Query[*MinterResponse](ctx, s.base, "minter", contracts.Empty{})
}

// Allowance returns what spender may move on behalf of owner
func (s *Selectors) Allowance(ctx context.Context, owner, spender string) (AllowanceResponse, error) {
	return contracts.Query[AllowanceResponse](ctx, s.base, "allowance",
		allowanceArgs{Owner: owner, Spender: spender},
		cache.WalletBalancesToken(owner))
}

// AllAllowances returns one page of allowances granted by owner
func (s *Selectors) AllAllowances(ctx context.Context, owner, startAfter string, limit int) (AllAllowancesResponse, error) {
	return contracts.Query[AllAllowancesResponse](ctx, s.base, "all_allowances",
		allAllowancesArgs{Owner: owner, StartAfter: startAfter, Limit: limit},
		cache.WalletBalancesToken(owner))
}

// AllAccounts returns one page of holder addresses
func (s *Selectors) AllAccounts(ctx context.Context, startAfter string, limit int) (AllAccountsResponse, error) {
	return contracts.Query[AllAccountsResponse](ctx, s.base, "all_accounts",
		allAccountsArgs{StartAfter: startAfter, Limit: limit})
}

// ListAllAccounts walks all_accounts with AllAccountsLimit
func (s *Selectors) ListAllAccounts(ctx context.Context) (AllAccountsResponse, error) {
	return s.ListAllAccountsWithLimit(ctx, AllAccountsLimit)
}

// ListAllAccountsWithLimit walks all_accounts using pages of limit
func (s *Selectors) ListAllAccountsWithLimit(ctx context.Context, limit int) (AllAccountsResponse, error) {
	accounts, err := paginate.CollectAll(ctx, func(ctx context.Context, cursor string, limit int) (paginate.Page[string], error) {
		resp, err := s.AllAccounts(ctx, cursor, limit)
		if err != nil {
			return paginate.Page[string]{}, err
		}
		return paginate.CursorFrom(resp.Accounts, func(a string) string { return a }), nil
	}, limit)
	if err != nil {
		return AllAccountsResponse{}, err
	}
	return AllAccountsResponse{Accounts: accounts}, nil
}

// MarketingInfo returns the token's marketing metadata
func (s *Selectors) MarketingInfo(ctx context.Context) (MarketingInfoResponse, error) {
	return contracts.Query[MarketingInfoResponse](ctx, s.base, "marketing_info", contracts.Empty{})
}

// DownloadLogo returns the embedded logo
func (s *Selectors) DownloadLogo(ctx context.Context) (DownloadLogoResponse, error) {
	return contracts.Query[DownloadLogoResponse](ctx, s.base, "download_logo", contracts.Empty{})
}
