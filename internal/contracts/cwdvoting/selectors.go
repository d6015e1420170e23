// Package cwdvoting reads cw20-staked DAO voting modules through the cache.
package cwdvoting

import (
	"context"
	"fmt"

	"daoquery/internal/cache"
	"daoquery/internal/contracts"
	"daoquery/internal/contracts/cw20base"
	"daoquery/internal/querier"
)

// Selectors are the cached queries of one voting module
type Selectors struct {
	base contracts.Base
}

// New creates selectors for the voting module at params
func New(c *cache.Cache, params querier.Params) (*Selectors, error) {
	base, err := contracts.NewBase(c, params)
	if err != nil {
		return nil, err
	}
	return &Selectors{base: base}, nil
}

// StakingContract returns the cw20-stake contract address
func (s *Selectors) StakingContract(ctx context.Context) (string, error) {
	return contracts.Query[string](ctx, s.base, "staking_contract", contracts.Empty{})
}

// TokenContract returns the governance token address
func (s *Selectors) TokenContract(ctx context.Context) (string, error) {
	return contracts.Query[string](ctx, s.base, "token_contract", contracts.Empty{})
}

// Dao returns the DAO core contract address
func (s *Selectors) Dao(ctx context.Context) (string, error) {
	return contracts.Query[string](ctx, s.base, "dao", contracts.Empty{})
}

// Info returns the deployed contract name and version
func (s *Selectors) Info(ctx context.Context) (InfoResponse, error) {
	return contracts.Query[InfoResponse](ctx, s.base, "info", contracts.Empty{})
}

// VotingPowerAtHeight returns the voting power of address. A nil height
// means the current block. Staking changes the wallet's balances, so the
// result depends on the wallet balances token.
func (s *Selectors) VotingPowerAtHeight(ctx context.Context, address string, height *uint64) (VotingPowerAtHeightResponse, error) {
	return contracts.Query[VotingPowerAtHeightResponse](ctx, s.base, "voting_power_at_height",
		votingPowerArgs{Address: address, Height: height},
		cache.WalletBalancesToken(address))
}

// TotalPowerAtHeight returns the total voting power; nil height means now
func (s *Selectors) TotalPowerAtHeight(ctx context.Context, height *uint64) (TotalPowerAtHeightResponse, error) {
	return contracts.Query[TotalPowerAtHeightResponse](ctx, s.base, "total_power_at_height",
		heightArgs{Height: height})
}

// GovernanceTokenInfo resolves the governance token and its metadata
func (s *Selectors) GovernanceTokenInfo(ctx context.Context, opts GovernanceTokenOptions) (GovernanceTokenInfo, error) {
	var info GovernanceTokenInfo

	staking, err := s.StakingContract(ctx)
	if err != nil {
		return info, err
	}
	tokenAddr, err := s.TokenContract(ctx)
	if err != nil {
		return info, err
	}

	token, err := cw20base.New(s.base.Cache(), querier.Params{
		ContractAddress: tokenAddr,
		ChainID:         s.base.Params().ChainID,
	})
	if err != nil {
		return info, fmt.Errorf("governance token: %w", err)
	}

	tokenInfo, err := token.TokenInfo(ctx)
	if err != nil {
		return info, err
	}
	marketing, err := token.MarketingInfo(ctx)
	if err != nil {
		return info, err
	}

	info = GovernanceTokenInfo{
		StakingContractAddress: staking,
		GovernanceTokenAddress: tokenAddr,
		TokenInfo:              tokenInfo,
		MarketingInfo:          marketing,
	}

	if opts.WalletAddress != "" {
		balance, err := token.Balance(ctx, opts.WalletAddress)
		if err != nil {
			return info, err
		}
		info.WalletBalance = &balance.Balance
	}

	if opts.FetchTreasuryBalance {
		core, err := s.Dao(ctx)
		if err != nil {
			return info, err
		}
		balance, err := token.Balance(ctx, core)
		if err != nil {
			return info, err
		}
		info.TreasuryBalance = &balance.Balance
	}

	return info, nil
}
