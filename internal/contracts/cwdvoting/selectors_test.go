package cwdvoting

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daoquery/internal/cache"
	"daoquery/internal/contracts"
	"daoquery/internal/contracts/contractstest"
	"daoquery/internal/contracts/cw20base"
	"daoquery/internal/querier"
)

const (
	votingAddr  = "juno1voting"
	stakingAddr = "juno1stake"
	tokenAddr   = "juno1token"
	coreAddr    = "juno1core"
)

var votingParams = querier.Params{ContractAddress: votingAddr, ChainID: "juno-1"}

func newVotingChain() *contractstest.Transport {
	transport := contractstest.New()
	transport.Reply(votingAddr, "staking_contract", stakingAddr)
	transport.Reply(votingAddr, "token_contract", tokenAddr)
	transport.Reply(votingAddr, "dao", coreAddr)
	transport.Reply(votingAddr, "info", InfoResponse{Info: ContractVersion{Contract: "crates.io:cwd-voting-cw20-staked", Version: "0.2.0"}})
	transport.Reply(tokenAddr, "token_info", cw20base.TokenInfoResponse{Name: "Dao", Symbol: "DAO", Decimals: 6, TotalSupply: "1000"})
	transport.Reply(tokenAddr, "marketing_info", cw20base.MarketingInfoResponse{Logo: &cw20base.LogoInfo{URL: "https://example.com/dao.png"}})
	transport.Handle(tokenAddr, "balance", func(msg json.RawMessage) (interface{}, error) {
		var args struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(msg, &args); err != nil {
			return nil, err
		}
		switch args.Address {
		case coreAddr:
			return cw20base.BalanceResponse{Balance: "900"}, nil
		case "juno1wallet":
			return cw20base.BalanceResponse{Balance: "25"}, nil
		}
		return cw20base.BalanceResponse{Balance: "0"}, nil
	})
	return transport
}

func newSelectors(t *testing.T, transport querier.Transport) (*Selectors, *cache.Cache) {
	t.Helper()
	c, err := cache.New(transport, cache.Options{Size: 100}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	s, err := New(c, votingParams)
	require.NoError(t, err)
	return s, c
}

func TestGovernanceTokenInfo(t *testing.T) {
	transport := newVotingChain()
	s, _ := newSelectors(t, transport)

	info, err := s.GovernanceTokenInfo(context.Background(), GovernanceTokenOptions{
		WalletAddress:        "juno1wallet",
		FetchTreasuryBalance: true,
	})
	require.NoError(t, err)

	assert.Equal(t, stakingAddr, info.StakingContractAddress)
	assert.Equal(t, tokenAddr, info.GovernanceTokenAddress)
	assert.Equal(t, "DAO", info.TokenInfo.Symbol)
	require.NotNil(t, info.MarketingInfo.Logo)
	assert.Equal(t, "https://example.com/dao.png", info.MarketingInfo.Logo.URL)
	require.NotNil(t, info.WalletBalance)
	assert.Equal(t, contracts.Uint128("25"), *info.WalletBalance)
	require.NotNil(t, info.TreasuryBalance)
	assert.Equal(t, contracts.Uint128("900"), *info.TreasuryBalance)
}

func TestGovernanceTokenInfo_OptionalBalancesSkipped(t *testing.T) {
	transport := newVotingChain()
	s, _ := newSelectors(t, transport)

	info, err := s.GovernanceTokenInfo(context.Background(), GovernanceTokenOptions{})
	require.NoError(t, err)
	assert.Nil(t, info.WalletBalance)
	assert.Nil(t, info.TreasuryBalance)
	assert.Equal(t, 0, transport.Calls(tokenAddr, "balance"))
	assert.Equal(t, 0, transport.Calls(votingAddr, "dao"))
}

func TestGovernanceTokenInfo_SharesCacheAcrossCalls(t *testing.T) {
	transport := newVotingChain()
	s, c := newSelectors(t, transport)
	opts := GovernanceTokenOptions{WalletAddress: "juno1wallet"}

	_, err := s.GovernanceTokenInfo(context.Background(), opts)
	require.NoError(t, err)
	_, err = s.GovernanceTokenInfo(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.Calls(tokenAddr, "token_info"))
	assert.Equal(t, 1, transport.Calls(tokenAddr, "balance"))

	cw20base.RefreshWalletBalances(c, "juno1wallet")
	_, err = s.GovernanceTokenInfo(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.Calls(tokenAddr, "token_info"))
	assert.Equal(t, 2, transport.Calls(tokenAddr, "balance"))
}

func TestGovernanceTokenInfo_TokenFailure(t *testing.T) {
	transport := newVotingChain()
	transport.Handle(tokenAddr, "token_info", func(json.RawMessage) (interface{}, error) {
		return nil, errors.New("timeout")
	})
	s, _ := newSelectors(t, transport)

	_, err := s.GovernanceTokenInfo(context.Background(), GovernanceTokenOptions{})
	assert.ErrorIs(t, err, querier.ErrRemoteQuery)
}

func TestPowerQueries(t *testing.T) {
	transport := newVotingChain()
	transport.Handle(votingAddr, "voting_power_at_height", func(msg json.RawMessage) (interface{}, error) {
		var args votingPowerArgs
		if err := json.Unmarshal(msg, &args); err != nil {
			return nil, err
		}
		h := uint64(1000)
		if args.Height != nil {
			h = *args.Height
		}
		return VotingPowerAtHeightResponse{Power: "7", Height: h}, nil
	})
	transport.Reply(votingAddr, "total_power_at_height", TotalPowerAtHeightResponse{Power: "70", Height: 1000})
	s, _ := newSelectors(t, transport)
	ctx := context.Background()

	height := uint64(900)
	vp, err := s.VotingPowerAtHeight(ctx, "juno1wallet", &height)
	require.NoError(t, err)
	assert.Equal(t, contracts.Uint128("7"), vp.Power)
	assert.Equal(t, uint64(900), vp.Height)

	tp, err := s.TotalPowerAtHeight(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.Uint128("70"), tp.Power)

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", info.Info.Version)
}
