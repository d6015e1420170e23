package cwdvoting

import (
	"daoquery/internal/contracts"
	"daoquery/internal/contracts/cw20base"
)

// VotingPowerAtHeightResponse is the reply to voting_power_at_height
type VotingPowerAtHeightResponse struct {
	Power  contracts.Uint128 `json:"power"`
	Height uint64            `json:"height"`
}

// Validate checks the power amount
func (r *VotingPowerAtHeightResponse) Validate() error {
	return r.Power.Validate()
}

// TotalPowerAtHeightResponse is the reply to total_power_at_height
type TotalPowerAtHeightResponse struct {
	Power  contracts.Uint128 `json:"power"`
	Height uint64            `json:"height"`
}

// Validate checks the power amount
func (r *TotalPowerAtHeightResponse) Validate() error {
	return r.Power.Validate()
}

// ContractVersion identifies the deployed contract
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

// InfoResponse is the reply to info
type InfoResponse struct {
	Info ContractVersion `json:"info"`
}

// GovernanceTokenOptions selects the optional balances to load
type GovernanceTokenOptions struct {
	// WalletAddress loads the wallet's token balance when set
	WalletAddress string
	// FetchTreasuryBalance loads the DAO core contract's token balance
	FetchTreasuryBalance bool
}

// GovernanceTokenInfo describes the cw20 token a DAO votes with
type GovernanceTokenInfo struct {
	StakingContractAddress string                         `json:"stakingContractAddress"`
	GovernanceTokenAddress string                         `json:"governanceTokenAddress"`
	TokenInfo              cw20base.TokenInfoResponse     `json:"tokenInfo"`
	MarketingInfo          cw20base.MarketingInfoResponse `json:"marketingInfo"`
	WalletBalance          *contracts.Uint128             `json:"walletBalance,omitempty"`
	TreasuryBalance        *contracts.Uint128             `json:"treasuryBalance,omitempty"`
}

type heightArgs struct {
	Height *uint64 `json:"height,omitempty"`
}

type votingPowerArgs struct {
	Address string  `json:"address"`
	Height  *uint64 `json:"height,omitempty"`
}
