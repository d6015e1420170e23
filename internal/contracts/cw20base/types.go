package cw20base

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"daoquery/internal/contracts"
)

// BalanceResponse is the reply to balance
type BalanceResponse struct {
	Balance contracts.Uint128 `json:"balance"`
}

// Validate checks the balance amount
func (r *BalanceResponse) Validate() error {
	return r.Balance.Validate()
}

// TokenInfoResponse is the reply to token_info
type TokenInfoResponse struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Decimals    uint8             `json:"decimals"`
	TotalSupply contracts.Uint128 `json:"total_supply"`
}

// Validate checks the required fields
func (r *TokenInfoResponse) Validate() error {
	if r.Symbol == "" {
		return errors.New("token symbol missing")
	}
	return r.TotalSupply.Validate()
}

// MinterResponse is the reply to minter. The contract answers null when
// minting is disabled, which decodes as a nil *MinterResponse.
type MinterResponse struct {
	Minter string             `json:"minter"`
	Cap    *contracts.Uint128 `json:"cap"`
}

// AllowanceResponse is the reply to allowance
type AllowanceResponse struct {
	Allowance contracts.Uint128    `json:"allowance"`
	Expires   contracts.Expiration `json:"expires"`
}

// Validate checks the amount and expiration
func (r *AllowanceResponse) Validate() error {
	if err := r.Allowance.Validate(); err != nil {
		return err
	}
	return r.Expires.Validate()
}

// AllowanceInfo is one entry of AllAllowancesResponse
type AllowanceInfo struct {
	Spender   string               `json:"spender"`
	Allowance contracts.Uint128    `json:"allowance"`
	Expires   contracts.Expiration `json:"expires"`
}

// AllAllowancesResponse is the reply to all_allowances
type AllAllowancesResponse struct {
	Allowances []AllowanceInfo `json:"allowances"`
}

// AllAccountsResponse is the reply to all_accounts
type AllAccountsResponse struct {
	Accounts []string `json:"accounts"`
}

// Validate requires the accounts field
func (r *AllAccountsResponse) Validate() error {
	if r.Accounts == nil {
		return errors.New("accounts missing")
	}
	return nil
}

// MarketingInfoResponse is the reply to marketing_info
type MarketingInfoResponse struct {
	Project     *string   `json:"project"`
	Description *string   `json:"description"`
	Marketing   *string   `json:"marketing"`
	Logo        *LogoInfo `json:"logo"`
}

// LogoInfo is either a remote URL or the marker for an embedded logo
type LogoInfo struct {
	URL      string
	Embedded bool
}

// UnmarshalJSON accepts {"url": "..."} and "embedded"
func (l *LogoInfo) UnmarshalJSON(data []byte) error {
	var marker string
	if err := json.Unmarshal(data, &marker); err == nil {
		if marker != "embedded" {
			return fmt.Errorf("unknown logo variant %q", marker)
		}
		*l = LogoInfo{Embedded: true}
		return nil
	}

	var remote struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &remote); err != nil {
		return fmt.Errorf("invalid logo info: %w", err)
	}
	*l = LogoInfo{URL: remote.URL}
	return nil
}

// MarshalJSON writes the same shapes UnmarshalJSON accepts
func (l LogoInfo) MarshalJSON() ([]byte, error) {
	if l.Embedded {
		return []byte(`"embedded"`), nil
	}
	return json.Marshal(map[string]string{"url": l.URL})
}

// DownloadLogoResponse is the reply to download_logo; Data is base64 on the wire
type DownloadLogoResponse struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type balanceArgs struct {
	Address string `json:"address"`
}

type allowanceArgs struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type allAllowancesArgs struct {
	Owner      string `json:"owner"`
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type allAccountsArgs struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
