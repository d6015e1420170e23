package cache

// Token is an invalidation namespace. Entries fetched with a token as a
// dependency are dropped together when the token is invalidated.
type Token string

// WalletBalancesToken groups every query whose result depends on the
// balances held by address
func WalletBalancesToken(address string) Token {
	return Token("wallet-balances:" + address)
}

// ContractToken groups every query against a single contract
func ContractToken(chainID, contractAddress string) Token {
	return Token("contract:" + chainID + "/" + contractAddress)
}
