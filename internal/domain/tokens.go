package domain

import (
	"fmt"
	"strings"
)

const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"

	DefaultNetwork      = NetworkBaseSepolia
	DefaultPaymentToken = "USDC"
	DefaultPlatform     = "Instagram"
)

type Network struct {
	Name    string `json:"name"`
	ChainID int64  `json:"chain_id"`
	RPCURL  string `json:"rpc_url"`
}

type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

var networks = map[string]Network{
	NetworkBase:        {Name: NetworkBase, ChainID: 8453, RPCURL: "https://mainnet.base.org"},
	NetworkBaseSepolia: {Name: NetworkBaseSepolia, ChainID: 84532, RPCURL: "https://sepolia.base.org"},
}

type tokenSpec struct {
	decimals  int
	addresses map[string]string
}

// Networks a token is missing from are simply absent from its address map.
var tokens = map[string]tokenSpec{
	"USDC": {
		decimals: 6,
		addresses: map[string]string{
			NetworkBase:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			NetworkBaseSepolia: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		},
	},
	"EURC": {
		decimals: 6,
		addresses: map[string]string{
			NetworkBase: "0x60a3E35Cc302bFA44Cb288Bc5a4F316Fdb1adb42",
		},
	},
	"cbBTC": {
		decimals: 8,
		addresses: map[string]string{
			NetworkBase: "0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf",
		},
	},
}

func LookupNetwork(name string) (Network, bool) {
	n, ok := networks[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

func KnownNetworks() []Network {
	return []Network{networks[NetworkBase], networks[NetworkBaseSepolia]}
}

// ResolveToken finds the on-chain address and precision of symbol on network.
func ResolveToken(symbol, network string) (Token, error) {
	symbol = strings.TrimSpace(symbol)
	network = strings.ToLower(strings.TrimSpace(network))
	for name, spec := range tokens {
		if !strings.EqualFold(name, symbol) {
			continue
		}
		addr := spec.addresses[network]
		if addr == "" {
			break
		}
		return Token{Symbol: name, Address: addr, Decimals: spec.decimals}, nil
	}
	return Token{}, fmt.Errorf("token %s not available on network %s", symbol, network)
}
