package solana

import "strings"

type Environment string

const (
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
)

var clusters = map[string]Environment{
	"localnet":     EnvironmentLocal,
	"devnet":       EnvironmentDev,
	"testnet":      EnvironmentTest,
	"mainnet-beta": EnvironmentProd,
	"mainnet":      EnvironmentProd,
}

// ResolveEndpoint returns the RPC endpoint for a cluster moniker. Anything
// that is not a known moniker is returned unchanged.
func ResolveEndpoint(endpoint string) string {
	if env, ok := clusters[strings.ToLower(strings.TrimSpace(endpoint))]; ok {
		return string(env)
	}
	return endpoint
}
