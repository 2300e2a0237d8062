package solana

import "strings"

type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

var monikers = map[string]Environment{
	"devnet":       EnvironmentDev,
	"testnet":      EnvironmentTest,
	"mainnet-beta": EnvironmentProd,
	"mainnet":      EnvironmentProd,
	"localnet":     EnvironmentLocal,
	"localhost":    EnvironmentLocal,
}

// ResolveEndpoint maps a cluster moniker such as "devnet" onto its public RPC
// URL. Any other value is returned unchanged.
func ResolveEndpoint(endpoint string) string {
	if env, ok := monikers[strings.ToLower(strings.TrimSpace(endpoint))]; ok {
		return string(env)
	}
	return endpoint
}
