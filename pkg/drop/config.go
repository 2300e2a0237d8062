package drop

import (
	"github.com/citychests/vault-drop/pkg/config"
	"github.com/citychests/vault-drop/pkg/config/env"
	"github.com/citychests/vault-drop/pkg/config/memory"
	"github.com/citychests/vault-drop/pkg/config/wrapper"
)

const (
	envConfigPrefix = "DROP_SERVICE_"

	MaxNonceAttemptsConfigEnvName = envConfigPrefix + "MAX_NONCE_ATTEMPTS"
	defaultMaxNonceAttempts       = 5

	RPCRequestsPerSecondConfigEnvName = envConfigPrefix + "RPC_REQUESTS_PER_SECOND"
	defaultRPCRequestsPerSecond       = 0
)

type conf struct {
	maxNonceAttempts     config.Uint64
	rpcRequestsPerSecond config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			maxNonceAttempts:     env.NewUint64Config(MaxNonceAttemptsConfigEnvName, defaultMaxNonceAttempts),
			rpcRequestsPerSecond: env.NewFloat64Config(RPCRequestsPerSecondConfigEnvName, defaultRPCRequestsPerSecond),
		}
	}
}

type testOverrides struct {
	maxNonceAttempts uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			maxNonceAttempts:     wrapper.NewUint64Config(memory.NewConfig(overrides.maxNonceAttempts), defaultMaxNonceAttempts),
			rpcRequestsPerSecond: wrapper.NewFloat64Config(memory.NewConfig(nil), defaultRPCRequestsPerSecond),
		}
	}
}
