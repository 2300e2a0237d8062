package drop

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read, when present, before the process environment.
const DefaultEnvFile = ".env"

// ErrMissingEnvironment is the cause of every MissingEnvironmentError.
var ErrMissingEnvironment = errors.New("Missing env vars")

// MissingEnvironmentError names the required variables that were not set.
type MissingEnvironmentError struct {
	Names []string
}

func (e *MissingEnvironmentError) Error() string {
	return ErrMissingEnvironment.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e *MissingEnvironmentError) Cause() error {
	return ErrMissingEnvironment
}

func (e *MissingEnvironmentError) Unwrap() error {
	return ErrMissingEnvironment
}

// Environment is the drop's base configuration.
type Environment struct {
	RPCURL    string `mapstructure:"rpc_url"`
	Wallet    string `mapstructure:"wallet"`
	ProgramID string `mapstructure:"program_id"`
	Vault     string `mapstructure:"vault"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaultEnvironment = Environment{
	LogLevel:  "info",
	LogFormat: "text",
}

var bindings = []struct {
	key      string
	env      string
	required bool
}{
	{"rpc_url", "RPC_URL", true},
	{"wallet", "WALLET", true},
	{"program_id", "PROGRAM_ID", true},
	{"vault", "VAULT", true},
	{"log_level", "LOG_LEVEL", false},
	{"log_format", "LOG_FORMAT", false},
}

// LoadEnvironment resolves the environment from envFile, if it exists, and
// the process environment, which takes precedence. A variable that is set but
// empty still shadows the file. It performs no network access; a
// *MissingEnvironmentError lists every absent required variable.
func LoadEnvironment(envFile string) (*Environment, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for _, b := range bindings {
		_ = v.BindEnv(b.key, b.env)
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to check %s", envFile)
		}
	}

	env := defaultEnvironment
	if err := v.Unmarshal(&env); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal environment")
	}
	if strings.TrimSpace(env.LogLevel) == "" {
		env.LogLevel = defaultEnvironment.LogLevel
	}
	if strings.TrimSpace(env.LogFormat) == "" {
		env.LogFormat = defaultEnvironment.LogFormat
	}

	var missing []string
	for _, b := range bindings {
		if b.required && strings.TrimSpace(v.GetString(b.key)) == "" {
			missing = append(missing, b.env)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingEnvironmentError{Names: missing}
	}

	return &env, nil
}
