package taskdesk

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix prefixes every environment variable read by [LoadEnv].
const EnvPrefix = "TASKDESK_"

// LoadEnv overlays TASKDESK_* environment variables on base. Variables that
// are unset leave the corresponding base value untouched.
//
//	TASKDESK_BASE_URL, TASKDESK_HTTP_TIMEOUT, TASKDESK_REFRESH_WAIT_TIMEOUT, ...
func LoadEnv(ctx context.Context, base Config) (Config, error) {
	return loadEnv(ctx, base, envconfig.OsLookuper())
}

func loadEnv(ctx context.Context, base Config, lookuper envconfig.Lookuper) (Config, error) {
	cfg := cloneConfig(base)
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return Config{}, err
	}
	return cloneConfig(cfg), nil
}
