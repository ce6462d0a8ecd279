// Package config loads dnsbridged's configuration in priority order: flags
// (applied by the caller, see cmd/dnsbridged) over environment variables
// (DNSBRIDGE_ prefix) over an optional YAML file over hardcoded defaults.
// The core packages (cache, chain, chainrpc, upstream, authority) never read
// the environment or a config file themselves; this package is the only
// place construction-time values are sourced from outside the process's own
// arguments, mirroring HydraDNS's config/env split for an unrelated DNS
// project.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, typed configuration dnsbridged's entrypoint
// uses to build the core's constructor arguments.
type Config struct {
	Server   ServerConfig
	Chain    ChainConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig controls the DNS listener.
type ServerConfig struct {
	ListenAddr string
	Network    string
}

// ChainConfig controls the chain RPC collaborator and TLD whitelist.
type ChainConfig struct {
	RPCEndpoint string
	TLDs        []string
}

// UpstreamConfig controls the recursive upstream resolver.
type UpstreamConfig struct {
	DefaultPort string
	RespCacheSize int
}

// CacheConfig controls the two-tier chain cache.
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	ListenAddr string
}

// Load reads configuration from environment variables (DNSBRIDGE_ prefix)
// and, if configPath is non-empty, a YAML file, layered over hardcoded
// defaults. It performs no validation beyond viper's own type coercion;
// cmd/dnsbridged is responsible for surfacing constructor errors from the
// values it derives (e.g. an unparsable chain RPC URL).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DNSBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr: v.GetString("server.listen_addr"),
			Network:    v.GetString("server.network"),
		},
		Chain: ChainConfig{
			RPCEndpoint: v.GetString("chain.rpc_endpoint"),
			TLDs:        v.GetStringSlice("chain.tlds"),
		},
		Upstream: UpstreamConfig{
			DefaultPort:   v.GetString("upstream.default_port"),
			RespCacheSize: v.GetInt("upstream.resp_cache_size"),
		},
		Cache: CacheConfig{
			Capacity: v.GetInt("cache.capacity"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
		},
		Metrics: MetricsConfig{
			ListenAddr: v.GetString("metrics.listen_addr"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":53")
	v.SetDefault("server.network", "udp")

	v.SetDefault("chain.rpc_endpoint", "https://rpc.mainnet.near.org")
	v.SetDefault("chain.tlds", []string{"near", "testnet", "aurora", "tg", "sweat", "kaiching", "sharddog"})

	v.SetDefault("upstream.default_port", "53")
	v.SetDefault("upstream.resp_cache_size", 4096)

	v.SetDefault("cache.capacity", 10_000)
	v.SetDefault("cache.ttl", "300s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.listen_addr", "127.0.0.1:9153")
}
