// Command dnsbridged is the process entrypoint: it wires config -> chainrpc
// -> cache -> chain -> upstream -> authority -> a miekg/dns listener, and
// exposes Prometheus metrics on a separate HTTP endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainresolve/dnsbridge/authority"
	"github.com/chainresolve/dnsbridge/cache"
	"github.com/chainresolve/dnsbridge/chain"
	"github.com/chainresolve/dnsbridge/chainrpc"
	"github.com/chainresolve/dnsbridge/config"
	"github.com/chainresolve/dnsbridge/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	listenAddr string
	rpcEndpoint string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to an optional YAML config file")
	flag.StringVar(&f.listenAddr, "listen", "", "Override the DNS listen address")
	flag.StringVar(&f.rpcEndpoint, "chain-rpc", "", "Override the chain RPC endpoint")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.listenAddr != "" {
		cfg.Server.ListenAddr = f.listenAddr
	}
	if f.rpcEndpoint != "" {
		cfg.Chain.RPCEndpoint = f.rpcEndpoint
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()

	rpcClient := chainrpc.New(cfg.Chain.RPCEndpoint,
		chainrpc.WithLogger(logger.Named("chainrpc")),
		chainrpc.WithRegisterer(reg),
	)

	twoTier := cache.New(
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithRegisterer(reg),
	)

	chainResolver := chain.New(rpcClient, twoTier,
		chain.WithWhitelist(chain.NewWhitelist(cfg.Chain.TLDs...)),
		chain.WithLogger(logger.Named("chain")),
		chain.WithRegisterer(reg),
	)

	upstreamResolver := upstream.New(cfg.Upstream.DefaultPort,
		upstream.WithLogger(logger.Named("upstream")),
		upstream.WithRespCacheSize(cfg.Upstream.RespCacheSize),
		upstream.WithRegisterer(reg),
	)

	adapter := authority.NewAdapter(chainResolver, upstreamResolver,
		authority.WithLogger(logger.Named("authority")),
		authority.WithRegisterer(reg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.ListenAddr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	dnsSrv := &dns.Server{Addr: cfg.Server.ListenAddr, Net: cfg.Server.Network, Handler: adapter}
	go func() {
		logger.Info("dns listening", zap.String("addr", cfg.Server.ListenAddr), zap.String("net", cfg.Server.Network))
		if err := dnsSrv.ListenAndServe(); err != nil {
			logger.Error("dns server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := dnsSrv.ShutdownContext(shutdownCtx); err != nil {
		logger.Warn("dns server shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse logging.level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
