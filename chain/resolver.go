// Package chain implements the hierarchical chain-resolution engine (C3):
// TLD classification, deterministic probe-list generation, and sequential
// probe execution against a two-tier cache and a chain RPC collaborator.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainresolve/dnsbridge/cache"
	"github.com/chainresolve/dnsbridge/records"
)

// negativeSignals are the substrings a chain RPC error message carries when
// it marks an absent-code / absent-account / absent-method signal rather
// than a transient failure.
var negativeSignals = []string{"MethodNotFound", "AccountDoesNotExist", "does not exist", "CodeDoesNotExist"}

func isNegativeSignal(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, signal := range negativeSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}

// RPCClient is the chain view-contract collaborator Resolver consumes. It
// is satisfied by *chainrpc.Client in production and by fakes in tests.
type RPCClient interface {
	AccountExists(ctx context.Context, accountID string) (bool, error)
	DNSQuery(ctx context.Context, contractID, name, recordType string) ([]records.StoredRecord, error)
}

// Resolver is the C3 chain resolution engine: given a domain and record
// type, it classifies the TLD, generates the probe list, and executes
// probes sequentially against the cache and the RPC collaborator until one
// yields a non-empty record set.
type Resolver struct {
	rpc       RPCClient
	cache     *cache.TwoTier
	whitelist *Whitelist
	logger    *zap.Logger

	probeCount *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithWhitelist overrides the default chain TLD whitelist.
func WithWhitelist(w *Whitelist) Option {
	return func(r *Resolver) { r.whitelist = w }
}

// WithLogger attaches a structured logger; absent an explicit one, the
// Resolver logs nothing.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithRegisterer registers the Resolver's metrics with reg instead of the
// default Prometheus registry. A nil Registerer disables registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Resolver) { r.registerMetrics(reg) }
}

// New builds a Resolver over rpc and twoTier. The default whitelist is
// defaultTLDs and the default logger is a no-op.
func New(rpc RPCClient, twoTier *cache.TwoTier, opts ...Option) *Resolver {
	r := &Resolver{
		rpc:       rpc,
		cache:     twoTier,
		whitelist: NewWhitelist(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.outcomes == nil {
		r.registerMetrics(prometheus.DefaultRegisterer)
	}
	return r
}

func (r *Resolver) registerMetrics(reg prometheus.Registerer) {
	r.probeCount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnsbridge_chain_probes_per_resolution",
		Help:    "Number of probes attempted per chain resolution.",
		Buckets: prometheus.LinearBuckets(1, 2, 8),
	}, []string{"outcome"})
	r.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsbridge_chain_resolutions_total",
		Help: "Chain resolutions, partitioned by outcome (found, not_found, rpc_error, invalid_domain, not_chain_tld).",
	}, []string{"outcome"})
	if reg != nil {
		reg.MustRegister(r.probeCount, r.outcomes)
	}
}

// IsChainTLD reports whether domain's TLD is chain-governed.
func (r *Resolver) IsChainTLD(domain string) bool {
	_, tld, err := SplitDomain(domain)
	if err != nil {
		return false
	}
	return r.whitelist.IsChainTLD(tld)
}

// Resolve executes the full C3 pipeline for domain/recordType: TLD
// classification, probe generation, and sequential probe execution. It
// returns the first non-empty record set found, ErrNotFound if every probe
// came back negative, ErrInvalidDomain/ErrNotChainTLD for structural
// failures (returned without probing), or a wrapped ErrRPCError when every
// probe failed with a non-negative RPC error.
func (r *Resolver) Resolve(ctx context.Context, domain, recordType string) ([]records.StoredRecord, error) {
	parts, tld, err := SplitDomain(domain)
	if err != nil {
		r.outcomes.WithLabelValues("invalid_domain").Inc()
		return nil, err
	}
	if !r.whitelist.IsChainTLD(tld) {
		r.outcomes.WithLabelValues("not_chain_tld").Inc()
		return nil, ErrNotChainTLD
	}

	recordType = strings.ToUpper(recordType)
	probes := GenerateProbes(parts, tld)

	var nonErrorCount int
	var lastErr error

	for _, probe := range probes {
		key := cache.RecordKey{ContractID: probe.ContractID, Name: probe.Name, Type: recordType}

		if cached, ok := r.cache.GetRecords(key); ok {
			if len(cached) > 0 {
				r.observe(len(probes), "found")
				return cached, nil
			}
			nonErrorCount++
			continue
		}

		exists, known := r.cache.GetExistence(probe.ContractID)
		if !known {
			var existsErr error
			exists, existsErr = r.rpc.AccountExists(ctx, probe.ContractID)
			switch {
			case existsErr != nil && isNegativeSignal(existsErr):
				exists = false
				r.cache.PutExistence(probe.ContractID, false)
			case existsErr != nil:
				lastErr = existsErr
				r.logger.Warn("chain account existence check failed",
					zap.String("contract_id", probe.ContractID), zap.Error(existsErr))
				continue
			default:
				r.cache.PutExistence(probe.ContractID, exists)
			}
		}
		if !exists {
			nonErrorCount++
			continue
		}

		recs, queryErr := r.rpc.DNSQuery(ctx, probe.ContractID, probe.Name, recordType)
		if queryErr != nil {
			if isNegativeSignal(queryErr) {
				r.cache.PutRecords(key, nil)
				r.cache.PutExistence(probe.ContractID, false)
				nonErrorCount++
				continue
			}
			lastErr = queryErr
			r.logger.Warn("chain dns_query rpc error",
				zap.String("contract_id", probe.ContractID), zap.String("name", probe.Name), zap.Error(queryErr))
			continue
		}

		r.cache.PutRecords(key, recs)
		if len(recs) > 0 {
			r.observe(len(probes), "found")
			return recs, nil
		}
		nonErrorCount++
	}

	if nonErrorCount > 0 || len(probes) == 0 {
		r.observe(len(probes), "not_found")
		return nil, ErrNotFound
	}
	if lastErr != nil {
		r.observe(len(probes), "rpc_error")
		return nil, fmt.Errorf("%w: %v", ErrRPCError, lastErr)
	}
	r.observe(len(probes), "not_found")
	return nil, ErrNotFound
}

func (r *Resolver) observe(probeCount int, outcome string) {
	r.probeCount.WithLabelValues(outcome).Observe(float64(probeCount))
	r.outcomes.WithLabelValues(outcome).Inc()
}
