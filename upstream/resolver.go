// Package upstream implements the upstream resolver collaborator: a
// recursive DNS resolver (root -> TLD -> authoritative, following NS
// delegations) for names outside the chain TLD whitelist.
//
// Resolution is iterative delegation following, with an address iterator
// that lazily resolves missing glue and per-destination timeouts. It starts
// from a hardcoded root hint list rather than the host's /etc/resolv.conf,
// and logs through the same structured zap logger the rest of this
// repository uses.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainresolve/dnsbridge/upstream/respcache"
)

// traceSink receives one queryResult per DNS exchange attempted during a
// resolution, for logging/diagnostics.
type traceSink func(queryResult)

// Resolver resolves DNS queries recursively, starting from a hardcoded set
// of IANA root name servers. It is safe for concurrent use: a single
// Resolver is shared across the server's in-flight queries, and its methods
// may be invoked concurrently by many callers.
type Resolver struct {
	TimeoutPolicy TimeoutPolicy

	logger *zap.Logger

	defaultPort string
	ip4disabled bool
	ip6disabled bool

	mu          sync.RWMutex
	zoneServers map[string][]string

	respCache *respcache.Cache

	once      sync.Once
	rootAddrs []string

	resolutions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithLogger attaches a structured logger; absent one, the resolver logs
// nothing.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithTimeoutPolicy overrides DefaultTimeoutPolicy.
func WithTimeoutPolicy(p TimeoutPolicy) Option {
	return func(r *Resolver) { r.TimeoutPolicy = p }
}

// WithRespCacheSize overrides the default 10,000-entry response cache
// capacity.
func WithRespCacheSize(n int) Option {
	return func(r *Resolver) { r.respCache = respcache.New(n) }
}

// WithRegisterer registers the Resolver's metrics with reg instead of the
// default Prometheus registry. A nil Registerer disables registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Resolver) { r.registerMetrics(reg) }
}

// New builds a Resolver. defaultPort is the port appended to bare server
// addresses (root hints, NS glue); production callers pass "53", tests
// typically pass a lab server's port.
func New(defaultPort string, opts ...Option) *Resolver {
	r := &Resolver{
		TimeoutPolicy: DefaultTimeoutPolicy(),
		logger:        zap.NewNop(),
		defaultPort:   defaultPort,
		zoneServers:   map[string][]string{},
		respCache:     respcache.New(10_000),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolutions == nil {
		r.registerMetrics(prometheus.DefaultRegisterer)
	}
	return r
}

func (r *Resolver) registerMetrics(reg prometheus.Registerer) {
	r.resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsbridge_upstream_resolutions_total",
		Help: "Upstream recursive resolutions, partitioned by outcome (found, nxdomain, error).",
	}, []string{"outcome"})
	r.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dnsbridge_upstream_resolution_duration_seconds",
		Help: "Upstream recursive resolution latency.",
	}, []string{"outcome"})
	if reg != nil {
		reg.MustRegister(r.resolutions, r.latency)
	}
}

// WithZoneServer causes the resolver to use serverAddrs (IPv4/IPv6
// addresses, port optional and defaulting to defaultPort) for zone instead
// of discovering them recursively. Passing no addresses removes any
// override for zone.
func (r *Resolver) WithZoneServer(zone string, serverAddrs []string) error {
	if len(serverAddrs) == 0 {
		r.mu.Lock()
		delete(r.zoneServers, zone)
		r.mu.Unlock()
		return nil
	}

	normalized, err := r.normalizeAddrs(serverAddrs)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.zoneServers[zone] = normalized
	r.mu.Unlock()
	return nil
}

func (r *Resolver) normalizeAddrs(addrs []string) ([]string, error) {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			host, port = addr, r.defaultPort
		}
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("upstream: not an ip address: %s", addr)
		}
		addr = net.JoinHostPort(host, port)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out, nil
}

// Resolve runs a recursive resolution for name/qtype and returns the wire
// records from the answer, preserving the TTL the upstream name server
// advertised rather than imposing a fixed one (see DESIGN.md for the
// reasoning). It returns ErrNXDomain when the final response is NXDOMAIN or
// has no matching records; any other non-success rcode is returned as an
// error carrying the rcode's name, not as ErrNXDomain.
//
// Types with a dedicated dns.RR implementation (A, AAAA, MX, TXT, NS, SOA,
// and in fact every type miekg/dns knows about) are handled uniformly:
// there is no separate "generic lookup" code path because dns.RR is already
// a generic wire-record representation.
func (r *Resolver) Resolve(ctx context.Context, qtype uint16, name string) ([]dns.RR, error) {
	start := time.Now()
	q := dns.Question{Name: dns.CanonicalName(name), Qtype: qtype, Qclass: dns.ClassINET}

	result := r.queryIteratively(ctx, q, r.trace)
	if result.Error != nil {
		r.observe("error", start)
		return nil, fmt.Errorf("upstream: %s %s: %w", dns.TypeToString[qtype], name, result.Error)
	}

	resp := result.Response
	switch resp.Rcode {
	case dns.RcodeSuccess:
		// fall through to filtering below
	case dns.RcodeNameError:
		r.observe("nxdomain", start)
		return nil, ErrNXDomain
	default:
		r.observe("error", start)
		return nil, fmt.Errorf("upstream: %s %s: %w", dns.TypeToString[qtype], name, errors.New(dns.RcodeToString[resp.Rcode]))
	}

	owner := dns.CanonicalName(name)
	var matched []dns.RR
	for _, rr := range normalize(resp) {
		if rr.Header().Rrtype == qtype && dns.CanonicalName(rr.Header().Name) == owner {
			matched = append(matched, rr)
		}
	}
	// A CNAME-only chain legitimately answers e.g. an A query with no A
	// record of its own; fall back to every terminal record normalize()
	// kept if none match the exact owner (common for deep alias chains).
	if len(matched) == 0 {
		for _, rr := range normalize(resp) {
			if rr.Header().Rrtype == qtype {
				matched = append(matched, rr)
			}
		}
	}

	if len(matched) == 0 {
		r.observe("nxdomain", start)
		return nil, ErrNXDomain
	}

	r.observe("found", start)
	return matched, nil
}

func (r *Resolver) observe(outcome string, start time.Time) {
	r.resolutions.WithLabelValues(outcome).Inc()
	r.latency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (r *Resolver) trace(result queryResult) {
	if result.Error != nil {
		r.logger.Debug("upstream exchange failed",
			zap.String("question", result.Question.String()),
			zap.String("server", result.ServerAddr),
			zap.Error(result.Error))
		return
	}
	r.logger.Debug("upstream exchange",
		zap.String("question", result.Question.String()),
		zap.String("server", result.ServerAddr),
		zap.Duration("rtt", result.RTT),
		zap.String("rcode", dns.RcodeToString[result.Response.Rcode]))
}

// queryResult is the outcome of a single DNS exchange, possibly after the
// addressIterator tried several candidate servers.
type queryResult struct {
	Question   dns.Question
	ServerAddr string
	RTT        time.Duration
	Response   *dns.Msg
	Error      error
}

func (result queryResult) isDelegation() bool {
	if result.Error != nil || result.Response == nil {
		return false
	}
	resp := result.Response
	if resp.Authoritative {
		return false
	}
	if len(resp.Answer)+len(resp.Ns) == 0 {
		return false
	}
	for _, rr := range append(append([]dns.RR{}, resp.Answer...), resp.Ns...) {
		if _, ok := rr.(*dns.NS); !ok {
			return false
		}
	}
	return true
}

// queryIteratively resolves q by starting at the root hints (or a
// zone-server override) and following delegations until an authoritative
// or error response is reached.
func (r *Resolver) queryIteratively(ctx context.Context, q dns.Question, trace traceSink) queryResult {
	nsSet := r.startingNSSet(q.Name)

	for {
		result := r.doQuery(ctx, q, nsSet, trace)
		if result.isDelegation() {
			nsSet = nsResponseSet(result)
			continue
		}
		return result
	}
}

// startingNSSet picks the nsSet to begin resolving name from: the closest
// WithZoneServer override covering name, if any, else the root hints.
func (r *Resolver) startingNSSet(name string) nsSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	for zone := range r.zoneServers {
		if !dns.IsSubDomain(zone, name) {
			continue
		}
		if len(zone) > len(best) {
			best = zone
		}
	}
	if best != "" {
		return hardCodedNSSet(r.zoneServers[best])
	}
	return r.rootServerAddrSet()
}

func (r *Resolver) doQuery(ctx context.Context, q dns.Question, candidates nsSet, trace traceSink) queryResult {
	result := queryResult{Question: q}

	if err := candidates.Err(); err != nil {
		result.Error = fmt.Errorf("%s %s: name servers unavailable: %w", dns.TypeToString[q.Qtype], q.Name, err)
		return result
	}

	it := newAddrIter(r, candidates.Addrs(), trace)

	for {
		addr, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		result.ServerAddr = addr
		if err != nil {
			result.Error = err
			if trace != nil {
				trace(result)
			}
			continue
		}

		if r.ip4disabled || r.ip6disabled {
			host, _, _ := net.SplitHostPort(addr)
			ip := net.ParseIP(host)
			if ip.To4() != nil && r.ip4disabled {
				continue
			}
			if ip.To4() == nil && r.ip6disabled {
				continue
			}
		}

		resp, rtt, err := r.exchange(ctx, q, addr)
		result.RTT = rtt
		result.Response = resp
		result.Error = err
		if trace != nil {
			trace(result)
		}

		if err != nil {
			continue
		}
		if resp.Rcode == dns.RcodeServerFailure {
			continue
		}
		return result
	}

	result.Error = errors.New("no name servers available")
	return result
}

// exchange performs one DNS round trip to addr, consulting and populating
// the response cache first.
func (r *Resolver) exchange(ctx context.Context, q dns.Question, addr string) (*dns.Msg, time.Duration, error) {
	if cached, _, _ := r.respCache.Lookup(q, addr); cached != nil {
		return cached, 0, nil
	}

	m := new(dns.Msg)
	m.Question = []dns.Question{q}
	m.RecursionDesired = false

	c := &dns.Client{Timeout: r.timeoutFor(q, addr)}
	resp, rtt, err := c.ExchangeContext(ctx, m, addr)
	if err != nil {
		return nil, rtt, err
	}

	r.respCache.Update(q, addr, resp, r.cacheTTL(resp))
	return resp, rtt, nil
}

func (r *Resolver) timeoutFor(q dns.Question, addr string) time.Duration {
	policy := r.TimeoutPolicy
	if policy == nil {
		policy = DefaultTimeoutPolicy()
	}
	return policy(dns.TypeToString[q.Qtype], q.Name, addr)
}

// cacheTTL is the smallest TTL among the records in resp, used to bound how
// long this particular (question, server) exchange is memoized. A response
// with no records (NXDOMAIN, empty delegation) is cached for a fixed 30s to
// avoid hammering a server that just told us "no" for a transient lab or
// flaky-network reason.
func (r *Resolver) cacheTTL(resp *dns.Msg) time.Duration {
	const negativeTTL = 30 * time.Second
	var smallest time.Duration
	set := false
	for _, rr := range append(append([]dns.RR{}, resp.Answer...), resp.Ns...) {
		ttl := time.Duration(rr.Header().Ttl) * time.Second
		if !set || ttl < smallest {
			smallest, set = ttl, true
		}
	}
	if !set {
		return negativeTTL
	}
	return smallest
}
