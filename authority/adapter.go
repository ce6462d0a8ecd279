// Package authority implements the C4 authority adapter: a single-zone,
// root-rooted github.com/miekg/dns.Handler that dispatches each incoming
// query either to the chain resolver (C3) or to the upstream collaborator,
// converting either result into the wire response shape the framework
// expects.
//
// This is the Go ecosystem's equivalent of the authority-trait contract the
// original hickory-dns-based implementation used: zone_type = Primary,
// origin = ".", axfr_allowed = false. dns.Handler/ServeDNS is the
// idiomatic stand-in for that trait's lookup/search/get_nsec_records/update
// methods, grounded on how every miekg/dns-based server in the pack (e.g.
// jroosing-HydraDNS) wires its zone logic into dns.Server.
package authority

import (
	"context"
	"errors"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainresolve/dnsbridge/chain"
	"github.com/chainresolve/dnsbridge/records"
	"github.com/chainresolve/dnsbridge/upstream"
)

func isNotFound(err error) bool {
	return errors.Is(err, upstream.ErrNXDomain)
}

// ChainResolver is the C3 collaborator the adapter dispatches chain-governed
// queries to. Satisfied by *chain.Resolver.
type ChainResolver interface {
	IsChainTLD(domain string) bool
	Resolve(ctx context.Context, domain, recordType string) ([]records.StoredRecord, error)
}

// UpstreamResolver is the conventional-DNS collaborator the adapter
// delegates everything else to. Satisfied by *upstream.Resolver.
type UpstreamResolver interface {
	Resolve(ctx context.Context, qtype uint16, name string) ([]dns.RR, error)
}

// Adapter presents a dns.Handler authority rooted at "." to the surrounding
// DNS server. zone_type is implicitly Primary and axfr_allowed is
// implicitly false: AXFR/IXFR and dynamic UPDATE requests always answer
// NotImplemented.
type Adapter struct {
	chain    ChainResolver
	upstream UpstreamResolver
	logger   *zap.Logger

	outcomes *prometheus.CounterVec
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithLogger attaches a structured logger; absent one, the adapter logs
// nothing.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithRegisterer registers the Adapter's metrics with reg instead of the
// default Prometheus registry. A nil Registerer disables registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Adapter) { a.registerMetrics(reg) }
}

// NewAdapter builds an Adapter dispatching chain-governed queries to
// chainResolver and everything else to upstreamResolver.
func NewAdapter(chainResolver ChainResolver, upstreamResolver UpstreamResolver, opts ...Option) *Adapter {
	a := &Adapter{
		chain:    chainResolver,
		upstream: upstreamResolver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.outcomes == nil {
		a.registerMetrics(prometheus.DefaultRegisterer)
	}
	return a
}

func (a *Adapter) registerMetrics(reg prometheus.Registerer) {
	a.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsbridge_authority_responses_total",
		Help: "Authority adapter responses, partitioned by rcode and source (chain, upstream).",
	}, []string{"rcode", "source"})
	if reg != nil {
		reg.MustRegister(a.outcomes)
	}
}

var _ dns.Handler = (*Adapter)(nil)

// ServeDNS implements dns.Handler. It rejects zone transfers and dynamic
// updates outright, then dispatches a single-question query: chain-governed
// TLDs go to the chain resolver, everything else to the upstream
// collaborator.
func (a *Adapter) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.Compress = true

	if req.Opcode != dns.OpcodeQuery || len(req.Question) != 1 {
		a.reply(w, resp, dns.RcodeNotImplemented, "", "malformed")
		return
	}

	q := req.Question[0]
	if q.Qtype == dns.TypeAXFR || q.Qtype == dns.TypeIXFR {
		a.reply(w, resp, dns.RcodeNotImplemented, "", "axfr")
		return
	}

	ctx := context.Background()
	name := q.Name
	recordType := dns.TypeToString[q.Qtype]

	if a.chain.IsChainTLD(name) {
		a.serveChain(ctx, w, resp, name, recordType)
		return
	}
	a.serveUpstream(ctx, w, resp, q.Qtype, name)
}

func (a *Adapter) serveChain(ctx context.Context, w dns.ResponseWriter, resp *dns.Msg, name, recordType string) {
	stored, err := a.chain.Resolve(ctx, name, recordType)
	switch {
	case err == nil:
		origin := name
		for _, sr := range stored {
			rr, convErr := records.ToWire(sr, name, origin)
			if convErr != nil {
				a.logger.Warn("dropping record that failed conversion",
					zap.String("name", name), zap.String("type", recordType), zap.Error(convErr))
				continue
			}
			resp.Answer = append(resp.Answer, rr)
		}
		if len(resp.Answer) == 0 {
			a.reply(w, resp, dns.RcodeNameError, "chain", "empty_after_conversion")
			return
		}
		a.reply(w, resp, dns.RcodeSuccess, "chain", "found")

	case errors.Is(err, chain.ErrNotFound):
		a.reply(w, resp, dns.RcodeNameError, "chain", "not_found")

	case errors.Is(err, chain.ErrInvalidDomain), errors.Is(err, chain.ErrNotChainTLD):
		a.logger.Warn("chain resolution structural error", zap.String("name", name), zap.Error(err))
		a.reply(w, resp, dns.RcodeServerFailure, "chain", "structural_error")

	default:
		a.logger.Warn("chain resolution failed", zap.String("name", name), zap.Error(err))
		a.reply(w, resp, dns.RcodeServerFailure, "chain", "error")
	}
}

func (a *Adapter) serveUpstream(ctx context.Context, w dns.ResponseWriter, resp *dns.Msg, qtype uint16, name string) {
	rrs, err := a.upstream.Resolve(ctx, qtype, name)
	switch {
	case err == nil:
		resp.Answer = rrs
		a.reply(w, resp, dns.RcodeSuccess, "upstream", "found")

	case isNotFound(err):
		a.reply(w, resp, dns.RcodeNameError, "upstream", "not_found")

	default:
		a.logger.Warn("upstream resolution failed", zap.String("name", name), zap.Error(err))
		a.reply(w, resp, dns.RcodeServerFailure, "upstream", "error")
	}
}

func (a *Adapter) reply(w dns.ResponseWriter, resp *dns.Msg, rcode int, source, outcome string) {
	resp.Rcode = rcode
	if a.outcomes != nil {
		a.outcomes.WithLabelValues(dns.RcodeToString[rcode], source).Inc()
	}
	w.WriteMsg(resp)
}
