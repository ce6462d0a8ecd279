package upstream

import (
	"net"

	"github.com/miekg/dns"
)

// nsSet is a set of candidate name server addresses to try, in order, for
// one DNS exchange.
type nsSet interface {
	Err() error
	Addrs() []string
}

// hardCodedNSSet is an nsSet already resolved to ip:port pairs, used to seed
// recursion with rootHints and to honor WithZoneServer overrides.
type hardCodedNSSet []string

var _ nsSet = hardCodedNSSet(nil)

func (s hardCodedNSSet) Err() error      { return nil }
func (s hardCodedNSSet) Addrs() []string { return s }

// nsResponseSet adapts a delegation response (NS records in ANSWER or
// AUTHORITY, address glue in ADDITIONAL) into an nsSet.
type nsResponseSet queryResult

var _ nsSet = nsResponseSet{}

func (s nsResponseSet) Err() error { return s.Error }

func (s nsResponseSet) Addrs() []string {
	if s.Response == nil {
		return nil
	}

	var addrs []string
	for _, rr := range append(append([]dns.RR{}, s.Response.Answer...), s.Response.Ns...) {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}

		if ip := net.ParseIP(ns.Ns); ip != nil {
			addrs = append(addrs, ns.Ns)
			continue
		}

		addrs = append(addrs, s.glueFor(ns.Ns)...)
	}

	return dedup(addrs)
}

// glueFor returns the IP addresses for name found in the response's
// ADDITIONAL section, or name itself (as a placeholder to be resolved by the
// address iterator) if no glue is present.
func (s nsResponseSet) glueFor(name string) []string {
	var ips []string
	for _, rr := range s.Response.Extra {
		if rr.Header().Name != name {
			continue
		}
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A.String())
		case *dns.AAAA:
			ips = append(ips, rr.AAAA.String())
		}
	}
	if len(ips) == 0 {
		return []string{name}
	}
	return ips
}

func dedup(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
