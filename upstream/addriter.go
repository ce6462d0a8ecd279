package upstream

import (
	"context"
	"io"
	"net"

	"github.com/miekg/dns"
)

// addressIterator walks an nsSet's candidate names, yielding a dialable
// ip:port for each in turn. Names without a usable IP literal trigger a
// nested A/AAAA resolution (via queryIterator) before the next address is
// produced; most delegations carry usable glue and never need this
// fallback.
type addressIterator struct {
	resolver *Resolver
	names    []string
	trace    traceSink
	inner    *queryIterator
}

func newAddrIter(r *Resolver, names []string, trace traceSink) *addressIterator {
	return &addressIterator{resolver: r, names: names, trace: trace}
}

func (it *addressIterator) Next(ctx context.Context) (string, error) {
	if it.inner != nil {
		addr, err := it.inner.Next(ctx)
		if err == io.EOF {
			it.inner = nil
		} else {
			return addr, err
		}
	}

	if len(it.names) == 0 {
		return "", io.EOF
	}

	name := it.names[0]
	it.names = it.names[1:]

	if ip := net.ParseIP(name); ip != nil {
		return net.JoinHostPort(ip.String(), it.resolver.defaultPort), nil
	}
	if host, _, err := net.SplitHostPort(name); err == nil && net.ParseIP(host) != nil {
		return name, nil
	}

	it.inner = &queryIterator{resolver: it.resolver, trace: it.trace, target: name}
	return it.Next(ctx)
}

// queryIterator resolves a bare name (no address glue) to IP addresses by
// running A and, unless disabled, AAAA queries through the resolver's own
// recursion, then hands the results to a nested addressIterator.
type queryIterator struct {
	resolver *Resolver
	trace    traceSink
	target   string

	qtypes []uint16
	inner  *addressIterator
}

func (it *queryIterator) Next(ctx context.Context) (string, error) {
	if it.inner != nil {
		addr, err := it.inner.Next(ctx)
		if err == io.EOF {
			it.inner = nil
		} else {
			return addr, err
		}
	}

	if it.qtypes == nil {
		it.qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
		if it.resolver.ip4disabled {
			it.qtypes = []uint16{dns.TypeAAAA}
		}
		if it.resolver.ip6disabled {
			it.qtypes = []uint16{dns.TypeA}
		}
	}
	if len(it.qtypes) == 0 {
		return "", io.EOF
	}

	qtype := it.qtypes[0]
	it.qtypes = it.qtypes[1:]

	q := dns.Question{Name: dns.Fqdn(it.target), Qtype: qtype, Qclass: dns.ClassINET}
	result := it.resolver.queryIteratively(ctx, q, it.trace)

	var names []string
	if result.Response != nil {
		for _, rr := range result.Response.Answer {
			switch rr := rr.(type) {
			case *dns.A:
				names = append(names, rr.A.String())
			case *dns.AAAA:
				names = append(names, rr.AAAA.String())
			}
		}
	}

	it.inner = newAddrIter(it.resolver, names, it.trace)
	return it.Next(ctx)
}
