package upstream

// rootHints is the hardcoded set of IANA root name server addresses used to
// seed recursion. Resolving from a fixed list, rather than asking the
// host's configured resolver(s) via /etc/resolv.conf, means resolution
// never depends on the operating system's resolver being trustworthy or
// even present.
//
// This is the standard named.root / root.hints list published by IANA,
// IPv4 addresses only (IPv6 glue is omitted for brevity; the resolver never
// needs more than one working root server to bootstrap a query).
var rootHints = []string{
	"198.41.0.4",     // a.root-servers.net
	"199.9.14.201",   // b.root-servers.net
	"192.33.4.12",    // c.root-servers.net
	"199.7.91.13",    // d.root-servers.net
	"192.203.230.10", // e.root-servers.net
	"192.5.5.241",    // f.root-servers.net
	"192.112.36.4",   // g.root-servers.net
	"198.97.190.53",  // h.root-servers.net
	"192.36.148.17",  // i.root-servers.net
	"192.58.128.30",  // j.root-servers.net
	"193.0.14.129",   // k.root-servers.net
	"199.7.83.42",    // l.root-servers.net
	"202.12.27.33",   // m.root-servers.net
}

// rootServerAddrSet returns rootHints joined with defaultPort, computed once
// and cached on r so repeated resolutions don't re-format the list.
func (r *Resolver) rootServerAddrSet() nsSet {
	r.once.Do(func() {
		addrs := make([]string, len(rootHints))
		for i, ip := range rootHints {
			addrs[i] = ip + ":" + r.defaultPort
		}
		r.rootAddrs = addrs
	})
	return hardCodedNSSet(r.rootAddrs)
}
