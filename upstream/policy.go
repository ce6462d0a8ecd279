package upstream

import (
	"net"
	"time"
)

// TimeoutPolicy determines the round-trip timeout for a single DNS exchange.
//
// qtype is the queried record type such as "A", "AAAA", "SRV". serverAddr is
// the ip:port of the server being queried. A non-positive duration is
// understood as an infinite timeout.
type TimeoutPolicy func(qtype, name, serverAddr string) time.Duration

// DefaultTimeoutPolicy returns the TimeoutPolicy used when a Resolver is not
// given one explicitly: 100ms for servers in PrivateNets (useful against
// test harnesses and lab name servers), 1s otherwise.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return defaultTimeoutPolicy
}

func defaultTimeoutPolicy(qtype, name, serverAddr string) time.Duration {
	host, _, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return time.Second
	}
	ip := net.ParseIP(host)
	for _, n := range PrivateNets {
		if n.Contains(ip) {
			return 100 * time.Millisecond
		}
	}
	return time.Second
}

// PrivateNets is consulted by DefaultTimeoutPolicy to apply a low timeout to
// destinations that are not real internet-routed name servers.
var PrivateNets = []*net.IPNet{
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("127.0.0.0/8"),
	mustParseCIDR("169.254.0.0/16"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.0.0.0/24"),
	mustParseCIDR("192.0.2.0/24"),
	mustParseCIDR("192.168.0.0/16"),
	mustParseCIDR("198.18.0.0/15"),
	mustParseCIDR("198.51.100.0/24"),
	mustParseCIDR("203.0.113.0/24"),
	mustParseCIDR("::1/128"),
	mustParseCIDR("2001:db8::/32"),
	mustParseCIDR("fd00::/8"),
	mustParseCIDR("fe80::/10"),
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return n
}
