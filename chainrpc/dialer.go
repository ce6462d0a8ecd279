package chainrpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// NewDNSCachingTransport builds an *http.Transport whose dial step resolves
// hostnames through a dnscache.Resolver instead of hitting the system
// resolver on every connection. The chain RPC endpoint is typically a
// single, rarely-changing host, so caching avoids paying a DNS lookup per
// outbound call.
func NewDNSCachingTransport() *http.Transport {
	resolver := &dnscache.Resolver{}

	refresh := time.NewTicker(5 * time.Minute)
	go func() {
		for range refresh.C {
			resolver.Refresh(true)
		}
	}()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		var dialer net.Dialer
		var lastErr error
		for _, ip := range ips {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if dialErr == nil {
				return conn, nil
			}
			lastErr = dialErr
		}
		return nil, fmt.Errorf("chainrpc: dial %s: %w", addr, lastErr)
	}

	return transport
}
