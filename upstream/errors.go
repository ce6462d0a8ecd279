package upstream

import "errors"

// ErrNXDomain is returned by Resolver.Resolve when the final response in a
// recursive resolution chain is an NXDOMAIN, or when it holds no records of
// the queried type. It is the signal the authority adapter maps
// to a DNS NXDOMAIN response.
var ErrNXDomain = errors.New("nxdomain response")
