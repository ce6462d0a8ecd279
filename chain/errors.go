package chain

import "errors"

// ErrInvalidDomain is returned when a queried domain has fewer than two
// labels after trimming, so no contract account could be derived from it.
var ErrInvalidDomain = errors.New("invalid domain: fewer than two labels")

// ErrNotChainTLD is returned when the queried domain's TLD is not on the
// chain TLD whitelist. Callers should delegate to the upstream collaborator
// instead of treating this as a resolution failure.
var ErrNotChainTLD = errors.New("tld is not chain-governed")

// ErrNotFound is returned when every probe in the generated list completed
// (cache hit, existence-negative, or RPC negative) without producing a
// non-empty record set.
var ErrNotFound = errors.New("no matching record found on any probed contract")

// ErrRPCError wraps the most recent non-negative RPC error, surfaced only
// when every probe failed that way — see Resolver.Resolve.
var ErrRPCError = errors.New("chain rpc error")
