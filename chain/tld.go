package chain

import "strings"

// defaultTLDs is the initial chain TLD whitelist. Classification uses this
// fixed set rather than dynamic detection because a label collision (the
// chain happens to hold an account named after a real TLD) must never
// hijack traditional DNS.
var defaultTLDs = []string{"near", "testnet", "aurora", "tg", "sweat", "kaiching", "sharddog"}

// Whitelist is a case-insensitive set of chain-governed TLDs.
type Whitelist struct {
	set map[string]struct{}
}

// NewWhitelist builds a Whitelist from tlds. Passing no arguments uses
// defaultTLDs.
func NewWhitelist(tlds ...string) *Whitelist {
	if len(tlds) == 0 {
		tlds = defaultTLDs
	}
	w := &Whitelist{set: make(map[string]struct{}, len(tlds))}
	for _, tld := range tlds {
		w.set[strings.ToLower(tld)] = struct{}{}
	}
	return w
}

// IsChainTLD reports whether label, case-insensitively, is chain-governed.
func (w *Whitelist) IsChainTLD(label string) bool {
	_, ok := w.set[strings.ToLower(label)]
	return ok
}
