package chain

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// Probe is one lookup attempt: a contract account and the sub-name to query
// inside it.
type Probe struct {
	ContractID string
	Name       string
}

// accountIDPattern approximates a chain account identifier: lowercase,
// 2-64 characters, dot-separated segments, each starting and ending with an
// alphanumeric and allowing hyphens/underscores in between. It is a
// simplification of the real on-chain validation rules, sufficient to catch
// a malformed identifier before it is sent to the chain as a probe.
var accountIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9_-]*[a-z0-9])?)*$`)

// IsValidAccountID reports whether id looks like a syntactically valid
// chain account identifier.
func IsValidAccountID(id string) bool {
	if len(id) < 2 || len(id) > 64 {
		return false
	}
	return accountIDPattern.MatchString(id)
}

// GenerateProbes derives the deterministic, duplicate-free ordered probe
// list for a queried domain split into parts (labels without the TLD) and
// its tld, per the contract-delegation hierarchy: an account foo.tld
// delegates DNS to dns.foo.tld, and deeper subdomains may be their own
// subaccount or a named/wildcard entry inside a shallower one.
//
// For each depth i, the exact probe at that depth precedes its wildcard
// probes, and wildcards are emitted specific-to-general (the narrowest
// suffix first, widening one label at a time down to the bare "*"). Probes
// whose contract_id fails IsValidAccountID are omitted rather than returned
// as an error: a malformed identifier just means that one probe is skipped.
func GenerateProbes(parts []string, tld string) []Probe {
	var probes []Probe
	seen := make(map[Probe]struct{})

	add := func(contractID, name string) {
		if !IsValidAccountID(contractID) {
			return
		}
		p := Probe{ContractID: contractID, Name: name}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		probes = append(probes, p)
	}

	for i := 0; i < len(parts); i++ {
		contractID := "dns." + strings.Join(parts[i:], ".") + "." + tld

		baseName := "@"
		if i != 0 {
			baseName = strings.Join(parts[:i], ".")
		}
		add(contractID, baseName)

		for j := 1; j <= i; j++ {
			var wildcard string
			switch {
			case j == i:
				wildcard = "*"
			case j == 1:
				wildcard = "*." + strings.Join(parts[1:i], ".")
			default:
				wildcard = "*." + strings.Join(parts[j:i], ".")
			}
			add(contractID, wildcard)
		}
	}

	return probes
}

// idnaProfile converts internationalized domain labels to their ASCII
// (punycode) form, the shape chain account identifiers are always expressed
// in. A query arriving with a non-ASCII label (e.g. from a resolver that
// accepts U-labels directly) is normalized before it is split into parts, so
// it can still match an account name probe.
var idnaProfile = idna.New(idna.MapForLookup(), idna.Transitional(true))

// SplitDomain trims a trailing dot from domain, normalizes it to ASCII via
// IDNA, and splits it into parts (all labels but the last) and tld (the last
// label). It returns ErrInvalidDomain when fewer than two labels remain or
// when the domain fails IDNA normalization.
func SplitDomain(domain string) (parts []string, tld string, err error) {
	trimmed := strings.TrimSuffix(domain, ".")

	ascii, err := idnaProfile.ToASCII(trimmed)
	if err != nil {
		return nil, "", ErrInvalidDomain
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return nil, "", ErrInvalidDomain
	}
	return labels[:len(labels)-1], labels[len(labels)-1], nil
}
