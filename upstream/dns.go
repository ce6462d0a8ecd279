package upstream

import "github.com/miekg/dns"

// normalize flattens a response's ANSWER section by dropping every CNAME
// record and keeping the rest, so that a query for www.example.com/A
// returns the A records when the server answered with CNAME + A rather than
// just A. It does not follow a CNAME to its target itself: target records
// appear only if the server included them in the same answer. Order is
// preserved; exact duplicates are removed.
func normalize(m *dns.Msg) []dns.RR {
	if m == nil {
		return nil
	}

	var out []dns.RR
	for _, rr := range m.Answer {
		if _, ok := rr.(*dns.CNAME); ok {
			continue
		}
		out = append(out, rr)
	}

	out = dns.Dedup(out, nil)
	return out
}
