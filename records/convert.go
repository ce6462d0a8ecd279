package records

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// ToWire converts a StoredRecord into a wire-format github.com/miekg/dns
// resource record.
//
// ownerName is the fully qualified name the record is being answered for
// (the Hdr.Name of the resulting RR). origin is the domain relative names
// inside the value are resolved against — in practice always the queried
// domain, but the two are kept as separate parameters so callers (and
// tests) can exercise the origin-qualification rule independently of the
// owner name.
//
// ToWire is pure: it performs no I/O and, for identical inputs, always
// returns identical output.
func ToWire(stored StoredRecord, ownerName, origin string) (dns.RR, error) {
	owner := dns.Fqdn(ownerName)
	hdr := dns.RR_Header{
		Name:   owner,
		Class:  dns.ClassINET,
		Ttl:    stored.TTL,
		Rrtype: 0,
	}

	switch stored.Normalize() {
	case "A":
		ip := net.ParseIP(stored.Value)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIPv4, stored.Value)
		}
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: ip.To4()}, nil

	case "AAAA":
		ip := net.ParseIP(stored.Value)
		if ip == nil || ip.To4() != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIPv6, stored.Value)
		}
		hdr.Rrtype = dns.TypeAAAA
		return &dns.AAAA{Hdr: hdr, AAAA: ip}, nil

	case "CNAME":
		target, err := qualifyName(stored.Value, origin)
		if err != nil {
			return nil, err
		}
		hdr.Rrtype = dns.TypeCNAME
		return &dns.CNAME{Hdr: hdr, Target: target}, nil

	case "NS":
		target, err := qualifyName(stored.Value, origin)
		if err != nil {
			return nil, err
		}
		hdr.Rrtype = dns.TypeNS
		return &dns.NS{Hdr: hdr, Ns: target}, nil

	case "PTR":
		target, err := qualifyName(stored.Value, origin)
		if err != nil {
			return nil, err
		}
		hdr.Rrtype = dns.TypePTR
		return &dns.PTR{Hdr: hdr, Ptr: target}, nil

	case "MX":
		exchange, err := qualifyName(stored.Value, origin)
		if err != nil {
			return nil, err
		}
		hdr.Rrtype = dns.TypeMX
		return &dns.MX{Hdr: hdr, Preference: stored.preference(), Mx: exchange}, nil

	case "TXT":
		hdr.Rrtype = dns.TypeTXT
		return &dns.TXT{Hdr: hdr, Txt: []string{stored.Value}}, nil

	case "SRV":
		return toSRV(stored, hdr, origin)

	case "SOA":
		return toSOA(stored, hdr, origin)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, stored.RecordType)
	}
}

func toSRV(stored StoredRecord, hdr dns.RR_Header, origin string) (dns.RR, error) {
	fields := strings.Fields(stored.Value)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: SRV value must be \"weight port target\", got %q", ErrInvalidFormat, stored.Value)
	}

	weight, err := parseUint(fields[0], 16)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV weight: %v", ErrInvalidFormat, err)
	}
	port, err := parseUint(fields[1], 16)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV port: %v", ErrInvalidFormat, err)
	}
	target, err := qualifyName(fields[2], origin)
	if err != nil {
		return nil, err
	}

	hdr.Rrtype = dns.TypeSRV
	return &dns.SRV{
		Hdr:      hdr,
		Priority: stored.preference(),
		Weight:   uint16(weight),
		Port:     uint16(port),
		Target:   target,
	}, nil
}

func toSOA(stored StoredRecord, hdr dns.RR_Header, origin string) (dns.RR, error) {
	fields := strings.Fields(stored.Value)
	if len(fields) != 7 {
		return nil, fmt.Errorf("%w: SOA value must be \"mname rname serial refresh retry expire minimum\", got %q", ErrInvalidFormat, stored.Value)
	}

	mname, err := qualifyName(fields[0], origin)
	if err != nil {
		return nil, err
	}
	rname, err := qualifyName(fields[1], origin)
	if err != nil {
		return nil, err
	}
	serial, err := parseUint(fields[2], 32)
	if err != nil {
		return nil, fmt.Errorf("%w: SOA serial: %v", ErrInvalidFormat, err)
	}
	refresh, err := parseInt32(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%w: SOA refresh: %v", ErrInvalidFormat, err)
	}
	retry, err := parseInt32(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: SOA retry: %v", ErrInvalidFormat, err)
	}
	expire, err := parseInt32(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: SOA expire: %v", ErrInvalidFormat, err)
	}
	minimum, err := parseUint(fields[6], 32)
	if err != nil {
		return nil, fmt.Errorf("%w: SOA minimum: %v", ErrInvalidFormat, err)
	}

	hdr.Rrtype = dns.TypeSOA
	return &dns.SOA{
		Hdr:     hdr,
		Ns:      mname,
		Mbox:    rname,
		Serial:  uint32(serial),
		Refresh: uint32(refresh),
		Retry:   uint32(retry),
		Expire:  uint32(expire),
		Minttl:  uint32(minimum),
	}, nil
}

// qualifyName resolves a domain-valued record field against origin: "@"
// means the origin itself, a trailing dot denotes an already fully
// qualified name, anything else is relative to origin.
func qualifyName(value, origin string) (string, error) {
	if value == "@" {
		return dns.Fqdn(origin), nil
	}

	full := value
	if !strings.HasSuffix(value, ".") {
		full = dns.Fqdn(value + "." + strings.TrimSuffix(dns.Fqdn(origin), "."))
	}

	if _, ok := dns.IsDomainName(full); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomainName, value)
	}

	return full, nil
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 10, bits)
}

func parseInt32(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 32)
}
