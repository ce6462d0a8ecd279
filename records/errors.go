package records

import "errors"

// ErrInvalidIPv4 is returned by ToWire when an A record's value does not
// parse as a dotted-quad IPv4 address. ErrInvalidIPv4 may be wrapped and
// must be tested for with errors.Is.
var ErrInvalidIPv4 = errors.New("invalid IPv4 address")

// ErrInvalidIPv6 is returned by ToWire when an AAAA record's value does not
// parse as an IPv6 literal. ErrInvalidIPv6 may be wrapped and must be tested
// for with errors.Is.
var ErrInvalidIPv6 = errors.New("invalid IPv6 address")

// ErrInvalidDomainName is returned by ToWire when a domain-valued field
// (CNAME/NS/PTR/MX exchange/SRV target/SOA mname or rname) does not parse as
// a domain name.
var ErrInvalidDomainName = errors.New("invalid domain name")

// ErrInvalidFormat is returned by ToWire when a multi-field value (SRV, SOA)
// does not split into the expected number of whitespace-separated tokens, or
// one of those tokens does not parse as the expected integer type.
var ErrInvalidFormat = errors.New("invalid record format")

// ErrUnsupportedType is returned by ToWire for CAA and any other declared
// record type without an explicit conversion rule.
var ErrUnsupportedType = errors.New("unsupported record type")
