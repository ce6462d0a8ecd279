package authority

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainresolve/dnsbridge/chain"
	"github.com/chainresolve/dnsbridge/records"
	"github.com/chainresolve/dnsbridge/upstream"
)

type fakeResponseWriter struct {
	written *dns.Msg
}

func (w *fakeResponseWriter) LocalAddr() net.Addr         { return &net.UDPAddr{} }
func (w *fakeResponseWriter) RemoteAddr() net.Addr        { return &net.UDPAddr{} }
func (w *fakeResponseWriter) WriteMsg(m *dns.Msg) error   { w.written = m; return nil }
func (w *fakeResponseWriter) Write([]byte) (int, error)   { return 0, nil }
func (w *fakeResponseWriter) Close() error                { return nil }
func (w *fakeResponseWriter) TsigStatus() error           { return nil }
func (w *fakeResponseWriter) TsigTimersOnly(bool)         {}
func (w *fakeResponseWriter) Hijack()                     {}
func (w *fakeResponseWriter) Network() string             { return "udp" }

var _ dns.ResponseWriter = (*fakeResponseWriter)(nil)

type fakeChain struct {
	isChainTLD bool
	records    []records.StoredRecord
	err        error
}

func (f *fakeChain) IsChainTLD(string) bool { return f.isChainTLD }
func (f *fakeChain) Resolve(context.Context, string, string) ([]records.StoredRecord, error) {
	return f.records, f.err
}

type fakeUpstream struct {
	rrs []dns.RR
	err error
}

func (f *fakeUpstream) Resolve(context.Context, uint16, string) ([]dns.RR, error) {
	return f.rrs, f.err
}

func query(qtype uint16, name string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func TestServeDNS_ChainGoverned_Found(t *testing.T) {
	c := &fakeChain{isChainTLD: true, records: []records.StoredRecord{{RecordType: "A", Value: "192.168.1.1", TTL: 300}}}
	a := NewAdapter(c, &fakeUpstream{}, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "frol.near"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeSuccess, w.written.Rcode)
	require.Len(t, w.written.Answer, 1)
	assert.Equal(t, "192.168.1.1", w.written.Answer[0].(*dns.A).A.String())
}

func TestServeDNS_ChainGoverned_NotFound(t *testing.T) {
	c := &fakeChain{isChainTLD: true, err: chain.ErrNotFound}
	a := NewAdapter(c, &fakeUpstream{}, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "nope.near"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeNameError, w.written.Rcode)
}

func TestServeDNS_ChainGoverned_StructuralErrorIsServFail(t *testing.T) {
	c := &fakeChain{isChainTLD: true, err: chain.ErrInvalidDomain}
	a := NewAdapter(c, &fakeUpstream{}, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "near."))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeServerFailure, w.written.Rcode)
}

func TestServeDNS_ChainGoverned_AllRecordsFailConversionIsNXDomain(t *testing.T) {
	c := &fakeChain{isChainTLD: true, records: []records.StoredRecord{{RecordType: "A", Value: "not-an-ip", TTL: 300}}}
	a := NewAdapter(c, &fakeUpstream{}, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "frol.near"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeNameError, w.written.Rcode)
}

func TestServeDNS_DelegatesToUpstream(t *testing.T) {
	c := &fakeChain{isChainTLD: false}
	rr, _ := dns.NewRR("example.com. 300 IN A 10.0.0.1")
	u := &fakeUpstream{rrs: []dns.RR{rr}}
	a := NewAdapter(c, u, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "example.com"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeSuccess, w.written.Rcode)
	require.Len(t, w.written.Answer, 1)
}

func TestServeDNS_UpstreamNotFoundIsNXDomain(t *testing.T) {
	c := &fakeChain{isChainTLD: false}
	u := &fakeUpstream{err: upstream.ErrNXDomain}
	a := NewAdapter(c, u, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "example.com"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeNameError, w.written.Rcode)
}

func TestServeDNS_UpstreamErrorIsServFail(t *testing.T) {
	c := &fakeChain{isChainTLD: false}
	u := &fakeUpstream{err: errors.New("boom")}
	a := NewAdapter(c, u, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeA, "example.com"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeServerFailure, w.written.Rcode)
}

func TestServeDNS_AXFRIsNotImplemented(t *testing.T) {
	c := &fakeChain{isChainTLD: true}
	a := NewAdapter(c, &fakeUpstream{}, WithRegisterer(nil))

	w := &fakeResponseWriter{}
	a.ServeDNS(w, query(dns.TypeAXFR, "frol.near"))

	require.NotNil(t, w.written)
	assert.Equal(t, dns.RcodeNotImplemented, w.written.Rcode)
}
