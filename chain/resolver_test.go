package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainresolve/dnsbridge/cache"
	"github.com/chainresolve/dnsbridge/records"
)

type dnsQueryCall struct {
	contractID, name, recordType string
}

type fakeRPC struct {
	existence map[string]bool
	existErr  map[string]error
	answers   map[dnsQueryCall][]records.StoredRecord
	errs      map[dnsQueryCall]error
	calls     []dnsQueryCall
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		existence: map[string]bool{},
		existErr:  map[string]error{},
		answers:   map[dnsQueryCall][]records.StoredRecord{},
		errs:      map[dnsQueryCall]error{},
	}
}

func (f *fakeRPC) AccountExists(ctx context.Context, accountID string) (bool, error) {
	if err, ok := f.existErr[accountID]; ok {
		return false, err
	}
	exists, ok := f.existence[accountID]
	if !ok {
		return true, nil // default: contracts not explicitly marked absent exist
	}
	return exists, nil
}

func (f *fakeRPC) DNSQuery(ctx context.Context, contractID, name, recordType string) ([]records.StoredRecord, error) {
	call := dnsQueryCall{contractID, name, recordType}
	f.calls = append(f.calls, call)
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	return f.answers[call], nil
}

func newTestResolver(rpc RPCClient) *Resolver {
	c := cache.New(cache.WithRegisterer(nil))
	return New(rpc, c, WithRegisterer(nil))
}

func TestResolver_S1_SingleProbeMatch(t *testing.T) {
	rpc := newFakeRPC()
	rpc.answers[dnsQueryCall{"dns.frol.near", "@", "A"}] = []records.StoredRecord{
		{RecordType: "A", Value: "192.168.1.1", TTL: 300},
	}

	r := newTestResolver(rpc)
	got, err := r.Resolve(context.Background(), "frol.near", "A")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", got[0].Value)
}

func TestResolver_S2_ParentContractEntryMatch(t *testing.T) {
	rpc := newFakeRPC()
	rpc.answers[dnsQueryCall{"dns.frol.near", "www", "A"}] = []records.StoredRecord{
		{RecordType: "A", Value: "10.0.0.1", TTL: 60},
	}

	r := newTestResolver(rpc)
	got, err := r.Resolve(context.Background(), "www.frol.near", "A")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", got[0].Value)
	assert.Equal(t, uint32(60), got[0].TTL)
}

func TestResolver_S3_DeepWildcardMatch(t *testing.T) {
	rpc := newFakeRPC()
	rpc.answers[dnsQueryCall{"dns.frol.near", "*", "A"}] = []records.StoredRecord{
		{RecordType: "A", Value: "10.0.0.2", TTL: 60},
	}

	r := newTestResolver(rpc)
	got, err := r.Resolve(context.Background(), "deep.sub.frol.near", "A")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", got[0].Value)

	wantProbed := []dnsQueryCall{
		{"dns.deep.sub.frol.near", "@", "A"},
		{"dns.sub.frol.near", "deep", "A"},
		{"dns.sub.frol.near", "*", "A"},
		{"dns.frol.near", "deep.sub", "A"},
		{"dns.frol.near", "*.sub", "A"},
		{"dns.frol.near", "*", "A"},
	}
	assert.Equal(t, wantProbed, rpc.calls)
}

func TestResolver_NotChainTLD(t *testing.T) {
	r := newTestResolver(newFakeRPC())
	_, err := r.Resolve(context.Background(), "example.com", "A")
	assert.ErrorIs(t, err, ErrNotChainTLD)
}

func TestResolver_InvalidDomain(t *testing.T) {
	r := newTestResolver(newFakeRPC())
	_, err := r.Resolve(context.Background(), "near", "A")
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

// S5: a negative RPC signal on one probe is swallowed and iteration
// continues; when nothing else matches, the result is NotFound and the
// existence cache records the absent contract.
func TestResolver_S5_NegativeSignalSwallowedThenNotFound(t *testing.T) {
	rpc := newFakeRPC()
	rpc.errs[dnsQueryCall{"dns.frol.near", "@", "A"}] = errors.New("near rpc: CodeDoesNotExist for account dns.frol.near")

	c := cache.New(cache.WithRegisterer(nil))
	r := New(rpc, c, WithRegisterer(nil))

	_, err := r.Resolve(context.Background(), "frol.near", "A")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, ok := c.GetExistence("dns.frol.near")
	assert.True(t, ok)
	assert.False(t, exists, "a CodeDoesNotExist signal should mark the contract absent")
}

func TestResolver_AllProbesRPCError_SurfacesRPCError(t *testing.T) {
	rpc := newFakeRPC()
	rpc.errs[dnsQueryCall{"dns.frol.near", "@", "A"}] = errors.New("connection reset by peer")

	r := newTestResolver(rpc)
	_, err := r.Resolve(context.Background(), "frol.near", "A")
	assert.ErrorIs(t, err, ErrRPCError)
}

func TestResolver_ExistenceNegativeSkipsContractWithoutRPC(t *testing.T) {
	rpc := newFakeRPC()
	rpc.existence["dns.frol.near"] = false

	r := newTestResolver(rpc)
	_, err := r.Resolve(context.Background(), "frol.near", "A")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, rpc.calls, "dns_query must not be invoked against a known-absent contract")
}

// S6 (record-conversion side is tested in package records): here we just
// confirm that the cache records the RPC answer for a later identical query
// to hit.
func TestResolver_CachesSuccessfulAnswer(t *testing.T) {
	rpc := newFakeRPC()
	rpc.answers[dnsQueryCall{"dns.frol.near", "@", "MX"}] = []records.StoredRecord{
		{RecordType: "MX", Value: "mail.example.com.", TTL: 3600},
	}

	r := newTestResolver(rpc)
	_, err := r.Resolve(context.Background(), "frol.near", "MX")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "frol.near", "MX")
	require.NoError(t, err)
	assert.Len(t, rpc.calls, 1, "second resolution should be served from cache")
}
