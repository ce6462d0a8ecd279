package upstream

import (
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

// testServer is a minimal, zonefile-backed authoritative name server used to
// exercise Resolver's recursion without touching the real internet.
type testServer struct {
	db map[uint16]map[string][]dns.RR
	dns.Server
}

// newTestServer starts a UDP name server on addr:5354 serving zone, an RFC
// 1035 zonefile. It shuts down automatically when t finishes.
func newTestServer(t *testing.T, addr, zone string) *testServer {
	t.Helper()

	srv := &testServer{db: map[uint16]map[string][]dns.RR{}}

	zp := dns.NewZoneParser(strings.NewReader(strings.TrimSpace(zone)+"\n"), ".", addr+".zone")
	zp.SetIncludeAllowed(false)
	for {
		rr, ok := zp.Next()
		if !ok {
			break
		}
		hdr := rr.Header()
		if srv.db[hdr.Rrtype] == nil {
			srv.db[hdr.Rrtype] = map[string][]dns.RR{}
		}
		srv.db[hdr.Rrtype][hdr.Name] = append(srv.db[hdr.Rrtype][hdr.Name], rr)
	}
	if err := zp.Err(); err != nil {
		t.Fatalf("parse zonefile: %v", err)
	}

	ln, err := net.ListenPacket("udp", addr+":5354")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv.Server = dns.Server{PacketConn: ln, Handler: srv}

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		srv.Shutdown()
	})
	go func() {
		if err := srv.ActivateAndServe(); err != nil {
			select {
			case <-done:
			default:
				t.Errorf("serve %s: %v", addr, err)
			}
		}
	}()

	return srv
}

// ServeDNS answers authoritatively from the in-memory zone database,
// answering a query for an alias with its CNAME plus the target's records of
// the queried type, and attaching A/AAAA glue for any NS target it also has
// records for.
func (s *testServer) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	if len(req.Question) != 1 {
		m.Rcode = dns.RcodeFormatError
		w.WriteMsg(m)
		return
	}

	q := req.Question[0]
	m.Answer = s.db[q.Qtype][q.Name]
	if len(m.Answer) == 0 && q.Qtype != dns.TypeCNAME {
		if cname := s.db[dns.TypeCNAME][q.Name]; len(cname) > 0 {
			target := cname[0].(*dns.CNAME).Target
			m.Answer = append(append([]dns.RR{}, cname...), s.db[q.Qtype][target]...)
		}
	}

	if len(m.Answer) == 0 {
		if ns := s.db[dns.TypeNS][q.Name]; len(ns) > 0 && q.Qtype != dns.TypeNS {
			m.Authoritative = false
			m.Ns = ns
			m.Extra = s.glueFor(ns)
			w.WriteMsg(m)
			return
		}
		m.Rcode = dns.RcodeNameError
		w.WriteMsg(m)
		return
	}

	w.WriteMsg(m)
}

func (s *testServer) glueFor(nsRecords []dns.RR) []dns.RR {
	var extra []dns.RR
	for _, rr := range nsRecords {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		extra = append(extra, s.db[dns.TypeA][ns.Ns]...)
		extra = append(extra, s.db[dns.TypeAAAA][ns.Ns]...)
	}
	return extra
}
