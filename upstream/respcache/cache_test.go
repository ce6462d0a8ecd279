package respcache

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func question(name string) dns.Question {
	return dns.Question{Name: dns.Fqdn(name), Qtype: dns.TypeA, Qclass: dns.ClassINET}
}

func reply(name string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   nil,
	}}
	return m
}

func TestCache_MissOnEmpty(t *testing.T) {
	c := New(10)
	msg, _, _ := c.Lookup(question("example.near."), "1.1.1.1:53")
	assert.Nil(t, msg)
}

func TestCache_RoundTrip(t *testing.T) {
	c := New(10)
	q := question("example.near.")
	c.Update(q, "1.1.1.1:53", reply("example.near."), time.Minute)

	msg, _, _ := c.Lookup(q, "1.1.1.1:53")
	assert.NotNil(t, msg)
	assert.Equal(t, dns.Fqdn("example.near."), msg.Question[0].Name)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(10)
	q := question("example.near.")
	c.Update(q, "1.1.1.1:53", reply("example.near."), -1*time.Second)

	msg, _, _ := c.Lookup(q, "1.1.1.1:53")
	assert.Nil(t, msg)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Update(question("a.near."), "1.1.1.1:53", reply("a.near."), time.Minute)
	c.Update(question("b.near."), "1.1.1.1:53", reply("b.near."), time.Minute)
	c.Update(question("c.near."), "1.1.1.1:53", reply("c.near."), time.Minute)

	msg, _, _ := c.Lookup(question("a.near."), "1.1.1.1:53")
	assert.Nil(t, msg, "oldest entry should have been evicted")

	msg, _, _ = c.Lookup(question("c.near."), "1.1.1.1:53")
	assert.NotNil(t, msg)
}

func TestCache_DistinctByServerAddress(t *testing.T) {
	c := New(10)
	q := question("example.near.")
	c.Update(q, "1.1.1.1:53", reply("example.near."), time.Minute)

	msg, _, _ := c.Lookup(q, "2.2.2.2:53")
	assert.Nil(t, msg)
}
