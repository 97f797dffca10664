package webpki

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchDNSNameExact(t *testing.T) {
	assert.True(t, MatchDNSName("example.com", "example.com"))
	assert.True(t, MatchDNSName("EXAMPLE.com", "example.COM"))
	assert.False(t, MatchDNSName("example.com", "example.org"))
}

func TestMatchDNSNameWildcard(t *testing.T) {
	assert.True(t, MatchDNSName("*.example.com", "foo.example.com"))
	assert.False(t, MatchDNSName("*.example.com", "example.com"))
	assert.False(t, MatchDNSName("*.example.com", "foo.bar.example.com"))
	assert.False(t, MatchDNSName("foo.*.example.com", "foo.bar.example.com"))
}

func TestMatchDNSNameRejectsEmpty(t *testing.T) {
	assert.False(t, MatchDNSName("", "example.com"))
	assert.False(t, MatchDNSName("example.com", ""))
}

func TestMatchIPAddress(t *testing.T) {
	assert.True(t, MatchIPAddress(net.ParseIP("93.184.216.34").To4(), net.ParseIP("93.184.216.34")))
	assert.False(t, MatchIPAddress(net.ParseIP("93.184.216.34").To4(), net.ParseIP("93.184.216.35")))
}

func TestNameConstraintsExcludedWins(t *testing.T) {
	nc := NameConstraints{
		PermittedDNS: []string{"example.com"},
		ExcludedDNS:  []string{"evil.example.com"},
	}
	assert.NoError(t, nc.CheckDNS("www.example.com"))
	assert.ErrorIs(t, nc.CheckDNS("www.evil.example.com"), ErrNameConstraintViolation)
}

func TestNameConstraintsNoPermittedMeansUnconstrained(t *testing.T) {
	var nc NameConstraints
	assert.NoError(t, nc.CheckDNS("anything.example.net"))
}

func TestNameConstraintsRejectsOutsidePermitted(t *testing.T) {
	nc := NameConstraints{PermittedDNS: []string{"example.com"}}
	assert.ErrorIs(t, nc.CheckDNS("evil.test"), ErrNameConstraintViolation)
}

func TestDNSSubtreeMatch(t *testing.T) {
	assert.True(t, dnsSubtreeMatch("example.com", "example.com"))
	assert.True(t, dnsSubtreeMatch("foo.example.com", "example.com"))
	assert.False(t, dnsSubtreeMatch("fooexample.com", "example.com"))
}
