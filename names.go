package webpki

import (
	"net"
	"strings"

	"github.com/luoffei/webpki/der"
)

var oidCommonName = der.OID([]byte{0x55, 0x04, 0x03})

// subjectCommonName extracts the commonName attribute from a raw Name
// SEQUENCE, for the legacy fallback RFC 6125 §6.4.4 still permits when
// a certificate carries no subjectAltName. Parsing is best-effort: a
// malformed or absent RDN simply yields ok=false rather than a new
// error kind, since the certificate's Subject bytes are never
// structurally validated by ParseCertificate.
func subjectCommonName(dn []byte) (string, bool) {
	r := der.NewReader(dn)
	rdnSeq, err := r.Expect(der.TagSequence)
	if err != nil {
		return "", false
	}
	for !rdnSeq.AtEnd() {
		rdnRaw, err := rdnSeq.ReadRawTLV()
		if err != nil {
			return "", false
		}
		set, err := der.NewReader(rdnRaw).Expect(der.TagSet)
		if err != nil {
			continue
		}
		for !set.AtEnd() {
			avaRaw, err := set.ReadRawTLV()
			if err != nil {
				break
			}
			ava, err := der.NewReader(avaRaw).Expect(der.TagSequence)
			if err != nil {
				continue
			}
			oid, err := der.ReadOID(ava)
			if err != nil {
				continue
			}
			if !oid.Equal(oidCommonName) {
				continue
			}
			if _, value, err := ava.ReadTagAndLength(); err == nil {
				return string(value), true
			}
		}
	}
	return "", false
}

// GeneralNameTag identifies which CHOICE arm of a GeneralName (RFC 5280
// §4.2.1.6) is present. Only the name forms this validator acts on are
// modeled; anything else decodes to GeneralNameOther and is otherwise
// opaque.
type GeneralNameTag int

const (
	GeneralNameOther GeneralNameTag = iota
	GeneralNameDNS
	GeneralNameIP
	GeneralNameDirectory
)

// GeneralName is a single entry of a GeneralNames SEQUENCE, as found in
// both the subjectAltName extension and in name-constraint subtrees.
type GeneralName struct {
	Tag   GeneralNameTag
	Value []byte
}

// DNSName returns the name as a string when Tag is GeneralNameDNS.
func (g GeneralName) DNSName() string { return string(g.Value) }

// NameConstraints accumulates the permitted and excluded DNS and IP
// subtrees imposed by every CA certificate along a candidate chain.
// RFC 5280 §4.2.1.10: excluded subtrees always win over permitted
// ones, and an empty permitted set for a name form means "no
// constraint" rather than "reject everything" unless at least one
// permitted entry of that form exists somewhere on the chain.
type NameConstraints struct {
	PermittedDNS []string
	ExcludedDNS  []string
	PermittedIP  []IPNet
	ExcludedIP   []IPNet
}

// IPNet is a CIDR-style iPAddress name-constraint subtree: address and
// mask of equal, matching length (4 for IPv4, 16 for IPv6).
type IPNet struct {
	Addr net.IP
	Mask net.IPMask
}

// Merge folds the constraints carried by one CA certificate into the
// accumulator built while walking a path from end-entity to anchor.
func (nc *NameConstraints) Merge(other NameConstraints) {
	nc.PermittedDNS = append(nc.PermittedDNS, other.PermittedDNS...)
	nc.ExcludedDNS = append(nc.ExcludedDNS, other.ExcludedDNS...)
	nc.PermittedIP = append(nc.PermittedIP, other.PermittedIP...)
	nc.ExcludedIP = append(nc.ExcludedIP, other.ExcludedIP...)
}

// CheckDNS reports whether name is acceptable under the accumulated
// constraints: it must not fall under any excluded subtree, and if any
// permitted DNS subtree exists anywhere on the chain, name must fall
// under at least one of them.
func (nc *NameConstraints) CheckDNS(name string) error {
	name = strings.ToLower(name)
	for _, ex := range nc.ExcludedDNS {
		if dnsSubtreeMatch(name, ex) {
			return ErrNameConstraintViolation
		}
	}
	if len(nc.PermittedDNS) == 0 {
		return nil
	}
	for _, perm := range nc.PermittedDNS {
		if dnsSubtreeMatch(name, perm) {
			return nil
		}
	}
	return ErrNameConstraintViolation
}

// CheckIP reports whether ip is acceptable under the accumulated
// constraints, by the same excluded-then-permitted rule as CheckDNS.
func (nc *NameConstraints) CheckIP(ip net.IP) error {
	for _, ex := range nc.ExcludedIP {
		if ipSubtreeMatch(ip, ex) {
			return ErrNameConstraintViolation
		}
	}
	if len(nc.PermittedIP) == 0 {
		return nil
	}
	for _, perm := range nc.PermittedIP {
		if ipSubtreeMatch(ip, perm) {
			return nil
		}
	}
	return ErrNameConstraintViolation
}

// dnsSubtreeMatch reports whether name falls under the DNS subtree
// rooted at constraint, per RFC 5280 §4.2.1.10: a constraint of
// "example.com" matches "example.com" itself and any name ending in
// ".example.com"; a leading dot on the constraint is tolerated and
// stripped.
func dnsSubtreeMatch(name, constraint string) bool {
	constraint = strings.ToLower(strings.TrimPrefix(constraint, "."))
	if constraint == "" {
		return true
	}
	if name == constraint {
		return true
	}
	return strings.HasSuffix(name, "."+constraint)
}

func ipSubtreeMatch(ip net.IP, subtree IPNet) bool {
	n := &net.IPNet{IP: subtree.Addr, Mask: subtree.Mask}
	return n.Contains(ip)
}

// ipNetFromConstraint validates and builds an IPNet from the raw
// iPAddress name-constraint bytes: 8 octets for IPv4 (address + mask)
// or 32 for IPv6, with the mask required to be contiguous (a valid
// CIDR prefix), matching the non-goal against "sparse" masks.
func ipNetFromConstraint(raw []byte) (IPNet, error) {
	switch len(raw) {
	case 8:
		addr := net.IP(raw[:4])
		mask := net.IPMask(raw[4:])
		if _, ok := mask.Size(); !ok {
			return IPNet{}, ErrInvalidNetworkMaskConstraint
		}
		return IPNet{Addr: addr, Mask: mask}, nil
	case 32:
		addr := net.IP(raw[:16])
		mask := net.IPMask(raw[16:])
		if _, ok := mask.Size(); !ok {
			return IPNet{}, ErrInvalidNetworkMaskConstraint
		}
		return IPNet{Addr: addr, Mask: mask}, nil
	default:
		return IPNet{}, ErrInvalidNetworkMaskConstraint
	}
}

// MatchDNSName reports whether the certificate's presented DNS name
// (from a SAN dNSName entry) matches the reference name the caller is
// validating against, per RFC 6125 and RFC 5280: case-insensitive
// ASCII comparison, with at most one wildcard label ("*") at the
// leftmost position of the presented name, matching exactly one
// reference label and never matching across a label boundary or a
// public-suffix-like bare TLD.
func MatchDNSName(presented, reference string) bool {
	presented = strings.TrimSuffix(strings.ToLower(presented), ".")
	reference = strings.TrimSuffix(strings.ToLower(reference), ".")
	if presented == "" || reference == "" {
		return false
	}
	if !strings.Contains(presented, "*") {
		return presented == reference
	}

	pLabels := strings.Split(presented, ".")
	rLabels := strings.Split(reference, ".")
	if len(pLabels) != len(rLabels) || len(pLabels) < 3 {
		return false
	}
	if pLabels[0] != "*" {
		return false
	}
	for i, lbl := range strings.Split(presented, ".") {
		if i == 0 {
			continue
		}
		if strings.Contains(lbl, "*") {
			return false
		}
	}
	if rLabels[0] == "" {
		return false
	}
	for i := 1; i < len(pLabels); i++ {
		if pLabels[i] != rLabels[i] {
			return false
		}
	}
	return true
}

// MatchIPAddress reports whether presented (the raw 4- or 16-octet
// SAN iPAddress value) denotes the same address as reference, compared
// byte-for-byte after normalizing both to the same family width.
func MatchIPAddress(presented []byte, reference net.IP) bool {
	var norm net.IP
	switch len(presented) {
	case 4:
		norm = net.IP(presented).To4()
	case 16:
		norm = net.IP(presented)
		if v4 := norm.To4(); v4 != nil {
			norm = v4
		}
	default:
		return false
	}
	ref := reference.To4()
	if ref == nil {
		ref = reference.To16()
	}
	return norm != nil && ref != nil && norm.Equal(ref)
}
