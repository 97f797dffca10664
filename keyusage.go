package webpki

import "github.com/luoffei/webpki/der"

// KeyUsage is the keyUsage extension's BIT STRING, decoded into named
// bits (RFC 5280 §4.2.1.3). Bit numbering follows the ASN.1
// NamedBitList order, not byte order.
type KeyUsage uint16

const (
	KeyUsageDigitalSignature  KeyUsage = 1 << iota // bit 0
	KeyUsageContentCommitment                      // bit 1, formerly nonRepudiation
	KeyUsageKeyEncipherment                         // bit 2
	KeyUsageDataEncipherment                        // bit 3
	KeyUsageKeyAgreement                            // bit 4
	KeyUsageCertSign                                // bit 5, keyCertSign
	KeyUsageCRLSign                                 // bit 6
	KeyUsageEncipherOnly                            // bit 7
	KeyUsageDecipherOnly                            // bit 8
)

// Has reports whether every bit in want is set in ku.
func (ku KeyUsage) Has(want KeyUsage) bool { return ku&want == want }

// ExtKeyUsage is the decoded extKeyUsage extension: either an explicit
// list of purpose OIDs, or the anyExtendedKeyUsage wildcard.
type ExtKeyUsage struct {
	OIDs []der.OID
	Any  bool
}

// Allows reports whether purpose is permitted by this EKU extension.
func (e ExtKeyUsage) Allows(purpose der.OID) bool {
	if e.Any {
		return true
	}
	for _, oid := range e.OIDs {
		if oid.Equal(purpose) {
			return true
		}
	}
	return false
}

// Standard Extended Key Usage purpose OIDs (RFC 5280 §4.2.1.12),
// expressed as id-kp arcs under 1.3.6.1.5.5.7.3.
var (
	EKUServerAuth      = der.OID([]byte{0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x01})
	EKUClientAuth      = der.OID([]byte{0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x02})
	EKUCodeSigning     = der.OID([]byte{0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x03})
	EKUEmailProtection = der.OID([]byte{0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x04})
	EKUOCSPSigning     = der.OID([]byte{0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x09})

	oidAnyExtendedKeyUsage = der.OID([]byte{0x55, 0x1d, 0x25, 0x00})
)

// Standard X.509v3 extension OIDs under id-ce (2.5.29).
var (
	oidKeyUsage         = der.OID([]byte{0x55, 0x1d, 0x0f})
	oidSubjectAltName   = der.OID([]byte{0x55, 0x1d, 0x11})
	oidBasicConstraints = der.OID([]byte{0x55, 0x1d, 0x13})
	oidNameConstraints  = der.OID([]byte{0x55, 0x1d, 0x1e})
	oidExtKeyUsage      = der.OID([]byte{0x55, 0x1d, 0x25})
	oidCRLNumber        = der.OID([]byte{0x55, 0x1d, 0x14})
	oidCRLDistribution  = der.OID([]byte{0x55, 0x1d, 0x1f})
	oidAuthorityKeyID   = der.OID([]byte{0x55, 0x1d, 0x23})
	oidSubjectKeyID     = der.OID([]byte{0x55, 0x1d, 0x0e})
)
