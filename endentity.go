package webpki

import (
	"net"

	"github.com/luoffei/webpki/der"
)

// EndEntityCert wraps a certificate parsed with role EndEntity and
// exposes the three operations a TLS-like caller actually needs:
// building a trusted path, matching the presented identity against a
// reference name, and (independently) checking a raw signature the
// certificate's public key is claimed to have produced.
type EndEntityCert struct {
	cert *Cert
}

// NewEndEntityCert parses raw as an end-entity certificate.
func NewEndEntityCert(raw []byte) (*EndEntityCert, error) {
	cert, err := ParseCertificate(raw, EndEntity)
	if err != nil {
		return nil, err
	}
	return &EndEntityCert{cert: cert}, nil
}

// Cert returns the parsed certificate backing this facade.
func (e *EndEntityCert) Cert() *Cert { return e.cert }

// VerifyForUsage builds a certification path from this certificate to
// one of opts.TrustAnchors, valid as of now.
func (e *EndEntityCert) VerifyForUsage(opts ChainOptions, now Time) error {
	return BuildChain(opts, e.cert, now)
}

// VerifyIsValidForSubjectName checks name (a DNS name or textual IP
// address) against the certificate's subjectAltName entries, falling
// back to the legacy subject commonName only when no SAN dNSName entry
// is present at all.
func (e *EndEntityCert) VerifyIsValidForSubjectName(name string) error {
	if ip := net.ParseIP(name); ip != nil {
		for _, san := range e.cert.Extensions.SAN {
			if san.Tag == GeneralNameIP && MatchIPAddress(san.Value, ip) {
				return nil
			}
		}
		return ErrCertNotValidForName
	}

	if !isValidDNSIdentifier(name) {
		return ErrMalformedDnsIdentifier
	}

	var sawDNS bool
	for _, san := range e.cert.Extensions.SAN {
		if san.Tag != GeneralNameDNS {
			continue
		}
		sawDNS = true
		if MatchDNSName(san.DNSName(), name) {
			return nil
		}
	}
	if sawDNS {
		return ErrCertNotValidForName
	}

	if cn, ok := subjectCommonName(e.cert.Subject); ok && MatchDNSName(cn, name) {
		return nil
	}
	return ErrCertNotValidForName
}

// VerifySignature checks signature as a signature by this certificate's
// public key over msg, using the first of algs whose Matches accepts
// the caller-supplied sigOID and sigParams. This is for
// verifying something the certificate's subject signed (e.g. a TLS
// handshake transcript), not for path validation.
func (e *EndEntityCert) VerifySignature(algs []SignatureVerificationAlgorithm, sigOID der.OID, sigParams, msg, signature []byte) error {
	return verifyWithSupportedAlgs(algs, sigOID, sigParams, e.cert.SPKI, msg, signature)
}

// DNSNames returns every subjectAltName dNSName entry, or the legacy
// subject commonName as a single-element slice when there are none.
func (e *EndEntityCert) DNSNames() ([]string, error) {
	var names []string
	for _, san := range e.cert.Extensions.SAN {
		if san.Tag == GeneralNameDNS {
			names = append(names, san.DNSName())
		}
	}
	if len(names) > 0 {
		return names, nil
	}
	if cn, ok := subjectCommonName(e.cert.Subject); ok {
		return []string{cn}, nil
	}
	return nil, nil
}

// isValidDNSIdentifier rejects only the empty string and the bare root
// name "."; no other DNS syntax validation is done.
func isValidDNSIdentifier(name string) bool {
	return name != "" && name != "."
}
