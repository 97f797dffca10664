package webpki

import (
	"encoding/hex"

	"golang.org/x/crypto/ocsp"
)

// RevocationCheckDepth controls which certificates along an accepted
// path must have a determinable revocation status.
type RevocationCheckDepth int

const (
	// CheckEndEntity requires only the leaf certificate's revocation
	// status to be known.
	CheckEndEntity RevocationCheckDepth = iota
	// CheckAll requires every certificate in the path, intermediates
	// included, to have a known status.
	CheckAll
)

// UnknownStatusPolicy controls how a certificate with no CRL or OCSP
// coverage at all is treated.
type UnknownStatusPolicy int

const (
	// UnknownStatusDeny fails the path with ErrUnknownRevocationStatus.
	UnknownStatusDeny UnknownStatusPolicy = iota
	// UnknownStatusAllow treats missing coverage as non-revoked.
	UnknownStatusAllow
)

// RevocationOptions configures revocation checking for BuildChain. A
// nil *RevocationOptions on ChainOptions disables revocation checking
// entirely.
type RevocationOptions struct {
	// CRLs are DER CRLs, pre-parsed by the caller with ParseCRL. Not
	// associated with a certificate by the caller: this module matches
	// a CRL to a certificate by issuer-subject equality.
	CRLs []*CRL

	// OCSPResponses are individual OCSP responses, keyed by the
	// lowercase hex encoding of the certificate serial's content
	// octets, pre-parsed and pre-validated by the caller with
	// ocsp.ParseResponse (which itself checks the response's signature
	// against the responder certificate the caller supplies). This
	// module performs no network I/O and re-checks no signature here;
	// it only consults Response.Status.
	OCSPResponses map[string]*ocsp.Response

	Depth         RevocationCheckDepth
	UnknownStatus UnknownStatusPolicy
}

// revocationLink pairs a certificate on the path with the issuer that
// signed it, so its CRL (if any) can be validated as actually having
// been issued by that certificate's issuer.
type revocationLink struct {
	cert          *Cert
	issuerSubject []byte
	issuerSPKI    SubjectPublicKeyInfo
	issuerKeyUsage *KeyUsage
}

// checkRevocation enforces opts against links, which must be ordered
// end-entity-first. Intermediates are only consulted when opts.Depth
// is CheckAll.
func checkRevocation(opts *RevocationOptions, links []revocationLink, algs []SignatureVerificationAlgorithm, now Time) error {
	for i, link := range links {
		if i > 0 && opts.Depth != CheckAll {
			break
		}
		if err := checkOneRevocation(opts, link, algs, now); err != nil {
			return err
		}
	}
	return nil
}

func checkOneRevocation(opts *RevocationOptions, link revocationLink, algs []SignatureVerificationAlgorithm, now Time) error {
	if resp, ok := opts.OCSPResponses[hex.EncodeToString(link.cert.SerialRaw)]; ok {
		switch resp.Status {
		case ocsp.Good:
			return nil
		case ocsp.Revoked:
			return ErrCertRevoked
		default:
			// ocsp.Unknown: fall through to CRL/unknown handling below.
		}
	}

	crl := findCRLForIssuer(opts.CRLs, link.issuerSubject)
	if crl == nil {
		return unknownRevocationOutcome(opts)
	}

	if link.issuerKeyUsage == nil || !link.issuerKeyUsage.Has(KeyUsageCRLSign) {
		return ErrIssuerNotCrlSigner
	}

	if err := verifyWithSupportedAlgs(algs, crl.SignatureOID, crl.SignatureParams, link.issuerSPKI, crl.TBSRaw, crl.SignatureValue); err != nil {
		if err == ErrUnsupportedSignatureAlgorithm {
			return ErrUnsupportedCrlSignatureAlgorithm
		}
		return ErrInvalidCrlSignatureForPublicKey
	}

	if _, revoked := crl.Revoked(link.cert.SerialNumber); revoked {
		return ErrCertRevoked
	}
	return nil
}

func unknownRevocationOutcome(opts *RevocationOptions) error {
	if opts.UnknownStatus == UnknownStatusAllow {
		return nil
	}
	return ErrUnknownRevocationStatus
}

func findCRLForIssuer(crls []*CRL, issuerSubject []byte) *CRL {
	for _, c := range crls {
		if bytesEqual(c.Issuer, issuerSubject) {
			return c
		}
	}
	return nil
}
