package webpki

import (
	"bytes"
	"net"

	"github.com/luoffei/webpki/der"
)

// defaultSignatureCheckBudget bounds the total number of signature
// verifications a single BuildChain call may perform, across every
// candidate path it explores. Exhaustion means the search is aborted
// outright (ErrMaximumSignatureChecksExceeded) rather than merely
// failing the current branch: an attacker who can force the builder
// into a large number of dead-end candidate paths must not be able to
// turn that into unbounded CPU work.
const defaultSignatureCheckBudget = 100

// TrustAnchor is a trust anchor supplied by the caller: a subject DN
// and SPKI taken on faith, never themselves signature-checked. Per
// spec, a trust anchor's own signature (if any, e.g. a self-signed
// root certificate) is irrelevant to path validation and is not
// verified by this module.
type TrustAnchor struct {
	Subject         []byte
	SPKI            SubjectPublicKeyInfo
	NameConstraints *NameConstraints
	KeyUsage        *KeyUsage
}

// ChainOptions configures a single BuildChain search.
type ChainOptions struct {
	TrustAnchors  []TrustAnchor
	Intermediates []*Cert

	// SupportedAlgs are the signature verification capabilities
	// available to this search; see SignatureVerificationAlgorithm.
	SupportedAlgs []SignatureVerificationAlgorithm

	// RequiredEKU, if non-nil, must be permitted by the end-entity
	// certificate's extKeyUsage extension (or the certificate must
	// carry no extKeyUsage extension at all, per RFC 5280 §4.2.1.12).
	RequiredEKU *der.OID

	// Revocation, if non-nil, is consulted once a candidate path
	// closes against a trust anchor, before that path is accepted.
	Revocation *RevocationOptions

	// SignatureCheckBudget overrides defaultSignatureCheckBudget when
	// positive.
	SignatureCheckBudget int
}

// pathState is the mutable search state threaded through BuildChain's
// depth-first search. budget is a pointer because it is a genuinely
// global resource shared across the whole search tree, not per-branch;
// visited is mutated in place and restored on backtrack (classic
// depth-first "mark, recurse, unmark").
type pathState struct {
	budget  *int
	visited []bool
}

// BuildChain searches for a certification path from ee to one of
// opts.TrustAnchors, via opts.Intermediates, valid as of now. It
// performs a depth-first search: first try closing the current tip
// directly against a trust anchor: the
// signature and per-path checks closing ee to an anchor, or a
// non-backtrackable global budget excess. Only if every anchor is
// exhausted does it recurse through each not-yet-visited intermediate
// whose subject matches the tip's issuer. If every branch fails, the
// most specific error encountered anywhere in the search is returned.
func BuildChain(opts ChainOptions, ee *Cert, now Time) error {
	budget := opts.SignatureCheckBudget
	if budget <= 0 {
		budget = defaultSignatureCheckBudget
	}
	st := &pathState{budget: &budget, visited: make([]bool, len(opts.Intermediates))}

	if err := checkValidity(ee, now); err != nil {
		return err
	}

	return search(&opts, ee, st, NameConstraints{}, 0, []*Cert{ee}, now)
}

// search extends the path whose current tip is tip. path holds every
// certificate already accepted from ee to tip (both inclusive),
// ordered end-entity-first; finalizePath uses it for the per-path
// checks once a path closes.
func search(opts *ChainOptions, tip *Cert, st *pathState, constraints NameConstraints, depth int, path []*Cert, now Time) error {
	worst := error(ErrUnknownIssuer)

	for i := range opts.TrustAnchors {
		anchor := &opts.TrustAnchors[i]
		if !bytesEqual(anchor.Subject, tip.Issuer) {
			continue
		}
		if *st.budget <= 0 {
			return ErrMaximumSignatureChecksExceeded
		}
		*st.budget--
		err := verifyWithSupportedAlgs(opts.SupportedAlgs, tip.TBSSignatureOID, tip.TBSSignatureParams, anchor.SPKI, tip.TBSRaw, tip.SignatureValue)
		if err != nil {
			worst = MostSpecific(worst, err)
			continue
		}
		finalConstraints := mergeConstraints(constraints, anchor.NameConstraints)
		if err := finalizePath(opts, path, &finalConstraints, anchor, now); err != nil {
			if err == ErrMaximumSignatureChecksExceeded {
				return err
			}
			worst = MostSpecific(worst, err)
			continue
		}
		return nil
	}

	for i, cand := range opts.Intermediates {
		if st.visited[i] {
			continue
		}
		if !bytesEqual(cand.Subject, tip.Issuer) {
			continue
		}
		if err := checkValidity(cand, now); err != nil {
			worst = MostSpecific(worst, err)
			continue
		}

		if *st.budget <= 0 {
			return ErrMaximumSignatureChecksExceeded
		}
		*st.budget--
		sigErr := verifyWithSupportedAlgs(opts.SupportedAlgs, tip.TBSSignatureOID, tip.TBSSignatureParams, cand.SPKI, tip.TBSRaw, tip.SignatureValue)
		if sigErr != nil {
			worst = MostSpecific(worst, sigErr)
			continue
		}

		if err := checkLink(cand, depth); err != nil {
			worst = MostSpecific(worst, err)
			continue
		}

		st.visited[i] = true
		nextConstraints := mergeConstraints(constraints, cand.Extensions.NameConstraints)
		nextPath := appendCert(path, cand)
		err := search(opts, cand, st, nextConstraints, depth+1, nextPath, now)
		st.visited[i] = false

		if err == nil {
			return nil
		}
		if err == ErrMaximumSignatureChecksExceeded {
			return err
		}
		worst = MostSpecific(worst, err)
	}

	return worst
}

// checkLink validates a candidate intermediate CA certificate's own
// per-link properties: that it actually is a CA and that its
// basicConstraints pathLenConstraint, if any, is not already violated
// by the number of CA certificates already accepted below it.
//
// Self-issued certificates are not special-cased (see DESIGN.md): every
// intermediate decrements the remaining path length uniformly.
func checkLink(cand *Cert, depth int) error {
	if !cand.IsCA() {
		return ErrEndEntityUsedAsCa
	}
	if pl := cand.Extensions.BasicConstraints.PathLenConstraint; pl != nil && depth > *pl {
		return ErrPathLenConstraintViolated
	}
	return nil
}

// checkValidity reports whether cert's validity window covers now.
func checkValidity(cert *Cert, now Time) error {
	if now.Before(cert.NotBefore) {
		return ErrCertNotValidYet
	}
	if now.After(cert.NotAfter) {
		return ErrCertExpired
	}
	return nil
}

// finalizePath runs every check that only makes sense once a full
// candidate path has closed against a trust anchor: the accumulated
// name constraints against the end-entity's presented names, the
// required EKU, and (if configured) revocation status.
func finalizePath(opts *ChainOptions, path []*Cert, constraints *NameConstraints, anchor *TrustAnchor, now Time) error {
	ee := path[0]

	if err := checkNameConstraints(ee, constraints); err != nil {
		return err
	}
	if opts.RequiredEKU != nil {
		if err := checkRequiredEKU(ee, *opts.RequiredEKU); err != nil {
			return err
		}
	}
	if opts.Revocation != nil {
		links := buildRevocationLinks(path, anchor)
		if err := checkRevocation(opts.Revocation, links, opts.SupportedAlgs, now); err != nil {
			return err
		}
	}
	return nil
}

func checkRequiredEKU(ee *Cert, required der.OID) error {
	if ee.Extensions.ExtKeyUsage == nil {
		return nil
	}
	if ee.Extensions.ExtKeyUsage.Allows(required) {
		return nil
	}
	return ErrRequiredEkuNotFound
}

// checkNameConstraints checks every dNSName and iPAddress SAN entry
// against the accumulated constraints, falling back to the legacy
// subject commonName only when the certificate carries no SAN dNSName
// entries at all (RFC 6125 §6.4.4).
func checkNameConstraints(ee *Cert, constraints *NameConstraints) error {
	var sawDNS bool
	for _, name := range ee.Extensions.SAN {
		switch name.Tag {
		case GeneralNameDNS:
			sawDNS = true
			if err := constraints.CheckDNS(name.DNSName()); err != nil {
				return err
			}
		case GeneralNameIP:
			if len(constraints.PermittedIP) == 0 && len(constraints.ExcludedIP) == 0 {
				continue
			}
			if len(name.Value) != 4 && len(name.Value) != 16 {
				return ErrMalformedDnsIdentifier
			}
			if err := constraints.CheckIP(net.IP(name.Value)); err != nil {
				return err
			}
		}
	}
	if !sawDNS {
		if cn, ok := subjectCommonName(ee.Subject); ok {
			if err := constraints.CheckDNS(cn); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildRevocationLinks(path []*Cert, anchor *TrustAnchor) []revocationLink {
	links := make([]revocationLink, len(path))
	for i, cert := range path {
		var issuerSPKI SubjectPublicKeyInfo
		var issuerSubject []byte
		var issuerKeyUsage *KeyUsage
		if i+1 < len(path) {
			issuerSPKI = path[i+1].SPKI
			issuerSubject = path[i+1].Subject
			issuerKeyUsage = path[i+1].Extensions.KeyUsage
		} else {
			issuerSPKI = anchor.SPKI
			issuerSubject = anchor.Subject
			issuerKeyUsage = anchor.KeyUsage
		}
		links[i] = revocationLink{
			cert:           cert,
			issuerSubject:  issuerSubject,
			issuerSPKI:     issuerSPKI,
			issuerKeyUsage: issuerKeyUsage,
		}
	}
	return links
}

// mergeConstraints folds extra (a single certificate's NameConstraints
// extension, possibly nil) into base, returning a new value so that
// sibling branches in the depth-first search never alias each other's
// accumulated slices.
func mergeConstraints(base NameConstraints, extra *NameConstraints) NameConstraints {
	if extra == nil {
		return base
	}
	return NameConstraints{
		PermittedDNS: appendCopy(base.PermittedDNS, extra.PermittedDNS),
		ExcludedDNS:  appendCopy(base.ExcludedDNS, extra.ExcludedDNS),
		PermittedIP:  appendCopyIP(base.PermittedIP, extra.PermittedIP),
		ExcludedIP:   appendCopyIP(base.ExcludedIP, extra.ExcludedIP),
	}
}

func appendCopy(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func appendCopyIP(base, extra []IPNet) []IPNet {
	if len(extra) == 0 {
		return base
	}
	out := make([]IPNet, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// appendCert returns a new slice with cert appended after path, never
// aliasing path's backing array across sibling recursive calls. path
// is ordered end-entity-first, so the returned slice keeps path[i+1]
// as the certificate that issued path[i].
func appendCert(path []*Cert, cert *Cert) []*Cert {
	out := make([]*Cert, len(path), len(path)+1)
	copy(out, path)
	return append(out, cert)
}

func bytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }
