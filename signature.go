package webpki

import "github.com/luoffei/webpki/der"

// SubjectPublicKeyInfo is the algorithm identifier and public-key
// bytes carried by a certificate, kept in DER-encoded SPKI form (the
// full SubjectPublicKeyInfo SEQUENCE) so that an injected
// SignatureVerificationAlgorithm can parse it with whatever crypto
// library it prefers.
type SubjectPublicKeyInfo struct {
	AlgorithmOID der.OID
	Parameters   []byte
	DER          []byte
}

// SignatureVerificationAlgorithm is the abstract capability the path
// builder and the end-entity facade delegate raw signature math to.
// The core never names a crypto library; concrete implementations
// live in collaborator packages (see internal/sigalgs) and are
// injected by the caller as a slice of supported algorithms.
type SignatureVerificationAlgorithm interface {
	// Matches reports whether this algorithm handles the signature
	// algorithm identified by the TBS/outer signatureAlgorithm's OID
	// and (possibly empty) parameters, e.g. distinguishing
	// RSASSA-PSS-with-SHA-256 from RSASSA-PSS-with-SHA-384 by the
	// encoded hashAlgorithm inside shared RSASSA-PSS parameters.
	Matches(oid der.OID, params []byte) bool

	// Verify reports whether signature is a valid signature over msg
	// under the public key described by spki. It must itself reject
	// an spki whose algorithm is incompatible with this verifier.
	Verify(spki SubjectPublicKeyInfo, msg, signature []byte) error
}

// verifyWithSupportedAlgs finds the first supplied algorithm whose
// Matches accepts (sigOID, sigParams) and delegates signature
// verification to it. Per spec §4.5, a signature algorithm with no
// matching supported verifier is ErrUnsupportedSignatureAlgorithm, not
// a silent skip.
func verifyWithSupportedAlgs(algs []SignatureVerificationAlgorithm, sigOID der.OID, sigParams []byte, spki SubjectPublicKeyInfo, msg, signature []byte) error {
	for _, alg := range algs {
		if alg.Matches(sigOID, sigParams) {
			return alg.Verify(spki, msg, signature)
		}
	}
	return ErrUnsupportedSignatureAlgorithm
}
