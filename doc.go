// Package webpki validates X.509 certification paths against a set of
// trust anchors, independent of any particular transport or trust
// store. It decodes DER certificates and CRLs itself (see the der
// subpackage) rather than delegating to crypto/x509's parser, and
// delegates signature math to an injected SignatureVerificationAlgorithm
// so the core has no hard dependency on a specific crypto library.
//
// A typical caller parses an end-entity certificate with
// NewEndEntityCert, builds a ChainOptions naming its trust anchors and
// supported signature algorithms, and calls VerifyForUsage followed by
// VerifyIsValidForSubjectName.
package webpki
