package webpki

import "github.com/luoffei/webpki/der"

// Error is the closed taxonomy of reasons path validation, name
// matching, or signature verification can fail. Unlike most Go error
// types, Error also carries a total order (Rank) so that a verifier
// evaluating more than one candidate path can report the most
// diagnostically useful failure rather than whichever one happened to
// be tried first.
type Error string

const (
	ErrBadDer                                       Error = "bad DER"
	ErrBadDerTime                                    Error = "bad DER time"
	ErrCaUsedAsEndEntity                             Error = "CA certificate used as an end-entity certificate"
	ErrCertExpired                                   Error = "certificate has expired"
	ErrCertNotValidForName                           Error = "certificate is not valid for the requested name"
	ErrCertNotValidYet                               Error = "certificate is not valid yet"
	ErrCertRevoked                                   Error = "certificate has been revoked"
	ErrEndEntityUsedAsCa                             Error = "end-entity certificate used as a CA certificate"
	ErrExtensionValueInvalid                         Error = "extension value invalid"
	ErrInvalidCertValidity                           Error = "invalid certificate validity period"
	ErrInvalidCrlNumber                              Error = "invalid CRL number"
	ErrInvalidCrlSignatureForPublicKey               Error = "invalid CRL signature for public key"
	ErrInvalidNetworkMaskConstraint                  Error = "invalid network mask in name constraint"
	ErrInvalidSerialNumber                           Error = "invalid serial number"
	ErrInvalidSignatureForPublicKey                  Error = "invalid signature for public key"
	ErrIssuerNotCrlSigner                            Error = "issuer does not have the cRLSign key usage bit"
	ErrMalformedDnsIdentifier                        Error = "malformed DNS identifier"
	ErrMalformedExtensions                           Error = "malformed extensions"
	ErrMalformedNameConstraint                       Error = "malformed name constraint"
	ErrMaximumSignatureChecksExceeded                Error = "maximum signature check budget exceeded"
	ErrNameConstraintViolation                       Error = "name constraint violation"
	ErrPathLenConstraintViolated                     Error = "pathLenConstraint violated"
	ErrRequiredEkuNotFound                           Error = "required EKU not found"
	ErrSignatureAlgorithmMismatch                    Error = "signature algorithm mismatch"
	ErrTrailingData                                  Error = "trailing data"
	ErrUnknownIssuer                                 Error = "unknown issuer"
	ErrUnknownRevocationStatus                       Error = "certificate revocation status could not be determined"
	ErrUnsupportedCertVersion                        Error = "unsupported certificate version"
	ErrUnsupportedCriticalExtension                  Error = "unsupported critical extension"
	ErrUnsupportedCrlIssuingDistributionPoint        Error = "unsupported CRL issuing distribution point"
	ErrUnsupportedCrlSignatureAlgorithm               Error = "unsupported CRL signature algorithm"
	ErrUnsupportedCrlSignatureAlgorithmForPublicKey   Error = "unsupported CRL signature algorithm for public key"
	ErrUnsupportedCrlVersion                          Error = "unsupported CRL version"
	ErrUnsupportedDeltaCrl                            Error = "unsupported delta CRL"
	ErrUnsupportedIndirectCrl                         Error = "unsupported indirect CRL"
	ErrUnsupportedRevocationReason                    Error = "unsupported revocation reason"
	ErrUnsupportedRevocationReasonsPartitioning       Error = "unsupported revocation reasons partitioning"
	ErrUnsupportedSignatureAlgorithm                  Error = "unsupported signature algorithm"
	ErrUnsupportedSignatureAlgorithmForPublicKey      Error = "unsupported signature algorithm for public key"
)

func (e Error) Error() string { return string(e) }

// TrailingDataError wraps a der.Kind identifying which structure had
// unconsumed bytes. It behaves as ErrTrailingData for errors.Is.
type TrailingDataError struct {
	Kind der.Kind
}

func (e *TrailingDataError) Error() string { return (&der.TrailingDataError{K: e.Kind}).Error() }

func (e *TrailingDataError) Is(target error) bool { return target == ErrTrailingData }

// rank assigns each Error kind its position in the specificity total
// order. The numbering and groupings mirror the original Rust source's
// Error::rank exactly: validity errors rank highest, generic DER
// parsing errors rank lowest, and UnknownIssuer / budget exhaustion
// share rank 0 as the catch-all terminal outcomes.
func (e Error) rank() uint32 {
	switch e {
	case ErrCertNotValidYet, ErrCertExpired:
		return 29
	case ErrCertNotValidForName:
		return 28
	case ErrCertRevoked, ErrUnknownRevocationStatus:
		return 27
	case ErrInvalidCrlSignatureForPublicKey, ErrInvalidSignatureForPublicKey:
		return 26
	case ErrSignatureAlgorithmMismatch:
		return 25
	case ErrRequiredEkuNotFound:
		return 24
	case ErrNameConstraintViolation:
		return 23
	case ErrPathLenConstraintViolated:
		return 22
	case ErrCaUsedAsEndEntity, ErrEndEntityUsedAsCa:
		return 21
	case ErrIssuerNotCrlSigner:
		return 20
	case ErrInvalidCertValidity:
		return 19
	case ErrInvalidNetworkMaskConstraint:
		return 18
	case ErrInvalidSerialNumber:
		return 17
	case ErrInvalidCrlNumber:
		return 16
	case ErrUnsupportedCrlSignatureAlgorithmForPublicKey, ErrUnsupportedSignatureAlgorithmForPublicKey:
		return 15
	case ErrUnsupportedCrlSignatureAlgorithm, ErrUnsupportedSignatureAlgorithm:
		return 14
	case ErrUnsupportedCriticalExtension, ErrUnsupportedCertVersion:
		return 13
	case ErrUnsupportedCrlVersion:
		return 12
	case ErrUnsupportedDeltaCrl:
		return 11
	case ErrUnsupportedIndirectCrl:
		return 10
	case ErrUnsupportedRevocationReason:
		return 9
	case ErrUnsupportedRevocationReasonsPartitioning:
		return 8
	case ErrUnsupportedCrlIssuingDistributionPoint:
		return 7
	case ErrMalformedDnsIdentifier:
		return 6
	case ErrMalformedNameConstraint:
		return 5
	case ErrMalformedExtensions, ErrTrailingData:
		return 4
	case ErrExtensionValueInvalid:
		return 3
	case ErrBadDerTime:
		return 2
	case ErrBadDer:
		return 1
	// ErrMaximumSignatureChecksExceeded and ErrUnknownIssuer are both
	// rank 0: the terminal, least-specific outcomes. Neither should
	// mask a more specific diagnosis found on another branch.
	default:
		return 0
	}
}

// Rank reports e's position in the most-to-least-specific total order.
// A higher rank means a more specific, more actionable diagnostic.
func (e Error) Rank() uint32 { return e.rank() }

// MostSpecific returns whichever of a and b carries the higher rank,
// preferring a on a tie. Errors are normalized to type Error (or
// *TrailingDataError, which ranks as ErrTrailingData) before
// comparison; anything unrecognized is treated as rank 0.
func MostSpecific(a, b error) error {
	if normalize(a).Rank() >= normalize(b).Rank() {
		return a
	}
	return b
}

// normalize maps err onto the closed Error taxonomy for ranking
// purposes.
func normalize(err error) Error {
	if e, ok := err.(Error); ok {
		return e
	}
	if _, ok := err.(*TrailingDataError); ok {
		return ErrTrailingData
	}
	if err == der.ErrBadDER {
		return ErrBadDer
	}
	if _, ok := err.(*der.TrailingDataError); ok {
		return ErrTrailingData
	}
	return ErrUnknownIssuer
}
