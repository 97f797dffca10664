// Package sigalgs supplies the concrete SignatureVerificationAlgorithm
// implementations webpki's core leaves abstract: RSA-PKCS1, RSA-PSS,
// ECDSA, and Ed25519, all built on the standard library's crypto
// packages and crypto/x509's SubjectPublicKeyInfo parser.
package sigalgs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	_ "crypto/sha256" // register SHA-224/256 with crypto.Hash
	_ "crypto/sha512" // register SHA-384/512 with crypto.Hash

	"github.com/luoffei/webpki"
	"github.com/luoffei/webpki/der"
)

var (
	oidSHA256WithRSA   = der.OID([]byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0b})
	oidSHA384WithRSA   = der.OID([]byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0c})
	oidSHA512WithRSA   = der.OID([]byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0d})
	oidRSASSAPSS       = der.OID([]byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0a})
	oidSHA256          = der.OID([]byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01})
	oidSHA384          = der.OID([]byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02})
	oidSHA512          = der.OID([]byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03})
	oidECDSAWithSHA256 = der.OID([]byte{0x2a, 0x86, 0x48, 0xce, 0x3d, 0x04, 0x03, 0x02})
	oidECDSAWithSHA384 = der.OID([]byte{0x2a, 0x86, 0x48, 0xce, 0x3d, 0x04, 0x03, 0x03})
	oidEd25519         = der.OID([]byte{0x2b, 0x65, 0x70})
)

type rsaPKCS1 struct {
	oid  der.OID
	hash crypto.Hash
}

func (a rsaPKCS1) Matches(oid der.OID, _ []byte) bool { return oid.Equal(a.oid) }

func (a rsaPKCS1) Verify(spki webpki.SubjectPublicKeyInfo, msg, signature []byte) error {
	pub, err := parseRSAPublicKey(spki)
	if err != nil {
		return err
	}
	digest, err := digestOf(a.hash, msg)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, a.hash, digest, signature); err != nil {
		return webpki.ErrInvalidSignatureForPublicKey
	}
	return nil
}

type rsaPSS struct {
	hash crypto.Hash
}

func (a rsaPSS) Matches(oid der.OID, params []byte) bool {
	if !oid.Equal(oidRSASSAPSS) {
		return false
	}
	hashOID, ok := pssHashOID(params)
	if !ok {
		return false
	}
	return hashOID.Equal(hashOIDFor(a.hash))
}

func (a rsaPSS) Verify(spki webpki.SubjectPublicKeyInfo, msg, signature []byte) error {
	pub, err := parseRSAPublicKey(spki)
	if err != nil {
		return err
	}
	digest, err := digestOf(a.hash, msg)
	if err != nil {
		return err
	}
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: a.hash}
	if err := rsa.VerifyPSS(pub, a.hash, digest, signature, opts); err != nil {
		return webpki.ErrInvalidSignatureForPublicKey
	}
	return nil
}

type ecdsaAlg struct {
	oid       der.OID
	hash      crypto.Hash
	curveBits int
}

func (a ecdsaAlg) Matches(oid der.OID, _ []byte) bool { return oid.Equal(a.oid) }

func (a ecdsaAlg) Verify(spki webpki.SubjectPublicKeyInfo, msg, signature []byte) error {
	pub, err := x509.ParsePKIXPublicKey(spki.DER)
	if err != nil {
		return webpki.ErrBadDer
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return webpki.ErrUnsupportedSignatureAlgorithmForPublicKey
	}
	if ecPub.Curve.Params().BitSize != a.curveBits {
		return webpki.ErrUnsupportedSignatureAlgorithmForPublicKey
	}
	digest, err := digestOf(a.hash, msg)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(ecPub, digest, signature) {
		return webpki.ErrInvalidSignatureForPublicKey
	}
	return nil
}

type ed25519Alg struct{}

func (ed25519Alg) Matches(oid der.OID, _ []byte) bool { return oid.Equal(oidEd25519) }

func (ed25519Alg) Verify(spki webpki.SubjectPublicKeyInfo, msg, signature []byte) error {
	pub, err := x509.ParsePKIXPublicKey(spki.DER)
	if err != nil {
		return webpki.ErrBadDer
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return webpki.ErrUnsupportedSignatureAlgorithmForPublicKey
	}
	if !ed25519.Verify(edPub, msg, signature) {
		return webpki.ErrInvalidSignatureForPublicKey
	}
	return nil
}

func parseRSAPublicKey(spki webpki.SubjectPublicKeyInfo) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(spki.DER)
	if err != nil {
		return nil, webpki.ErrBadDer
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, webpki.ErrUnsupportedSignatureAlgorithmForPublicKey
	}
	return rsaPub, nil
}

func digestOf(hash crypto.Hash, msg []byte) ([]byte, error) {
	if !hash.Available() {
		return nil, webpki.ErrUnsupportedSignatureAlgorithm
	}
	h := hash.New()
	h.Write(msg)
	return h.Sum(nil), nil
}

func hashOIDFor(hash crypto.Hash) der.OID {
	switch hash {
	case crypto.SHA256:
		return oidSHA256
	case crypto.SHA384:
		return oidSHA384
	case crypto.SHA512:
		return oidSHA512
	default:
		return ""
	}
}

// pssHashOID extracts the hashAlgorithm OID from an RSASSA-PSS-params
// SEQUENCE (RFC 4055 §3.1). The hashAlgorithm field is wrapped in an
// explicit context tag [0] and defaults to SHA-1 when absent; since
// this module never treats SHA-1 as supported, absent params simply
// fail to match any configured algorithm.
func pssHashOID(params []byte) (der.OID, bool) {
	if len(params) == 0 {
		return "", false
	}
	pssParams, err := der.NewReader(params).Expect(der.TagSequence)
	if err != nil {
		return "", false
	}
	oid, ok, err := der.ReadOptional(pssParams, der.ContextConstructed0, func(sub *der.Reader) (der.OID, error) {
		return der.ReadNested(sub, der.TagSequence, der.KindSignatureAlgorithm, func(alg *der.Reader) (der.OID, error) {
			oid, err := der.ReadOID(alg)
			alg.ReadRemaining() // hash parameters (absent or NULL), unused.
			return oid, err
		})
	})
	if err != nil || !ok {
		return "", false
	}
	return oid, true
}

// WebPKIDefaults returns the full set of signature-verification
// algorithms this module implements, in the order a typical Web PKI
// deployment would want them tried.
func WebPKIDefaults() []webpki.SignatureVerificationAlgorithm {
	return []webpki.SignatureVerificationAlgorithm{
		ecdsaAlg{oid: oidECDSAWithSHA256, hash: crypto.SHA256, curveBits: 256},
		ecdsaAlg{oid: oidECDSAWithSHA384, hash: crypto.SHA384, curveBits: 384},
		ed25519Alg{},
		rsaPKCS1{oid: oidSHA256WithRSA, hash: crypto.SHA256},
		rsaPKCS1{oid: oidSHA384WithRSA, hash: crypto.SHA384},
		rsaPKCS1{oid: oidSHA512WithRSA, hash: crypto.SHA512},
		rsaPSS{hash: crypto.SHA256},
		rsaPSS{hash: crypto.SHA384},
		rsaPSS{hash: crypto.SHA512},
	}
}
