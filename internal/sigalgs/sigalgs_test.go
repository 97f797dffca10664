package sigalgs_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luoffei/webpki"
	"github.com/luoffei/webpki/internal/sigalgs"
)

func spkiFor(t *testing.T, pub any) webpki.SubjectPublicKeyInfo {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return webpki.SubjectPublicKeyInfo{DER: der}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	msg := []byte("hello webpki")
	sig := ed25519.Sign(priv, msg)

	var alg webpki.SignatureVerificationAlgorithm
	for _, a := range sigalgs.WebPKIDefaults() {
		if a.Matches("\x2b\x65\x70", nil) {
			alg = a
			break
		}
	}
	require.NotNil(t, alg)
	require.NoError(t, alg.Verify(spkiFor(t, pub), msg, sig))

	badSig := append([]byte{}, sig...)
	badSig[0] ^= 0xFF
	require.ErrorIs(t, alg.Verify(spkiFor(t, pub), msg, badSig), webpki.ErrInvalidSignatureForPublicKey)
}

func TestRSAPKCS1SHA256RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	msg := []byte("hello webpki")
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	var alg webpki.SignatureVerificationAlgorithm
	for _, a := range sigalgs.WebPKIDefaults() {
		// sha256WithRSAEncryption OID: 1.2.840.113549.1.1.11
		if a.Matches("\x2a\x86\x48\x86\xf7\x0d\x01\x01\x0b", nil) {
			alg = a
			break
		}
	}
	require.NotNil(t, alg)
	require.NoError(t, alg.Verify(spkiFor(t, &key.PublicKey), msg, sig))
}

func TestECDSAP256RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	msg := []byte("hello webpki")
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	var alg webpki.SignatureVerificationAlgorithm
	for _, a := range sigalgs.WebPKIDefaults() {
		// ecdsa-with-SHA256 OID: 1.2.840.10045.4.3.2
		if a.Matches("\x2a\x86\x48\xce\x3d\x04\x03\x02", nil) {
			alg = a
			break
		}
	}
	require.NotNil(t, alg)
	require.NoError(t, alg.Verify(spkiFor(t, &key.PublicKey), msg, sig))
}

func TestECDSAWrongCurveRejected(t *testing.T) {
	p384Key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	msg := []byte("hello webpki")
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, p384Key, digest[:])
	require.NoError(t, err)

	var alg webpki.SignatureVerificationAlgorithm
	for _, a := range sigalgs.WebPKIDefaults() {
		if a.Matches("\x2a\x86\x48\xce\x3d\x04\x03\x02", nil) {
			alg = a
			break
		}
	}
	require.NotNil(t, alg)
	err = alg.Verify(spkiFor(t, &p384Key.PublicKey), msg, sig)
	require.ErrorIs(t, err, webpki.ErrUnsupportedSignatureAlgorithmForPublicKey)
}
