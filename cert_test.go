package webpki_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luoffei/webpki"
)

// derASN1 are small hand-rolled DER builders used to assemble
// certificates byte-by-byte for tests, rather than depending on an
// encoder the tests are themselves validating.

func tlv(tag byte, content []byte) []byte {
	out := []byte{tag}
	out = append(out, derLength(len(content))...)
	return append(out, content...)
}

func derLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xFF)}, b...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(b))}, b...)
}

func seq(parts ...[]byte) []byte {
	var content []byte
	for _, p := range parts {
		content = append(content, p...)
	}
	return tlv(0x30, content)
}

func oidBytes(raw string) []byte { return tlv(0x06, []byte(raw)) }

func asn1Bool(v bool) []byte {
	if v {
		return tlv(0x01, []byte{0xFF})
	}
	return tlv(0x01, []byte{0x00})
}

func asn1Int(n int64) []byte {
	b := big.NewInt(n).Bytes()
	if len(b) == 0 {
		b = []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	return tlv(0x02, b)
}

func explicit(tagNum byte, inner []byte) []byte {
	return tlv(0xA0|tagNum, inner)
}

func utcTime(s string) []byte { return tlv(0x17, []byte(s)) }

func bitStringNoUnused(content []byte) []byte {
	return tlv(0x03, append([]byte{0x00}, content...))
}

const dnPlaceholder = "\x30\x00" // empty SEQUENCE used as a stand-in Name

// buildTBS assembles a minimal v3 TBSCertificate signed with Ed25519,
// with the given extensions content appended verbatim inside the [3]
// EXPLICIT Extensions wrapper (already SEQUENCE-of-Extension encoded).
func buildTBS(pub ed25519.PublicKey, isCA bool, extraExtensions [][]byte) []byte {
	spkiAlgOID := oidBytes("\x2b\x65\x70") // Ed25519
	spkiAlgID := seq(spkiAlgOID)
	spki := seq(spkiAlgID, bitStringNoUnused(pub))

	sigAlgID := seq(oidBytes("\x2b\x65\x70"))

	basicConstraints := seq(asn1Bool(isCA))
	bcExt := seq(oidBytes("\x55\x1d\x13"), asn1Bool(true), tlv(0x04, basicConstraints))

	exts := append([][]byte{bcExt}, extraExtensions...)
	extSeq := seq(exts...)

	version := explicit(0, asn1Int(2))
	serial := asn1Int(1)
	issuer := []byte(dnPlaceholder)
	validity := seq(utcTime("200101000000Z"), utcTime("300101000000Z"))
	subject := []byte(dnPlaceholder)

	return seq(
		version,
		serial,
		sigAlgID,
		issuer,
		validity,
		subject,
		spki,
		explicit(3, extSeq),
	)
}

func signAndWrap(tbs []byte, priv ed25519.PrivateKey) []byte {
	sig := ed25519.Sign(priv, tbs)
	sigAlgID := seq(oidBytes("\x2b\x65\x70"))
	return seq(tbs, sigAlgID, bitStringNoUnused(sig))
}

func makeCert(t *testing.T, isCA bool, extraExtensions [][]byte) ([]byte, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tbs := buildTBS(pub, isCA, extraExtensions)
	return signAndWrap(tbs, priv), pub
}

func TestParseCertificateEndEntity(t *testing.T) {
	raw, pub := makeCert(t, false, nil)
	cert, err := webpki.ParseCertificate(raw, webpki.EndEntity)
	require.NoError(t, err)
	require.False(t, cert.IsCA())
	require.Equal(t, big.NewInt(1), cert.SerialNumber)

	gotPub, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	require.Equal(t, gotPub, cert.SPKI.DER)
}

func TestParseCertificateCA(t *testing.T) {
	raw, _ := makeCert(t, true, nil)
	cert, err := webpki.ParseCertificate(raw, webpki.CA)
	require.NoError(t, err)
	require.True(t, cert.IsCA())
}

func TestParseCertificateCAUsedAsEndEntity(t *testing.T) {
	raw, _ := makeCert(t, true, nil)
	_, err := webpki.ParseCertificate(raw, webpki.EndEntity)
	require.ErrorIs(t, err, webpki.ErrCaUsedAsEndEntity)
}

func TestParseCertificateEndEntityUsedAsCA(t *testing.T) {
	raw, _ := makeCert(t, false, nil)
	_, err := webpki.ParseCertificate(raw, webpki.CA)
	require.ErrorIs(t, err, webpki.ErrEndEntityUsedAsCa)
}

func TestParseCertificateInvalidValidity(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	spkiAlgID := seq(oidBytes("\x2b\x65\x70"))
	spki := seq(spkiAlgID, bitStringNoUnused(pub))
	bcExt := seq(oidBytes("\x55\x1d\x13"), asn1Bool(true), tlv(0x04, seq(asn1Bool(false))))
	extSeq := seq(bcExt)
	tbs := seq(
		explicit(0, asn1Int(2)),
		asn1Int(1),
		seq(oidBytes("\x2b\x65\x70")),
		[]byte(dnPlaceholder),
		seq(utcTime("300101000000Z"), utcTime("200101000000Z")), // notBefore > notAfter
		[]byte(dnPlaceholder),
		spki,
		explicit(3, extSeq),
	)
	raw := signAndWrap(tbs, priv)
	_, err = webpki.ParseCertificate(raw, webpki.EndEntity)
	require.ErrorIs(t, err, webpki.ErrInvalidCertValidity)
}

func TestParseCertificateUnsupportedVersion(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	spkiAlgID := seq(oidBytes("\x2b\x65\x70"))
	spki := seq(spkiAlgID, bitStringNoUnused(pub))
	bcExt := seq(oidBytes("\x55\x1d\x13"), asn1Bool(true), tlv(0x04, seq(asn1Bool(false))))
	tbs := seq(
		// no version field: defaults to v1, which this module rejects.
		asn1Int(1),
		seq(oidBytes("\x2b\x65\x70")),
		[]byte(dnPlaceholder),
		seq(utcTime("200101000000Z"), utcTime("300101000000Z")),
		[]byte(dnPlaceholder),
		spki,
		explicit(3, seq(bcExt)),
	)
	raw := signAndWrap(tbs, priv)
	_, err = webpki.ParseCertificate(raw, webpki.EndEntity)
	require.ErrorIs(t, err, webpki.ErrUnsupportedCertVersion)
}

func TestParseCertificateUnsupportedCriticalExtension(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	unknownExt := seq(oidBytes("\x2a\x03\x04\x05"), asn1Bool(true), tlv(0x04, []byte{0x05, 0x00}))
	raw := signAndWrap(buildTBSWithExt(t, pub, false, unknownExt), priv)
	_, err = webpki.ParseCertificate(raw, webpki.EndEntity)
	require.ErrorIs(t, err, webpki.ErrUnsupportedCriticalExtension)
}

func buildTBSWithExt(t *testing.T, pub ed25519.PublicKey, isCA bool, ext []byte) []byte {
	t.Helper()
	return buildTBS(pub, isCA, [][]byte{ext})
}

func TestParseCertificateKeyUsageAndEKU(t *testing.T) {
	kuBits := []byte{0x80} // digitalSignature only
	kuExt := seq(oidBytes("\x55\x1d\x0f"), tlv(0x04, bitStringNoUnusedWithUnused(kuBits, 7)))
	ekuOIDs := seq(oidBytes("\x2b\x06\x01\x05\x05\x07\x03\x01")) // serverAuth
	ekuExt := seq(oidBytes("\x55\x1d\x25"), tlv(0x04, ekuOIDs))

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tbs := buildTBS(pub, false, [][]byte{kuExt, ekuExt})
	raw := signAndWrap(tbs, priv)

	cert, err := webpki.ParseCertificate(raw, webpki.EndEntity)
	require.NoError(t, err)
	require.NotNil(t, cert.Extensions.KeyUsage)
	require.True(t, cert.Extensions.KeyUsage.Has(webpki.KeyUsageDigitalSignature))
	require.False(t, cert.Extensions.KeyUsage.Has(webpki.KeyUsageCertSign))
	require.NotNil(t, cert.Extensions.ExtKeyUsage)
	require.True(t, cert.Extensions.ExtKeyUsage.Allows(webpki.EKUServerAuth))
	require.False(t, cert.Extensions.ExtKeyUsage.Allows(webpki.EKUClientAuth))
}

func bitStringNoUnusedWithUnused(content []byte, unused byte) []byte {
	return tlv(0x03, append([]byte{unused}, content...))
}

func TestParseCertificateSAN(t *testing.T) {
	dns1 := tlv(0x82, []byte("example.com"))
	dns2 := tlv(0x82, []byte("www.example.com"))
	sanExt := seq(oidBytes("\x55\x1d\x11"), tlv(0x04, seq(dns1, dns2)))

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tbs := buildTBS(pub, false, [][]byte{sanExt})
	raw := signAndWrap(tbs, priv)

	cert, err := webpki.ParseCertificate(raw, webpki.EndEntity)
	require.NoError(t, err)
	require.Len(t, cert.Extensions.SAN, 2)
	require.Equal(t, webpki.GeneralNameDNS, cert.Extensions.SAN[0].Tag)
	require.Equal(t, "example.com", cert.Extensions.SAN[0].DNSName())
	require.Equal(t, "www.example.com", cert.Extensions.SAN[1].DNSName())
}
