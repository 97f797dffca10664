package webpki

import (
	"math/big"

	"github.com/luoffei/webpki/der"
)

// EndEntityOrCa distinguishes the two roles a parsed certificate can be
// asked to play: a leaf presented as the subject of a connection, or an
// intermediate/root used to verify another certificate's signature.
// ParseCertificate checks basicConstraints against the requested role
// immediately, so a confused-deputy certificate is rejected as soon as
// it's parsed rather than somewhere deep in path building.
type EndEntityOrCa int

const (
	EndEntity EndEntityOrCa = iota
	CA
)

// BasicConstraints is the decoded basicConstraints extension (RFC 5280
// §4.2.1.9). Absent means "not present"; Present distinguishes that
// from an explicit cA=FALSE.
type BasicConstraints struct {
	Present           bool
	IsCA              bool
	PathLenConstraint *int
}

// Extensions holds the subset of X.509v3 extensions this module acts
// on. Any other extension is recognized only well enough to honor its
// criticality bit (see applyExtension).
type Extensions struct {
	BasicConstraints BasicConstraints
	KeyUsage         *KeyUsage
	ExtKeyUsage      *ExtKeyUsage
	SAN              []GeneralName
	NameConstraints  *NameConstraints
}

// Cert is the parsed view of an X.509 certificate: every field path
// validation, name matching, and signature verification need, with the
// raw bytes retained wherever a signature is computed over them.
type Cert struct {
	Raw  []byte
	Role EndEntityOrCa

	SerialNumber *big.Int
	SerialRaw    []byte

	TBSSignatureOID    der.OID
	TBSSignatureParams []byte

	Issuer  []byte // raw Name SEQUENCE bytes
	Subject []byte // raw Name SEQUENCE bytes

	NotBefore Time
	NotAfter  Time

	SPKI SubjectPublicKeyInfo

	Extensions Extensions

	OuterSignatureOID    der.OID
	OuterSignatureParams []byte
	SignatureValue       []byte

	TBSRaw []byte
}

// IsCA reports whether the certificate is usable as an intermediate or
// trust anchor: basicConstraints must be present with cA=TRUE. A
// certificate with no basicConstraints extension is never a CA,
// regardless of role.
func (c *Cert) IsCA() bool { return c.Extensions.BasicConstraints.Present && c.Extensions.BasicConstraints.IsCA }

// ParseCertificate decodes a DER-encoded X.509 certificate and checks
// it against the role it is being parsed for: an end-entity
// certificate whose basicConstraints claims cA=TRUE is
// ErrCaUsedAsEndEntity, and (when role is CA) a certificate with no
// CA basicConstraints is ErrEndEntityUsedAsCa.
func ParseCertificate(raw []byte, role EndEntityOrCa) (*Cert, error) {
	r := der.NewReader(raw)
	cert, err := der.ReadNested(r, der.TagSequence, der.KindCertificate, func(outer *der.Reader) (*Cert, error) {
		tbsRaw, err := outer.ReadRawTLV()
		if err != nil {
			return nil, err
		}
		cert, err := parseTBS(tbsRaw, role)
		if err != nil {
			return nil, err
		}
		sigOID, sigParams, err := readAlgorithmIdentifier(outer)
		if err != nil {
			return nil, err
		}
		sigValue, err := der.ReadBitString(outer)
		if err != nil {
			return nil, err
		}
		cert.OuterSignatureOID = sigOID
		cert.OuterSignatureParams = sigParams
		cert.SignatureValue = sigValue
		cert.TBSRaw = tbsRaw
		return cert, nil
	})
	if err != nil {
		return nil, err
	}
	if !cert.TBSSignatureOID.Equal(cert.OuterSignatureOID) {
		return nil, ErrSignatureAlgorithmMismatch
	}
	cert.Raw = raw
	if err := checkRole(cert, role); err != nil {
		return nil, err
	}
	return cert, nil
}

func checkRole(cert *Cert, role EndEntityOrCa) error {
	switch role {
	case EndEntity:
		if cert.IsCA() {
			return ErrCaUsedAsEndEntity
		}
	case CA:
		if !cert.IsCA() {
			return ErrEndEntityUsedAsCa
		}
	}
	return nil
}

// parseTBS decodes a TBSCertificate SEQUENCE (the signed portion of a
// certificate).
//
//	TBSCertificate ::= SEQUENCE {
//	    version         [0] EXPLICIT INTEGER DEFAULT v1,
//	    serialNumber        INTEGER,
//	    signature           AlgorithmIdentifier,
//	    issuer              Name,
//	    validity            Validity,
//	    subject             Name,
//	    subjectPublicKeyInfo SubjectPublicKeyInfo,
//	    issuerUniqueID  [1] IMPLICIT BIT STRING OPTIONAL,
//	    subjectUniqueID [2] IMPLICIT BIT STRING OPTIONAL,
//	    extensions      [3] EXPLICIT Extensions OPTIONAL }
//
// Only v3 (encoded version value 2) is accepted: v1/v2 certificates
// cannot carry the extensions this module requires (basicConstraints,
// keyUsage, SAN) and are rejected as ErrUnsupportedCertVersion.
func parseTBS(tbsRaw []byte, role EndEntityOrCa) (*Cert, error) {
	r := der.NewReader(tbsRaw)
	return der.ReadNested(r, der.TagSequence, der.KindTBSCertificate, func(inner *der.Reader) (*Cert, error) {
		version, hasVersion, err := der.ReadOptional(inner, der.ContextConstructed0, func(sub *der.Reader) (*big.Int, error) {
			return der.ReadInteger(sub)
		})
		if err != nil {
			return nil, err
		}
		if !hasVersion || version.Cmp(big.NewInt(2)) != 0 {
			return nil, ErrUnsupportedCertVersion
		}

		serial, serialRaw, err := der.ReadSerialNumber(inner)
		if err != nil {
			if der.IsInvalidSerialNumber(err) {
				return nil, ErrInvalidSerialNumber
			}
			return nil, err
		}

		sigOID, sigParams, err := readAlgorithmIdentifier(inner)
		if err != nil {
			return nil, err
		}

		issuer, err := inner.ReadRawTLV()
		if err != nil {
			return nil, err
		}

		notBefore, notAfter, err := readValidity(inner)
		if err != nil {
			return nil, err
		}

		subject, err := inner.ReadRawTLV()
		if err != nil {
			return nil, err
		}

		spki, err := readSPKI(inner)
		if err != nil {
			return nil, err
		}

		// issuerUniqueID / subjectUniqueID: ignored by this module, but
		// still need to be consumed so extensions parses from the right
		// offset.
		if _, _, err := der.ReadOptional(inner, der.Tag(0x81), func(sub *der.Reader) (struct{}, error) {
			sub.ReadRemaining()
			return struct{}{}, nil
		}); err != nil {
			return nil, err
		}
		if _, _, err := der.ReadOptional(inner, der.Tag(0x82), func(sub *der.Reader) (struct{}, error) {
			sub.ReadRemaining()
			return struct{}{}, nil
		}); err != nil {
			return nil, err
		}

		exts, err := readExtensions(inner)
		if err != nil {
			return nil, err
		}

		if notBefore.After(notAfter) {
			return nil, ErrInvalidCertValidity
		}

		return &Cert{
			Role:               role,
			SerialNumber:       serial,
			SerialRaw:          serialRaw,
			TBSSignatureOID:    sigOID,
			TBSSignatureParams: sigParams,
			Issuer:             issuer,
			Subject:            subject,
			NotBefore:          notBefore,
			NotAfter:           notAfter,
			SPKI:               spki,
			Extensions:         exts,
		}, nil
	})
}

// readAlgorithmIdentifier decodes an AlgorithmIdentifier SEQUENCE
// (algorithm OID plus opaque, algorithm-dependent parameters).
func readAlgorithmIdentifier(r *der.Reader) (der.OID, []byte, error) {
	type algID struct {
		oid    der.OID
		params []byte
	}
	id, err := der.ReadNested(r, der.TagSequence, der.KindSignatureAlgorithm, func(sub *der.Reader) (algID, error) {
		oid, err := der.ReadOID(sub)
		if err != nil {
			return algID{}, err
		}
		return algID{oid: oid, params: sub.ReadRemaining()}, nil
	})
	if err != nil {
		return "", nil, err
	}
	return id.oid, id.params, nil
}

func readValidity(r *der.Reader) (Time, Time, error) {
	type validity struct {
		notBefore, notAfter Time
	}
	v, err := der.ReadNested(r, der.TagSequence, der.KindValidity, func(sub *der.Reader) (validity, error) {
		nb, err := readTimeFromDER(sub)
		if err != nil {
			return validity{}, err
		}
		na, err := readTimeFromDER(sub)
		if err != nil {
			return validity{}, err
		}
		return validity{notBefore: nb, notAfter: na}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return v.notBefore, v.notAfter, nil
}

func readSPKI(r *der.Reader) (SubjectPublicKeyInfo, error) {
	raw, err := r.ReadRawTLV()
	if err != nil {
		return SubjectPublicKeyInfo{}, err
	}
	sub := der.NewReader(raw)
	var spki SubjectPublicKeyInfo
	_, err = der.ReadNested(sub, der.TagSequence, der.KindSubjectPublicKeyInfo, func(body *der.Reader) (struct{}, error) {
		oid, params, err := readAlgorithmIdentifier(body)
		if err != nil {
			return struct{}{}, err
		}
		if _, err := der.ReadBitString(body); err != nil {
			return struct{}{}, err
		}
		spki.AlgorithmOID = oid
		spki.Parameters = params
		return struct{}{}, nil
	})
	if err != nil {
		return SubjectPublicKeyInfo{}, err
	}
	spki.DER = raw
	return spki, nil
}

func readExtensions(r *der.Reader) (Extensions, error) {
	var exts Extensions
	_, _, err := der.ReadOptional(r, der.ContextConstructed3, func(sub *der.Reader) (struct{}, error) {
		return struct{}{}, der.ReadSequenceOf(sub, der.KindCertificateExtensions, func(item *der.Reader) error {
			return parseOneExtension(item, &exts)
		})
	})
	if err != nil {
		return Extensions{}, err
	}
	return exts, nil
}

// parseOneExtension decodes a single Extension SEQUENCE:
//
//	Extension ::= SEQUENCE {
//	    extnID      OBJECT IDENTIFIER,
//	    critical    BOOLEAN DEFAULT FALSE,
//	    extnValue   OCTET STRING }
func parseOneExtension(r *der.Reader, out *Extensions) error {
	_, err := der.ReadNested(r, der.TagSequence, der.KindExtension, func(sub *der.Reader) (struct{}, error) {
		oid, err := der.ReadOID(sub)
		if err != nil {
			return struct{}{}, err
		}
		critical, _, err := der.ReadOptional(sub, der.TagBoolean, func(s *der.Reader) (bool, error) {
			b := s.ReadRemaining()
			if len(b) != 1 {
				return false, ErrBadDer
			}
			switch b[0] {
			case 0x00:
				return false, nil
			case 0xFF:
				return true, nil
			default:
				return false, ErrBadDer
			}
		})
		if err != nil {
			return struct{}{}, err
		}
		value, err := der.ReadOctetString(sub)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, applyExtension(out, oid, critical, value)
	})
	return err
}

func applyExtension(out *Extensions, oid der.OID, critical bool, value []byte) error {
	switch {
	case oid.Equal(oidBasicConstraints):
		bc, err := parseBasicConstraints(value)
		if err != nil {
			return err
		}
		out.BasicConstraints = bc
	case oid.Equal(oidKeyUsage):
		ku, err := parseKeyUsage(value)
		if err != nil {
			return err
		}
		out.KeyUsage = &ku
	case oid.Equal(oidExtKeyUsage):
		eku, err := parseExtKeyUsage(value)
		if err != nil {
			return err
		}
		out.ExtKeyUsage = &eku
	case oid.Equal(oidSubjectAltName):
		names, err := parseGeneralNames(value)
		if err != nil {
			return err
		}
		out.SAN = names
	case oid.Equal(oidNameConstraints):
		nc, err := parseNameConstraintsExt(value)
		if err != nil {
			return err
		}
		out.NameConstraints = &nc
	default:
		if critical {
			return ErrUnsupportedCriticalExtension
		}
	}
	return nil
}

// parseBasicConstraints decodes:
//
//	BasicConstraints ::= SEQUENCE {
//	    cA                BOOLEAN DEFAULT FALSE,
//	    pathLenConstraint INTEGER (0..MAX) OPTIONAL }
func parseBasicConstraints(value []byte) (BasicConstraints, error) {
	r := der.NewReader(value)
	bc, err := der.ReadNested(r, der.TagSequence, der.KindExtension, func(sub *der.Reader) (BasicConstraints, error) {
		var bc BasicConstraints
		bc.Present = true
		isCA, _, err := der.ReadOptional(sub, der.TagBoolean, func(s *der.Reader) (bool, error) {
			b := s.ReadRemaining()
			if len(b) != 1 {
				return false, ErrBadDer
			}
			return b[0] == 0xFF, nil
		})
		if err != nil {
			return BasicConstraints{}, err
		}
		bc.IsCA = isCA
		pathLen, hasPathLen, err := der.ReadOptional(sub, der.TagInteger, func(s *der.Reader) (int, error) {
			n, err := der.ParseIntegerContent(s.ReadRemaining())
			if err != nil {
				return 0, err
			}
			if !n.IsInt64() || n.Sign() < 0 {
				return 0, ErrExtensionValueInvalid
			}
			return int(n.Int64()), nil
		})
		if err != nil {
			return BasicConstraints{}, err
		}
		if hasPathLen {
			bc.PathLenConstraint = &pathLen
		}
		return bc, nil
	})
	if err != nil {
		return BasicConstraints{}, ErrExtensionValueInvalid
	}
	return bc, nil
}

// parseKeyUsage decodes the keyUsage extension's BIT STRING into named
// bits.
func parseKeyUsage(value []byte) (KeyUsage, error) {
	r := der.NewReader(value)
	bits, err := der.ReadBitString(r)
	if err != nil {
		return 0, ErrExtensionValueInvalid
	}
	var ku KeyUsage
	for i := 0; i < 9; i++ {
		byteIdx := i / 8
		if byteIdx >= len(bits) {
			continue
		}
		bitPos := uint(7 - i%8)
		if bits[byteIdx]&(1<<bitPos) != 0 {
			ku |= 1 << uint(i)
		}
	}
	return ku, nil
}

// parseExtKeyUsage decodes:
//
//	ExtKeyUsageSyntax ::= SEQUENCE SIZE (1..MAX) OF KeyPurposeId
func parseExtKeyUsage(value []byte) (ExtKeyUsage, error) {
	r := der.NewReader(value)
	var out ExtKeyUsage
	err := der.ReadSequenceOf(r, der.KindExtension, func(sub *der.Reader) error {
		oid, err := der.ReadOID(sub)
		if err != nil {
			return err
		}
		if oid.Equal(oidAnyExtendedKeyUsage) {
			out.Any = true
		}
		out.OIDs = append(out.OIDs, oid)
		return nil
	})
	if err != nil {
		return ExtKeyUsage{}, ErrExtensionValueInvalid
	}
	return out, nil
}

// parseGeneralNames decodes a GeneralNames SEQUENCE OF GeneralName, the
// shape of both subjectAltName and a GeneralSubtree's base name.
func parseGeneralNames(value []byte) ([]GeneralName, error) {
	r := der.NewReader(value)
	var names []GeneralName
	err := der.ReadSequenceOf(r, der.KindGeneralName, func(sub *der.Reader) error {
		gn, err := parseGeneralName(sub)
		if err != nil {
			return err
		}
		names = append(names, gn)
		return nil
	})
	if err != nil {
		return nil, ErrExtensionValueInvalid
	}
	return names, nil
}

// parseGeneralName decodes one CHOICE arm of a GeneralName. Only the
// arms this module acts on (dNSName [2], iPAddress [7], directoryName
// [4]) are distinguished; every other arm decodes to GeneralNameOther
// with its raw content preserved, unread but opaque.
func parseGeneralName(sub *der.Reader) (GeneralName, error) {
	tag, value, err := sub.ReadTagAndLength()
	if err != nil {
		return GeneralName{}, err
	}
	switch tag {
	case der.Tag(0x82): // [2] dNSName, IMPLICIT IA5String (primitive)
		return GeneralName{Tag: GeneralNameDNS, Value: value}, nil
	case der.Tag(0x87): // [7] iPAddress, IMPLICIT OCTET STRING (primitive)
		return GeneralName{Tag: GeneralNameIP, Value: value}, nil
	case der.Tag(0xA4): // [4] directoryName, EXPLICIT Name (constructed)
		return GeneralName{Tag: GeneralNameDirectory, Value: value}, nil
	default:
		return GeneralName{Tag: GeneralNameOther, Value: value}, nil
	}
}

// parseNameConstraintsExt decodes:
//
//	NameConstraints ::= SEQUENCE {
//	    permittedSubtrees [0] GeneralSubtrees OPTIONAL,
//	    excludedSubtrees  [1] GeneralSubtrees OPTIONAL }
//	GeneralSubtrees ::= SEQUENCE SIZE (1..MAX) OF GeneralSubtree
//	GeneralSubtree ::= SEQUENCE {
//	    base      GeneralName,
//	    minimum [0] IMPLICIT BaseDistance DEFAULT 0,
//	    maximum [1] IMPLICIT BaseDistance OPTIONAL }
//
// minimum/maximum are skipped unread: no certificate this module
// has encountered uses anything but the default, and RFC 5280's base
// profile does not require acting on a non-zero minimum.
func parseNameConstraintsExt(value []byte) (NameConstraints, error) {
	r := der.NewReader(value)
	nc, err := der.ReadNested(r, der.TagSequence, der.KindNameConstraints, func(sub *der.Reader) (NameConstraints, error) {
		var nc NameConstraints
		if err := readSubtrees(sub, der.ContextConstructed0, &nc, false); err != nil {
			return NameConstraints{}, err
		}
		if err := readSubtrees(sub, der.ContextConstructed1, &nc, true); err != nil {
			return NameConstraints{}, err
		}
		return nc, nil
	})
	if err != nil {
		return NameConstraints{}, ErrMalformedNameConstraint
	}
	return nc, nil
}

func readSubtrees(r *der.Reader, tag der.Tag, nc *NameConstraints, excluded bool) error {
	_, _, err := der.ReadOptional(r, tag, func(sub *der.Reader) (struct{}, error) {
		for !sub.AtEnd() {
			if err := readOneSubtree(sub, nc, excluded); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

func readOneSubtree(sub *der.Reader, nc *NameConstraints, excluded bool) error {
	_, err := der.ReadNested(sub, der.TagSequence, der.KindNameConstraints, func(item *der.Reader) (struct{}, error) {
		gn, err := parseGeneralName(item)
		if err != nil {
			return struct{}{}, err
		}
		item.ReadRemaining() // minimum/maximum, unused.
		switch gn.Tag {
		case GeneralNameDNS:
			name := string(gn.Value)
			if excluded {
				nc.ExcludedDNS = append(nc.ExcludedDNS, name)
			} else {
				nc.PermittedDNS = append(nc.PermittedDNS, name)
			}
		case GeneralNameIP:
			ipnet, err := ipNetFromConstraint(gn.Value)
			if err != nil {
				return struct{}{}, err
			}
			if excluded {
				nc.ExcludedIP = append(nc.ExcludedIP, ipnet)
			} else {
				nc.PermittedIP = append(nc.PermittedIP, ipnet)
			}
		}
		return struct{}{}, nil
	})
	return err
}
