package webpki

import (
	"math/big"

	"github.com/luoffei/webpki/der"
)

// CRLEntry is a single revoked-certificate entry from a CertificateList
// (RFC 5280 §5.1).
type CRLEntry struct {
	Serial         *big.Int
	RevocationDate Time
	HasReason      bool
	Reason         int
}

// CRL is the parsed view of a DER-encoded, v2-only CertificateList.
type CRL struct {
	Issuer     []byte // raw Name SEQUENCE bytes
	ThisUpdate Time
	NextUpdate Time
	HasNext    bool
	Number     *big.Int

	Entries []CRLEntry

	SignatureOID    der.OID
	SignatureParams []byte
	SignatureValue  []byte
	TBSRaw          []byte
}

// Revoked reports whether serial appears in the CRL, returning its
// entry when it does.
func (c *CRL) Revoked(serial *big.Int) (CRLEntry, bool) {
	for _, e := range c.Entries {
		if e.Serial.Cmp(serial) == 0 {
			return e, true
		}
	}
	return CRLEntry{}, false
}

var (
	oidCRLReason              = der.OID([]byte{0x55, 0x1d, 0x15})
	oidDeltaCRLIndicator      = der.OID([]byte{0x55, 0x1d, 0x1b})
	oidIssuingDistPoint       = der.OID([]byte{0x55, 0x1d, 0x1c})
)

// ParseCRL decodes a DER CertificateList (RFC 5280 §5.1). Only v2 CRLs
// are supported; delta and indirect CRLs (signaled by the
// deltaCRLIndicator and issuingDistributionPoint extensions) are
// rejected rather than silently mishandled.
func ParseCRL(raw []byte) (*CRL, error) {
	r := der.NewReader(raw)
	crl, err := der.ReadNested(r, der.TagSequence, der.KindCertRevocationList, func(outer *der.Reader) (*CRL, error) {
		tbsRaw, err := outer.ReadRawTLV()
		if err != nil {
			return nil, err
		}
		crl, err := parseTBSCertList(tbsRaw)
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
		crl.SignatureOID = sigOID
		crl.SignatureParams = sigParams
		crl.SignatureValue = sigValue
		crl.TBSRaw = tbsRaw
		return crl, nil
	})
	if err != nil {
		return nil, err
	}
	return crl, nil
}

func parseTBSCertList(tbsRaw []byte) (*CRL, error) {
	r := der.NewReader(tbsRaw)
	return der.ReadNested(r, der.TagSequence, der.KindCertRevocationList, func(inner *der.Reader) (*CRL, error) {
		version, hasVersion, err := der.ReadOptional(inner, der.TagInteger, func(s *der.Reader) (*big.Int, error) {
			return der.ParseIntegerContent(s.ReadRemaining())
		})
		if err != nil {
			return nil, err
		}
		if !hasVersion || version.Cmp(big.NewInt(1)) != 0 {
			return nil, ErrUnsupportedCrlVersion
		}

		if _, _, err := readAlgorithmIdentifier(inner); err != nil {
			return nil, err
		}

		issuer, err := inner.ReadRawTLV()
		if err != nil {
			return nil, err
		}

		thisUpdate, err := readTimeFromDER(inner)
		if err != nil {
			return nil, err
		}

		nextUpdate, hasNext, err := readOptionalTime(inner)
		if err != nil {
			return nil, err
		}

		var entries []CRLEntry
		if tag, ok := inner.PeekTag(); ok && tag == der.TagSequence {
			sub, err := inner.Expect(der.TagSequence)
			if err != nil {
				return nil, err
			}
			for !sub.AtEnd() {
				entry, err := parseRevokedCertificate(sub)
				if err != nil {
					return nil, err
				}
				entries = append(entries, entry)
			}
		}

		var number *big.Int
		if _, _, err := der.ReadOptional(inner, der.ContextConstructed0, func(sub *der.Reader) (struct{}, error) {
			return struct{}{}, der.ReadSequenceOf(sub, der.KindCertRevocationListExtension, func(item *der.Reader) error {
				return parseCRLExtension(item, &number)
			})
		}); err != nil {
			return nil, err
		}

		return &CRL{
			Issuer:     issuer,
			ThisUpdate: thisUpdate,
			NextUpdate: nextUpdate,
			HasNext:    hasNext,
			Number:     number,
			Entries:    entries,
		}, nil
	})
}

// readOptionalTime peeks for a UTCTime/GeneralizedTime tag and reads it
// if present; nextUpdate is the only OPTIONAL Time field in a CRL.
func readOptionalTime(r *der.Reader) (Time, bool, error) {
	tag, ok := r.PeekTag()
	if !ok || (tag != der.TagUTCTime && tag != der.TagGeneralizedTime) {
		return 0, false, nil
	}
	t, err := readTimeFromDER(r)
	if err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func parseRevokedCertificate(r *der.Reader) (CRLEntry, error) {
	return der.ReadNested(r, der.TagSequence, der.KindRevokedCertificate, func(sub *der.Reader) (CRLEntry, error) {
		serial, _, err := der.ReadSerialNumber(sub)
		if err != nil {
			if der.IsInvalidSerialNumber(err) {
				return CRLEntry{}, ErrInvalidSerialNumber
			}
			return CRLEntry{}, err
		}
		date, err := readTimeFromDER(sub)
		if err != nil {
			return CRLEntry{}, err
		}
		entry := CRLEntry{Serial: serial, RevocationDate: date}
		if tag, ok := sub.PeekTag(); ok && tag == der.TagSequence {
			if err := der.ReadSequenceOf(sub, der.KindCertRevocationListExtension, func(item *der.Reader) error {
				return parseEntryExtension(item, &entry)
			}); err != nil {
				return CRLEntry{}, err
			}
		}
		return entry, nil
	})
}

func parseEntryExtension(r *der.Reader, entry *CRLEntry) error {
	_, err := der.ReadNested(r, der.TagSequence, der.KindCertRevocationListExtension, func(sub *der.Reader) (struct{}, error) {
		oid, err := der.ReadOID(sub)
		if err != nil {
			return struct{}{}, err
		}
		critical, _, err := der.ReadOptional(sub, der.TagBoolean, func(s *der.Reader) (bool, error) {
			b := s.ReadRemaining()
			return len(b) == 1 && b[0] == 0xFF, nil
		})
		if err != nil {
			return struct{}{}, err
		}
		value, err := der.ReadOctetString(sub)
		if err != nil {
			return struct{}{}, err
		}
		if oid.Equal(oidCRLReason) {
			inner := der.NewReader(value)
			tag, content, err := inner.ReadTagAndLength()
			if err != nil || tag != der.TagEnum || len(content) != 1 {
				return struct{}{}, ErrUnsupportedRevocationReason
			}
			entry.Reason = int(content[0])
			entry.HasReason = true
			return struct{}{}, nil
		}
		if critical {
			return struct{}{}, ErrUnsupportedCriticalExtension
		}
		return struct{}{}, nil
	})
	return err
}

func parseCRLExtension(r *der.Reader, number **big.Int) error {
	_, err := der.ReadNested(r, der.TagSequence, der.KindCertRevocationListExtension, func(sub *der.Reader) (struct{}, error) {
		oid, err := der.ReadOID(sub)
		if err != nil {
			return struct{}{}, err
		}
		critical, _, err := der.ReadOptional(sub, der.TagBoolean, func(s *der.Reader) (bool, error) {
			b := s.ReadRemaining()
			return len(b) == 1 && b[0] == 0xFF, nil
		})
		if err != nil {
			return struct{}{}, err
		}
		value, err := der.ReadOctetString(sub)
		if err != nil {
			return struct{}{}, err
		}
		switch {
		case oid.Equal(oidCRLNumber):
			inner := der.NewReader(value)
			n, err := der.ReadInteger(inner)
			if err != nil || n.Sign() < 0 {
				return struct{}{}, ErrInvalidCrlNumber
			}
			*number = n
		case oid.Equal(oidDeltaCRLIndicator):
			return struct{}{}, ErrUnsupportedDeltaCrl
		case oid.Equal(oidIssuingDistPoint):
			inner := der.NewReader(value)
			if err := checkIssuingDistributionPoint(inner); err != nil {
				return struct{}{}, err
			}
		default:
			if critical {
				return struct{}{}, ErrUnsupportedCriticalExtension
			}
		}
		return struct{}{}, nil
	})
	return err
}

// checkIssuingDistributionPoint rejects the two IssuingDistributionPoint
// shapes this module cannot validate correctly: a partitioned-by-reason
// CRL (onlySomeReasons present) and an indirect CRL (indirectCRL TRUE).
// The distributionPoint name and the onlyContains* certificate-type
// flags don't affect revocation-status correctness for a single-purpose
// CRL, so they're read and discarded.
func checkIssuingDistributionPoint(r *der.Reader) error {
	_, err := der.ReadNested(r, der.TagSequence, der.KindCertRevocationListExtension, func(sub *der.Reader) (struct{}, error) {
		skip := func(tag der.Tag) error {
			_, _, err := der.ReadOptional(sub, tag, func(s *der.Reader) (struct{}, error) {
				s.ReadRemaining()
				return struct{}{}, nil
			})
			return err
		}
		if err := skip(der.ContextConstructed0); err != nil {
			return struct{}{}, err
		}
		if err := skip(der.Tag(0x81)); err != nil {
			return struct{}{}, err
		}
		if err := skip(der.Tag(0x82)); err != nil {
			return struct{}{}, err
		}
		_, hasReasons, err := der.ReadOptional(sub, der.Tag(0x83), func(s *der.Reader) (struct{}, error) {
			s.ReadRemaining()
			return struct{}{}, nil
		})
		if err != nil {
			return struct{}{}, err
		}
		if hasReasons {
			return struct{}{}, ErrUnsupportedRevocationReasonsPartitioning
		}
		indirect, _, err := der.ReadOptional(sub, der.Tag(0x84), func(s *der.Reader) (bool, error) {
			b := s.ReadRemaining()
			return len(b) == 1 && b[0] == 0xFF, nil
		})
		if err != nil {
			return struct{}{}, err
		}
		if indirect {
			return struct{}{}, ErrUnsupportedIndirectCrl
		}
		if err := skip(der.Tag(0x85)); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return err
}
