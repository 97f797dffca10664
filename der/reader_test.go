package der_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoffei/webpki/der"
)

func TestReadTagAndLengthShortForm(t *testing.T) {
	r := der.NewReader([]byte{0x04, 0x03, 'a', 'b', 'c'})
	tag, value, err := r.ReadTagAndLength()
	require.NoError(t, err)
	assert.Equal(t, der.TagOctetString, tag)
	assert.Equal(t, []byte("abc"), value)
	assert.True(t, r.AtEnd())
}

func TestReadTagAndLengthLongForm(t *testing.T) {
	payload := make([]byte, 200)
	encoded := append([]byte{0x04, 0x81, 0xC8}, payload...)
	r := der.NewReader(encoded)
	tag, value, err := r.ReadTagAndLength()
	require.NoError(t, err)
	assert.Equal(t, der.TagOctetString, tag)
	assert.Len(t, value, 200)
}

func TestReadTagAndLengthRejectsNonMinimalLongForm(t *testing.T) {
	// Length 5 encoded in long form (0x81 0x05) when short form would do.
	r := der.NewReader([]byte{0x04, 0x81, 0x05, 1, 2, 3, 4, 5})
	_, _, err := r.ReadTagAndLength()
	assert.ErrorIs(t, err, der.ErrBadDER)
}

func TestReadTagAndLengthRejectsOverrun(t *testing.T) {
	r := der.NewReader([]byte{0x04, 0x05, 1, 2})
	_, _, err := r.ReadTagAndLength()
	assert.ErrorIs(t, err, der.ErrBadDER)
}

func TestReadNestedDetectsTrailingData(t *testing.T) {
	r := der.NewReader([]byte{0x30, 0x04, 0x02, 0x01, 0x05, 0x00})
	_, err := der.ReadNested(r, der.TagSequence, der.KindCertificate, func(sub *der.Reader) (int, error) {
		n, err := der.ReadInteger(sub)
		if err != nil {
			return 0, err
		}
		return int(n.Int64()), nil
	})
	var trailing *der.TrailingDataError
	require.ErrorAs(t, err, &trailing)
	assert.Equal(t, der.KindCertificate, trailing.K)
}

func TestReadNestedConsumesFully(t *testing.T) {
	r := der.NewReader([]byte{0x30, 0x03, 0x02, 0x01, 0x2A})
	v, err := der.ReadNested(r, der.TagSequence, der.KindCertificate, func(sub *der.Reader) (int64, error) {
		n, err := der.ReadInteger(sub)
		if err != nil {
			return 0, err
		}
		return n.Int64(), nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestReadSequenceOf(t *testing.T) {
	r := der.NewReader([]byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02})
	var values []int64
	err := der.ReadSequenceOf(r, der.KindCertificate, func(sub *der.Reader) error {
		n, err := der.ReadInteger(sub)
		if err != nil {
			return err
		}
		values = append(values, n.Int64())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, values)
}

func TestReadIntegerRejectsNonMinimal(t *testing.T) {
	// 0x02 0x02 0x00 0x01 -- a non-minimal positive encoding.
	r := der.NewReader([]byte{0x02, 0x02, 0x00, 0x01})
	_, err := der.ReadInteger(r)
	assert.ErrorIs(t, err, der.ErrBadDER)
}

func TestReadIntegerNegative(t *testing.T) {
	r := der.NewReader([]byte{0x02, 0x01, 0xFF})
	n, err := der.ReadInteger(r)
	require.ErrorIs(t, err, der.ErrBadDER)
	assert.Nil(t, n)
}

func TestReadSerialNumberRejectsNegative(t *testing.T) {
	r := der.NewReader([]byte{0x02, 0x01, 0x80})
	_, _, err := der.ReadSerialNumber(r)
	require.Error(t, err)
	assert.True(t, der.IsInvalidSerialNumber(err))
}

func TestReadSerialNumberRejectsOverlong(t *testing.T) {
	content := make([]byte, 21)
	content[0] = 0x01
	encoded := append([]byte{0x02, 0x15}, content...)
	r := der.NewReader(encoded)
	_, _, err := der.ReadSerialNumber(r)
	require.Error(t, err)
	assert.True(t, der.IsInvalidSerialNumber(err))
}

func TestReadSerialNumberAccepts20Octets(t *testing.T) {
	content := make([]byte, 20)
	content[0] = 0x01
	encoded := append([]byte{0x02, 0x14}, content...)
	r := der.NewReader(encoded)
	n, raw, err := der.ReadSerialNumber(r)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
	assert.True(t, n.Sign() > 0)
}

func TestReadBitStringValidatesUnusedBits(t *testing.T) {
	r := der.NewReader([]byte{0x03, 0x02, 0x00, 0xFF})
	b, err := der.ReadBitString(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, b)

	r2 := der.NewReader([]byte{0x03, 0x01, 0x01})
	_, err = der.ReadBitString(r2)
	assert.ErrorIs(t, err, der.ErrBadDER)

	r3 := der.NewReader([]byte{0x03, 0x01, 0x08})
	_, err = der.ReadBitString(r3)
	assert.ErrorIs(t, err, der.ErrBadDER)
}

func TestReadBooleanStrictEncoding(t *testing.T) {
	r := der.NewReader([]byte{0x01, 0x01, 0xFF})
	v, err := der.ReadBoolean(r)
	require.NoError(t, err)
	assert.True(t, v)

	r2 := der.NewReader([]byte{0x01, 0x01, 0x01})
	_, err = der.ReadBoolean(r2)
	assert.ErrorIs(t, err, der.ErrBadDER)
}

func TestReadOIDEquality(t *testing.T) {
	r := der.NewReader([]byte{0x06, 0x03, 0x55, 0x04, 0x03})
	oid, err := der.ReadOID(r)
	require.NoError(t, err)
	assert.True(t, oid.Equal(der.OID([]byte{0x55, 0x04, 0x03})))
}

func TestReadOptionalAbsent(t *testing.T) {
	r := der.NewReader([]byte{0x02, 0x01, 0x05})
	v, ok, err := der.ReadOptional(r, der.ContextConstructed0, func(sub *der.Reader) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, 3, r.Remaining())
}

func TestReadOptionalPresent(t *testing.T) {
	r := der.NewReader([]byte{0xA0, 0x03, 0x02, 0x01, 0x07})
	v, ok, err := der.ReadOptional(r, der.ContextConstructed0, func(sub *der.Reader) (int64, error) {
		n, err := der.ReadInteger(sub)
		if err != nil {
			return 0, err
		}
		return n.Int64(), nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 7, v)
}
