// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"

	"codello.dev/krypt/asn1"
	"codello.dev/krypt/asn1/internal/vlq"
)

// This file contains the value codecs for the universal ASN.1 types. Decoding
// is table driven: the registry maps a universal tag number to a codec.
// Encoding dispatches on the Go type of a Node's Value.

// form records which encodings a universal type permits.
type form uint8

const (
	formPrimitive form = 1 << iota
	formConstructed
	// formSegmented types use the constructed encoding for a sequence of
	// segments of the same type (BER strings).
	formSegmented = formPrimitive | formConstructed
)

// valueCodec decodes the contents octets of a universal type. If der is true,
// the restrictions of DER are applied as well.
type valueCodec struct {
	name   string
	form   form
	decode func(content []byte, der bool) (any, error)
}

// registry contains the codecs for all supported universal types indexed by
// their tag number. Unsupported tags have an empty entry.
var registry = [...]valueCodec{
	asn1.TagBoolean:         {"BOOLEAN", formPrimitive, decodeBoolean},
	asn1.TagInteger:         {"INTEGER", formPrimitive, decodeInteger},
	asn1.TagBitString:       {"BIT STRING", formSegmented, decodeBitString},
	asn1.TagOctetString:     {"OCTET STRING", formSegmented, decodeOctetString},
	asn1.TagNull:            {"NULL", formPrimitive, decodeNull},
	asn1.TagOID:             {"OBJECT IDENTIFIER", formPrimitive, decodeOID},
	asn1.TagEnumerated:      {"ENUMERATED", formPrimitive, decodeEnumerated},
	asn1.TagUTF8String:      {"UTF8String", formSegmented, decodeString[string]},
	asn1.TagRelativeOID:     {"RELATIVE-OID", formPrimitive, decodeRelativeOID},
	asn1.TagSequence:        {"SEQUENCE", formConstructed, nil},
	asn1.TagSet:             {"SET", formConstructed, nil},
	asn1.TagNumericString:   {"NumericString", formSegmented, decodeString[asn1.NumericString]},
	asn1.TagPrintableString: {"PrintableString", formSegmented, decodeString[asn1.PrintableString]},
	asn1.TagTeletexString:   {"TeletexString", formSegmented, decodeString[asn1.TeletexString]},
	asn1.TagVideotexString:  {"VideotexString", formSegmented, decodeString[asn1.VideotexString]},
	asn1.TagIA5String:       {"IA5String", formSegmented, decodeString[asn1.IA5String]},
	asn1.TagUTCTime:         {"UTCTime", formPrimitive, decodeUTCTime},
	asn1.TagGeneralizedTime: {"GeneralizedTime", formPrimitive, decodeGeneralizedTime},
	asn1.TagGraphicString:   {"GraphicString", formSegmented, decodeString[asn1.GraphicString]},
	asn1.TagVisibleString:   {"VisibleString", formSegmented, decodeString[asn1.VisibleString]},
	asn1.TagGeneralString:   {"GeneralString", formSegmented, decodeString[asn1.GeneralString]},
	asn1.TagUniversalString: {"UniversalString", formSegmented, decodeString[asn1.UniversalString]},
	asn1.TagBMPString:       {"BMPString", formSegmented, decodeString[asn1.BMPString]},
}

// lookup returns the codec registered for tag. Only the UNIVERSAL class is
// consulted. If no codec is registered, nil is returned.
func lookup(tag asn1.Tag) *valueCodec {
	if tag.Class != asn1.ClassUniversal || tag.Number >= uint(len(registry)) {
		return nil
	}
	if c := &registry[tag.Number]; c.name != "" {
		return c
	}
	return nil
}

var (
	errUnsupportedType = errors.New("unsupported Go type")
	errNilValue        = errors.New("nil value")
)

// encodeValue returns the canonical universal tag number of v and the contents
// octets of its encoding. Values of unsupported types return
// errUnsupportedType.
func encodeValue(v any) (uint, []byte, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil, errNilValue
	case bool:
		return asn1.TagBoolean, encodeBoolean(v), nil
	case *big.Int:
		if v == nil {
			return asn1.TagInteger, nil, errNilValue
		}
		return asn1.TagInteger, appendInteger(nil, v), nil
	case asn1.BitString:
		b, err := encodeBitString(v)
		return asn1.TagBitString, b, err
	case []byte:
		return asn1.TagOctetString, v, nil
	case asn1.Null:
		return asn1.TagNull, nil, nil
	case asn1.ObjectIdentifier:
		b, err := encodeOID(v)
		return asn1.TagOID, b, err
	case asn1.Enumerated:
		return asn1.TagEnumerated, appendInteger(nil, big.NewInt(int64(v))), nil
	case string:
		return asn1.TagUTF8String, []byte(v), nil
	case asn1.RelativeOID:
		b, err := encodeRelativeOID(v)
		return asn1.TagRelativeOID, b, err
	case asn1.NumericString:
		return asn1.TagNumericString, []byte(v), nil
	case asn1.PrintableString:
		return asn1.TagPrintableString, []byte(v), nil
	case asn1.TeletexString:
		return asn1.TagTeletexString, []byte(v), nil
	case asn1.VideotexString:
		return asn1.TagVideotexString, []byte(v), nil
	case asn1.IA5String:
		return asn1.TagIA5String, []byte(v), nil
	case asn1.UTCTime:
		b, err := encodeUTCTime(v)
		return asn1.TagUTCTime, b, err
	case asn1.GeneralizedTime:
		b, err := encodeGeneralizedTime(v)
		return asn1.TagGeneralizedTime, b, err
	case asn1.GraphicString:
		return asn1.TagGraphicString, []byte(v), nil
	case asn1.VisibleString:
		return asn1.TagVisibleString, []byte(v), nil
	case asn1.GeneralString:
		return asn1.TagGeneralString, []byte(v), nil
	case asn1.UniversalString:
		return asn1.TagUniversalString, []byte(v), nil
	case asn1.BMPString:
		return asn1.TagBMPString, []byte(v), nil
	}
	return 0, nil, errUnsupportedType
}

//region [UNIVERSAL 1] BOOLEAN

var errNonCanonicalBoolean = errors.New("BOOLEAN value is neither 0x00 nor 0xFF")

// encodeBoolean encodes false as 0x00 and true as 0xFF.
func encodeBoolean(v bool) []byte {
	if v {
		return []byte{0xFF}
	}
	return []byte{0x00}
}

// decodeBoolean decodes 0x00 as false and any other single byte as true. In DER
// true must be encoded as 0xFF.
func decodeBoolean(b []byte, der bool) (any, error) {
	if len(b) != 1 {
		return nil, errors.New("BOOLEAN must have exactly one contents octet")
	}
	if der && b[0] != 0x00 && b[0] != 0xFF {
		return nil, errNonCanonicalBoolean
	}
	return b[0] != 0x00, nil
}

//endregion

//region [UNIVERSAL 2] INTEGER and [UNIVERSAL 10] ENUMERATED

var (
	bigOne = big.NewInt(1)

	errEmptyInteger      = errors.New("INTEGER has no contents octets")
	errNonMinimalInteger = errors.New("INTEGER not minimally encoded")
)

// appendInteger appends the minimal two's complement representation of i to b.
func appendInteger(b []byte, i *big.Int) []byte {
	switch i.Sign() {
	case 0:
		// Zero is written as a single 0 zero rather than no bytes.
		return append(b, 0x00)
	case -1:
		// A negative number has to be converted to two's-complement
		// form. So we'll invert and subtract 1. If the
		// most-significant-bit isn't set then we'll need to pad the
		// beginning with 0xff in order to keep the number negative.
		nMinus1 := new(big.Int).Neg(i)
		nMinus1.Sub(nMinus1, bigOne)
		bs := nMinus1.Bytes()
		for j := range bs {
			bs[j] ^= 0xff
		}
		if len(bs) == 0 || bs[0]&0x80 == 0 {
			b = append(b, 0xFF)
		}
		return append(b, bs...)
	default:
		bs := i.Bytes()
		if bs[0]&0x80 != 0 {
			// We'll have to pad this with 0x00 in order to stop it
			// looking like a negative number.
			b = append(b, 0x00)
		}
		return append(b, bs...)
	}
}

// parseInteger parses a two's complement big endian integer. The encoding must
// be minimal.
func parseInteger(b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return nil, errEmptyInteger
	}
	if len(b) > 1 && ((b[0] == 0x00 && b[1]&0x80 == 0x00) || (b[0] == 0xFF && b[1]&0x80 == 0x80)) {
		return nil, errNonMinimalInteger
	}
	i := new(big.Int)
	if b[0]&0x80 == 0 {
		return i.SetBytes(b), nil
	}
	// negative integer, calculate 2s complement
	bs := make([]byte, len(b))
	for j := range b {
		bs[j] = ^b[j]
	}
	i.SetBytes(bs)
	i.Add(i, bigOne)
	return i.Neg(i), nil
}

func decodeInteger(b []byte, _ bool) (any, error) {
	i, err := parseInteger(b)
	if err != nil {
		return nil, err
	}
	return i, nil
}

func decodeEnumerated(b []byte, _ bool) (any, error) {
	i, err := parseInteger(b)
	if err != nil {
		return nil, err
	}
	if !i.IsInt64() || i.Int64() < math.MinInt || i.Int64() > math.MaxInt {
		return nil, errors.New("ENUMERATED value out of range")
	}
	return asn1.Enumerated(i.Int64()), nil
}

//endregion

//region [UNIVERSAL 3] BIT STRING

var (
	errInvalidBitString = errors.New("invalid BitString")
	errBitStringPadding = errors.New("invalid padding bits in BIT STRING")
)

// encodeBitString writes the number of padding bits followed by the bytes of s.
// Padding bits are encoded as zero bits.
func encodeBitString(s asn1.BitString) ([]byte, error) {
	if !s.IsValid() {
		return nil, errInvalidBitString
	}
	padding := byte(s.Padding())
	b := make([]byte, 1, len(s.Bytes)+1)
	b[0] = padding
	b = append(b, s.Bytes...)
	if len(s.Bytes) > 0 {
		// zero out any padding bits
		b[len(b)-1] &= ^byte(1<<padding - 1)
	}
	return b, nil
}

// decodeBitString decodes a primitive BIT STRING. Padding bits are set to zero
// unless der is set, in which case non-zero padding bits are an error.
func decodeBitString(b []byte, der bool) (any, error) {
	if len(b) == 0 {
		return nil, errors.New("zero length BIT STRING")
	}
	padding := b[0]
	if padding > 7 || len(b) == 1 && padding > 0 {
		return nil, errBitStringPadding
	}
	bs := asn1.BitString{
		Bytes:     b[1:],
		BitLength: (len(b)-1)*8 - int(padding),
	}
	if len(bs.Bytes) > 0 {
		mask := byte(1<<padding - 1)
		last := &bs.Bytes[len(bs.Bytes)-1]
		if der && *last&mask != 0 {
			return nil, errBitStringPadding
		}
		*last &= ^mask
	}
	return bs, nil
}

//endregion

//region [UNIVERSAL 4] OCTET STRING

// decodeOctetString returns the contents octets verbatim. The result is never
// nil.
func decodeOctetString(b []byte, _ bool) (any, error) {
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

//endregion

//region [UNIVERSAL 5] NULL

func decodeNull(b []byte, _ bool) (any, error) {
	if len(b) > 0 {
		return nil, errors.New("NULL must not have contents octets")
	}
	return asn1.Null{}, nil
}

//endregion

//region [UNIVERSAL 6] OBJECT IDENTIFIER and [UNIVERSAL 13] RELATIVE-OID

var (
	errInvalidOID = errors.New("invalid ObjectIdentifier")
	errEmptyOID   = errors.New("zero length object identifier")
)

// encodeOID encodes the first two arcs of oid into a single value 40*X+Y.
// Subsequent components use a variable-length base128 encoding.
func encodeOID(oid asn1.ObjectIdentifier) ([]byte, error) {
	if !oid.IsValid() {
		return nil, errInvalidOID
	}
	b := vlq.Append(nil, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		b = vlq.Append(b, arc)
	}
	return b, nil
}

// encodeRelativeOID encodes every component of oid as a variable-length base128
// integer.
func encodeRelativeOID(oid asn1.RelativeOID) ([]byte, error) {
	if len(oid) == 0 {
		return nil, errEmptyOID
	}
	var b []byte
	for _, arc := range oid {
		b = vlq.Append(b, arc)
	}
	return b, nil
}

// decodeOID decodes an OBJECT IDENTIFIER.
//
// The first varint is 40*value1 + value2:
// According to this packing, value1 can take the values 0, 1 and 2 only.
// When value1 = 0 or value1 = 1, then value2 is <= 39. When value1 = 2,
// then there are no restrictions on value2.
func decodeOID(b []byte, _ bool) (any, error) {
	if len(b) == 0 {
		return nil, errEmptyOID
	}
	r := bytes.NewReader(b)
	v, err := vlq.ReadMinimal[uint](r)
	if err != nil {
		return nil, arcError(err)
	}
	// In the worst case, we get two elements from the first byte (which is
	// encoded differently) and then every varint is a single byte long.
	oid := make(asn1.ObjectIdentifier, 2, r.Len()+2)
	if v < 80 {
		oid[0], oid[1] = v/40, v%40
	} else {
		oid[0], oid[1] = 2, v-80
	}
	arcs, err := readArcs(r, oid)
	if err != nil {
		return nil, err
	}
	return asn1.ObjectIdentifier(arcs), nil
}

func decodeRelativeOID(b []byte, _ bool) (any, error) {
	if len(b) == 0 {
		return nil, errEmptyOID
	}
	arcs, err := readArcs(bytes.NewReader(b), make([]uint, 0, len(b)))
	if err != nil {
		return nil, err
	}
	return asn1.RelativeOID(arcs), nil
}

// readArcs decodes minimally encoded VLQs from r until r is exhausted and
// appends them to arcs.
func readArcs(r *bytes.Reader, arcs []uint) ([]uint, error) {
	for r.Len() > 0 {
		v, err := vlq.ReadMinimal[uint](r)
		if err != nil {
			return nil, arcError(err)
		}
		arcs = append(arcs, v)
	}
	return arcs, nil
}

func arcError(err error) error {
	if err == io.ErrUnexpectedEOF {
		return errors.New("truncated object identifier arc")
	}
	return fmt.Errorf("invalid object identifier arc: %w", err)
}

//endregion

//region Restricted character strings and [UNIVERSAL 12] UTF8String

// decodeString returns the contents octets as a value of type T. Contents are
// not validated against the character set of T. Empty contents result in the
// empty string.
func decodeString[T ~string](b []byte, _ bool) (any, error) {
	return T(b), nil
}

//endregion

//region [UNIVERSAL 23] UTCTime and [UNIVERSAL 24] GeneralizedTime

var errDERTime = errors.New("time not in DER format")

func encodeUTCTime(t asn1.UTCTime) ([]byte, error) {
	if !t.IsValid() {
		return nil, errors.New("cannot represent time as UTCTime")
	}
	return []byte(t.String()), nil
}

func encodeGeneralizedTime(t asn1.GeneralizedTime) ([]byte, error) {
	if !t.IsValid() {
		return nil, errors.New("cannot represent time as GeneralizedTime")
	}
	return []byte(t.String()), nil
}

// decodeUTCTime parses a UTCTime. In DER the value must be in UTC and include
// seconds (YYMMDDhhmmssZ).
func decodeUTCTime(b []byte, der bool) (any, error) {
	s := string(b)
	if der && (len(s) != 13 || s[12] != 'Z') {
		return nil, errDERTime
	}
	t, err := asn1.ParseUTCTime(s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// decodeGeneralizedTime parses a GeneralizedTime. In DER the value must be in
// UTC, include seconds and use a '.' for fractional seconds without trailing
// zeros.
func decodeGeneralizedTime(b []byte, der bool) (any, error) {
	s := string(b)
	if der && !isDERGeneralizedTime(s) {
		return nil, errDERTime
	}
	t, err := asn1.ParseGeneralizedTime(s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// isDERGeneralizedTime reports whether s has the form YYYYMMDDhhmmss[.f+]Z.
func isDERGeneralizedTime(s string) bool {
	if len(s) < 15 || s[len(s)-1] != 'Z' {
		return false
	}
	for i := 0; i < 14; i++ {
		if s[i] < '0' || '9' < s[i] {
			return false
		}
	}
	frac := s[14 : len(s)-1]
	if frac == "" {
		return true
	}
	if len(frac) < 2 || frac[0] != '.' || frac[len(frac)-1] == '0' {
		return false
	}
	for i := 1; i < len(frac); i++ {
		if frac[i] < '0' || '9' < frac[i] {
			return false
		}
	}
	return true
}

//endregion
