// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/krypt/asn1"
)

// testCase represents an encoding or decoding test case. For encoding cases
// constructing a Node from val and encoding it should result in data. For
// decoding cases decoding data should result in a Node holding val.
type testCase struct {
	val     any
	data    []byte
	der     bool // decode using DER restrictions
	wantErr error
}

// testCodec runs the tests specified as arguments. Common tests are tested for
// both encoding and decoding. The encode and decode tests are only run for the
// respective direction.
func testCodec(t *testing.T, common, encode, decode map[string]testCase) {
	t.Helper()
	t.Run("Encode", func(t *testing.T) {
		t.Helper()
		testEncode(t, common)
		testEncode(t, encode)
	})
	t.Run("Decode", func(t *testing.T) {
		t.Helper()
		testDecode(t, common)
		testDecode(t, decode)
	})
}

// testEncode constructs a Node from tc.val and encodes it. If tc.wantErr is
// non-nil construction is expected to fail with an error of the same type.
func testEncode(t *testing.T, tests map[string]testCase) {
	t.Helper()
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			n, err := New(tc.val)
			if tc.wantErr != nil {
				assert.ErrorAs(t, err, reflect.New(reflect.TypeOf(tc.wantErr)).Interface())
				return
			}
			require.NoError(t, err)
			got, err := Encode(n)
			require.NoError(t, err)
			assert.Equal(t, tc.data, got)
		})
	}
}

// testDecode decodes tc.data and compares the resulting value against tc.val.
// If tc.wantErr is non-nil decoding is expected to fail with an error of the
// same type.
func testDecode(t *testing.T, tests map[string]testCase) {
	t.Helper()
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(bytes.NewReader(tc.data))
			d.DER = tc.der
			got, err := d.Decode()
			if tc.wantErr != nil {
				assert.ErrorAs(t, err, reflect.New(reflect.TypeOf(tc.wantErr)).Interface())
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			// Construct the expected value without validation.
			want := normalize(tc.val)
			number, _, err := encodeValue(want)
			require.NoError(t, err)
			assert.Equal(t, asn1.Universal(number), got.Tag)
			assertValue(t, want, got.Value)
		})
	}
}

// assertValue compares decoded values. Numbers and times are compared by their
// value rather than their representation.
func assertValue(t *testing.T, want, got any) {
	t.Helper()
	switch w := want.(type) {
	case *big.Int:
		g, ok := got.(*big.Int)
		if assert.True(t, ok, "got %T, want *big.Int", got) {
			assert.Zero(t, w.Cmp(g), "got %s, want %s", g, w)
		}
	case asn1.UTCTime:
		g, ok := got.(asn1.UTCTime)
		if assert.True(t, ok, "got %T, want asn1.UTCTime", got) {
			assert.True(t, w.Equal(g), "got %s, want %s", g, w)
		}
	case asn1.GeneralizedTime:
		g, ok := got.(asn1.GeneralizedTime)
		if assert.True(t, ok, "got %T, want asn1.GeneralizedTime", got) {
			assert.True(t, w.Equal(g), "got %s, want %s", g, w)
		}
	default:
		assert.Equal(t, want, got)
	}
}

// prim returns the encoding of a primitive data value with a single byte
// identifier and short form length.
func prim(id byte, content string) []byte {
	return append([]byte{id, byte(len(content))}, content...)
}

//region [UNIVERSAL 1] BOOLEAN

func TestBoolean(t *testing.T) {
	testCodec(t, map[string]testCase{
		"True":  {val: true, data: []byte{0x01, 0x01, 0xFF}},
		"False": {val: false, data: []byte{0x01, 0x01, 0x00}},
	}, nil, map[string]testCase{
		"AnyTrue":    {val: true, data: []byte{0x01, 0x01, 0xFA}},
		"DERAnyTrue": {data: []byte{0x01, 0x01, 0xFA}, der: true, wantErr: &FormatError{}},
		"Empty":      {data: []byte{0x01, 0x00}, wantErr: &FormatError{}},
		"TooLong":    {data: []byte{0x01, 0x02, 0xFF, 0x00}, wantErr: &FormatError{}},
	})
}

//endregion

//region [UNIVERSAL 2] INTEGER and [UNIVERSAL 10] ENUMERATED

func TestInteger(t *testing.T) {
	large, _ := new(big.Int).SetString("18446744073709551616", 10) // 2^64
	testCodec(t, map[string]testCase{
		"Zero":        {val: 0, data: []byte{0x02, 0x01, 0x00}},
		"Small":       {val: 127, data: []byte{0x02, 0x01, 0x7F}},
		"Padded":      {val: 128, data: []byte{0x02, 0x02, 0x00, 0x80}},
		"TwoBytes":    {val: 256, data: []byte{0x02, 0x02, 0x01, 0x00}},
		"Negative":    {val: -128, data: []byte{0x02, 0x01, 0x80}},
		"NegativePad": {val: -129, data: []byte{0x02, 0x02, 0xFF, 0x7F}},
		"MinusOne":    {val: int8(-1), data: []byte{0x02, 0x01, 0xFF}},
		"Uint64":      {val: uint64(1<<64 - 1), data: []byte{0x02, 0x09, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		"BigInt":      {val: large, data: []byte{0x02, 0x09, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
	}, map[string]testCase{
		"NilBigInt": {val: (*big.Int)(nil), wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"Empty":              {data: []byte{0x02, 0x00}, wantErr: &FormatError{}},
		"NonMinimal":         {data: []byte{0x02, 0x02, 0x00, 0x7F}, wantErr: &FormatError{}},
		"NonMinimalNegative": {data: []byte{0x02, 0x02, 0xFF, 0x80}, wantErr: &FormatError{}},
	})
}

func TestEnumerated(t *testing.T) {
	testCodec(t, map[string]testCase{
		"Positive": {val: asn1.Enumerated(5), data: []byte{0x0A, 0x01, 0x05}},
		"Negative": {val: asn1.Enumerated(-1), data: []byte{0x0A, 0x01, 0xFF}},
	}, nil, map[string]testCase{
		"TooLarge": {data: []byte{0x0A, 0x09, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, wantErr: &FormatError{}},
	})
}

//endregion

//region [UNIVERSAL 3] BIT STRING

func TestBitString(t *testing.T) {
	testCodec(t, map[string]testCase{
		"Simple": {val: asn1.BitString{Bytes: []byte{0x6E, 0x5D, 0xC0}, BitLength: 18},
			data: []byte{0x03, 0x04, 0x06, 0x6E, 0x5D, 0xC0}},
		"Aligned": {val: asn1.BitString{Bytes: []byte{0xFF}, BitLength: 8},
			data: []byte{0x03, 0x02, 0x00, 0xFF}},
		"Empty": {val: asn1.BitString{Bytes: []byte{}, BitLength: 0},
			data: []byte{0x03, 0x01, 0x00}},
	}, map[string]testCase{
		"Invalid": {val: asn1.BitString{Bytes: []byte{0x00}, BitLength: 9}, wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"PaddingZeroed":    {val: asn1.BitString{Bytes: []byte{0x80}, BitLength: 1}, data: []byte{0x03, 0x02, 0x07, 0xFF}},
		"DERPadding":       {data: []byte{0x03, 0x02, 0x07, 0xFF}, der: true, wantErr: &FormatError{}},
		"NoContents":       {data: []byte{0x03, 0x00}, wantErr: &FormatError{}},
		"PaddingTooLarge":  {data: []byte{0x03, 0x02, 0x08, 0x00}, wantErr: &FormatError{}},
		"PaddingNoBits":    {data: []byte{0x03, 0x01, 0x01}, wantErr: &FormatError{}},
		"PaddedSegment":    {data: []byte{0x23, 0x08, 0x03, 0x02, 0x04, 0xF0, 0x03, 0x02, 0x00, 0xFF}, wantErr: &FormatError{}},
		"DERConstructed":   {data: []byte{0x23, 0x04, 0x03, 0x02, 0x00, 0xFF}, der: true, wantErr: &FormatError{}},
		"SegmentTagDiffer": {data: []byte{0x23, 0x04, 0x04, 0x02, 0x00, 0xFF}, wantErr: &FormatError{}},
	})
}

//endregion

//region [UNIVERSAL 4] OCTET STRING

func TestOctetString(t *testing.T) {
	testCodec(t, map[string]testCase{
		"Simple": {val: []byte{0x01, 0x02, 0x03}, data: []byte{0x04, 0x03, 0x01, 0x02, 0x03}},
		"Empty":  {val: []byte{}, data: []byte{0x04, 0x00}},
	}, nil, nil)
}

//endregion

//region [UNIVERSAL 5] NULL

func TestNull(t *testing.T) {
	testCodec(t, map[string]testCase{
		"Nil":  {val: nil, data: []byte{0x05, 0x00}},
		"Null": {val: asn1.Null{}, data: []byte{0x05, 0x00}},
	}, nil, map[string]testCase{
		"Contents":    {data: []byte{0x05, 0x01, 0x00}, wantErr: &FormatError{}},
		"Constructed": {data: []byte{0x25, 0x00}, wantErr: &FormatError{}},
	})
}

//endregion

//region [UNIVERSAL 6] OBJECT IDENTIFIER and [UNIVERSAL 13] RELATIVE-OID

func TestObjectIdentifier(t *testing.T) {
	testCodec(t, map[string]testCase{
		"RSA":      {val: asn1.ObjectIdentifier{1, 2, 840, 113549}, data: []byte{0x06, 0x06, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D}},
		"TwoArcs":  {val: asn1.ObjectIdentifier{0, 39}, data: []byte{0x06, 0x01, 0x27}},
		"LargeArc": {val: asn1.ObjectIdentifier{2, 999, 3}, data: []byte{0x06, 0x03, 0x88, 0x37, 0x03}},
	}, map[string]testCase{
		"OneArc":      {val: asn1.ObjectIdentifier{1}, wantErr: &ArgumentError{}},
		"InvalidRoot": {val: asn1.ObjectIdentifier{3, 1}, wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"Empty":      {data: []byte{0x06, 0x00}, wantErr: &FormatError{}},
		"NonMinimal": {data: []byte{0x06, 0x03, 0x2A, 0x80, 0x01}, wantErr: &FormatError{}},
		"Truncated":  {data: []byte{0x06, 0x02, 0x2A, 0x86}, wantErr: &FormatError{}},
		"Overflow":   {data: []byte{0x06, 0x0C, 0x2A, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x81, 0x01}, wantErr: &FormatError{}},
	})
}

func TestRelativeOID(t *testing.T) {
	testCodec(t, map[string]testCase{
		"Simple": {val: asn1.RelativeOID{8571, 3, 2}, data: []byte{0x0D, 0x04, 0xC2, 0x7B, 0x03, 0x02}},
		"Zero":   {val: asn1.RelativeOID{0}, data: []byte{0x0D, 0x01, 0x00}},
	}, map[string]testCase{
		"Empty": {val: asn1.RelativeOID{}, wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"Empty": {data: []byte{0x0D, 0x00}, wantErr: &FormatError{}},
	})
}

//endregion

//region Strings

func TestStrings(t *testing.T) {
	testCodec(t, map[string]testCase{
		"UTF8String":      {val: "hello", data: prim(0x0C, "hello")},
		"EmptyUTF8String": {val: "", data: []byte{0x0C, 0x00}},
		"UTF8Verbatim":    {val: "\xff\xfe", data: []byte{0x0C, 0x02, 0xFF, 0xFE}},
		"NumericString":   {val: asn1.NumericString("123 "), data: prim(0x12, "123 ")},
		"PrintableString": {val: asn1.PrintableString("Test"), data: prim(0x13, "Test")},
		"TeletexString":   {val: asn1.TeletexString("abc"), data: prim(0x14, "abc")},
		"VideotexString":  {val: asn1.VideotexString("abc"), data: prim(0x15, "abc")},
		"IA5String":       {val: asn1.IA5String("a@b"), data: prim(0x16, "a@b")},
		"GraphicString":   {val: asn1.GraphicString("abc"), data: prim(0x19, "abc")},
		"VisibleString":   {val: asn1.VisibleString("abc"), data: prim(0x1A, "abc")},
		"GeneralString":   {val: asn1.GeneralString("abc"), data: prim(0x1B, "abc")},
		"UniversalString": {val: asn1.UniversalString("\x00\x00\x00A"), data: prim(0x1C, "\x00\x00\x00A")},
		"BMPString":       {val: asn1.BMPString("\x00A"), data: prim(0x1E, "\x00A")},
	}, map[string]testCase{
		"InvalidPrintable": {val: asn1.PrintableString("a@b"), wantErr: &ArgumentError{}},
		"InvalidNumeric":   {val: asn1.NumericString("12a"), wantErr: &ArgumentError{}},
		"InvalidBMP":       {val: asn1.BMPString("A"), wantErr: &ArgumentError{}},
	}, map[string]testCase{
		// Contents are kept verbatim and are not validated while decoding.
		"PrintableVerbatim": {val: asn1.PrintableString("a@b"), data: prim(0x13, "a@b")},
	})
}

func TestStrings_empty(t *testing.T) {
	tests := map[string]struct {
		data []byte
		want any
	}{
		"UTF8String":      {[]byte{0x0C, 0x00}, ""},
		"OctetString":     {[]byte{0x04, 0x00}, []byte{}},
		"PrintableString": {[]byte{0x13, 0x00}, asn1.PrintableString("")},
		"ContextSpecific": {[]byte{0x80, 0x00}, []byte{}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			n, err := Decode(tc.data)
			require.NoError(t, err)
			require.NotNil(t, n.Value)
			assert.Equal(t, tc.want, n.Value)

			got, err := Encode(n)
			require.NoError(t, err)
			assert.Equal(t, tc.data, got)
		})
	}
}

//endregion

//region [UNIVERSAL 23] UTCTime and [UNIVERSAL 24] GeneralizedTime

func TestUTCTime(t *testing.T) {
	ref := time.Date(1991, 5, 6, 23, 45, 40, 0, time.UTC)
	testCodec(t, map[string]testCase{
		"UTC":    {val: asn1.UTCTime(ref), data: prim(0x17, "910506234540Z")},
		"Offset": {val: asn1.UTCTime(ref.In(time.FixedZone("", -7*3600))), data: prim(0x17, "910506164540-0700")},
	}, map[string]testCase{
		"OutOfRange": {val: asn1.UTCTime(time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)), wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"NoSeconds":    {val: asn1.UTCTime(ref.Add(-40 * time.Second)), data: prim(0x17, "9105062345Z")},
		"DERNoSeconds": {data: prim(0x17, "9105062345Z"), der: true, wantErr: &FormatError{}},
		"DEROffset":    {data: prim(0x17, "910506164540-0700"), der: true, wantErr: &FormatError{}},
		"Invalid":      {data: prim(0x17, "911306234540Z"), wantErr: &FormatError{}},
		"Constructed":  {data: append([]byte{0x37, 0x0F}, prim(0x17, "910506234540Z")...), wantErr: &FormatError{}},
	})
}

func TestGeneralizedTime(t *testing.T) {
	ref := time.Date(1991, 5, 6, 23, 45, 40, 0, time.UTC)
	testCodec(t, map[string]testCase{
		"UTC":      {val: asn1.GeneralizedTime(ref), data: prim(0x18, "19910506234540Z")},
		"Fraction": {val: asn1.GeneralizedTime(ref.Add(500 * time.Millisecond)), data: prim(0x18, "19910506234540.5Z")},
		"Offset":   {val: asn1.GeneralizedTime(ref.In(time.FixedZone("", 3600))), data: prim(0x18, "19910507004540+0100")},
	}, map[string]testCase{
		"TimeTime":   {val: ref, data: prim(0x18, "19910506234540Z")},
		"OutOfRange": {val: asn1.GeneralizedTime(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)), wantErr: &ArgumentError{}},
	}, map[string]testCase{
		"Comma":              {val: asn1.GeneralizedTime(ref.Add(500 * time.Millisecond)), data: prim(0x18, "19910506234540,5Z")},
		"DERComma":           {data: prim(0x18, "19910506234540,5Z"), der: true, wantErr: &FormatError{}},
		"DERTrailingZero":    {data: prim(0x18, "19910506234540.50Z"), der: true, wantErr: &FormatError{}},
		"DERNoSeconds":       {data: prim(0x18, "199105062345Z"), der: true, wantErr: &FormatError{}},
		"DERFraction":        {val: asn1.GeneralizedTime(ref.Add(250 * time.Millisecond)), data: prim(0x18, "19910506234540.25Z"), der: true},
		"Invalid":            {data: prim(0x18, "19910506244540Z"), wantErr: &FormatError{}},
		"IncompleteFraction": {data: prim(0x18, "19910506234540.Z"), wantErr: &FormatError{}},
	})
}

//endregion

func TestRegistry(t *testing.T) {
	for number, c := range registry {
		if c.name == "" {
			assert.Nil(t, lookup(asn1.Universal(uint(number))), "tag %d", number)
			continue
		}
		assert.Same(t, &registry[number], lookup(asn1.Universal(uint(number))))
		assert.Nil(t, lookup(asn1.Tag{Class: asn1.ClassApplication, Number: uint(number)}))
		if c.form&formPrimitive != 0 {
			assert.NotNil(t, c.decode, "%s has no decode function", c.name)
		}
	}
	assert.Nil(t, lookup(asn1.Universal(asn1.MaxTag)))
}

func TestEncodeValue_unsupported(t *testing.T) {
	for _, v := range []any{3.14, struct{}{}, map[string]int{}, []int{1}} {
		_, _, err := encodeValue(v)
		assert.True(t, errors.Is(err, errUnsupportedType), "encodeValue(%T)", v)
	}
}
