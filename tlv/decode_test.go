// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/krypt/asn1"
)

var (
	tagInteger     = asn1.Universal(asn1.TagInteger)
	tagOctetString = asn1.Universal(asn1.TagOctetString)
	tagSequence    = asn1.Universal(asn1.TagSequence)
	tagSet         = asn1.Universal(asn1.TagSet)
)

// testDataReader implements an [io.Reader] for testing the [Decoder] type. It
// reads data from a slice. The slice can contain values of types byte, int, and
// error. The Read method produces the provided bytes (or ints converted to
// bytes) and errors in the provided order.
type testDataReader struct {
	data []any
}

// Read implements [io.Reader] by producing bytes and errors from r.data.
func (r *testDataReader) Read(p []byte) (n int, err error) {
	for n < len(p) && len(r.data) > 0 && err == nil {
		switch v := r.data[0].(type) {
		case byte:
			p[n] = v
			n++
		case int:
			p[n] = byte(v)
			n++
		case error:
			err = v
		default:
			panic(fmt.Sprintf("invalid data value: %v", v))
		}
		r.data = r.data[1:]
	}
	if len(r.data) == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}

// TestDecoder_ReadHeader tests the general reading behavior. Each test case
// consists of an input sequence, an output sequence and an expected offset.
//
//   - The input sequence is as slice of bytes (or integers) and errors. These
//     are the bytes and errors produced by the underlying reader of the [Decoder].
//   - The output sequence is a sequence of values of types [Header], []byte, and
//     error. These are the headers, values and errors produced by subsequent
//     [Decoder.ReadHeader] calls. A value of type []byte is processed together with
//     the [Header] that immediately precedes it.
//   - The expected offset is the expected [Decoder.InputOffset] after the output
//     sequence has been processed.
func TestDecoder_ReadHeader(t *testing.T) {
	// noError can be used in the input array to assert the error of the previous operation
	var noError error = nil
	// otherError can be used in the want array to match any non-nil, non-EOF, non-format error
	var otherError = errors.New("any error")
	// errRead simulates an error of the underlying reader
	var errRead = errors.New("read error")

	tt := map[string]struct {
		input  []any
		want   []any
		offset int64
	}{
		"SingleValue": {[]any{0x02, 0x01, 0x15},
			[]any{Header{tagInteger, false, 1}, []byte{0x15}, noError, io.EOF},
			3},
		"MultipleValues": {[]any{0x02, 0x01, 0x15, 0x02, 0x01, 0x03},
			[]any{Header{tagInteger, false, 1}, []byte{0x15}, Header{tagInteger, false, 1}, []byte{0x03}, noError, io.EOF},
			6},
		"EmptyConstructed": {[]any{0x30, 0x00},
			[]any{Header{tagSequence, true, 0}, EndOfContents, io.EOF},
			2},
		"EmptyConstructedIndefinite": {[]any{0x30, 0x80, 0x00, 0x00},
			[]any{Header{tagSequence, true, LengthIndefinite}, EndOfContents, io.EOF},
			4},
		"Constructed": {[]any{0x30, 0x03, 0x02, 0x01, 0x15},
			[]any{Header{tagSequence, true, 3}, Header{tagInteger, false, 1}, []byte{0x15}, EndOfContents, io.EOF},
			5},
		"ConstructedIndefinite": {[]any{0x30, 0x80, 0x02, 0x01, 0x15, 0x00, 0x00},
			[]any{Header{tagSequence, true, LengthIndefinite}, Header{tagInteger, false, 1}, []byte{0x15}, EndOfContents, io.EOF},
			7},
		"IndefiniteInDefinite": {[]any{0x30, 0x07, 0x30, 0x80, 0x02, 0x01, 0x15, 0x00, 0x00},
			[]any{Header{tagSequence, true, 7}, Header{tagSequence, true, LengthIndefinite}, Header{tagInteger, false, 1}, []byte{0x15}, EndOfContents, EndOfContents, io.EOF},
			9},
		"IndefiniteInDefiniteNoEnd": {[]any{0x30, 0x05, 0x30, 0x80, 0x02, 0x01, 0x15},
			[]any{Header{tagSequence, true, 5}, Header{tagSequence, true, LengthIndefinite}, Header{tagInteger, false, 1}, []byte{0x15}, noError, &FormatError{}},
			7},
		"MissingEOC": {[]any{0x30, 0x80, 0x02, 0x01, 0x15},
			[]any{Header{tagSequence, true, LengthIndefinite}, Header{tagInteger, false, 1}, []byte{0x15}, noError, io.ErrUnexpectedEOF},
			5},

		// Unexpected/Invalid End-of-Contents
		"UnexpectedEOC": {[]any{0x30, 0x03, 0x00, 0x00, 0x00},
			[]any{Header{tagSequence, true, 3}, ErrUnexpectedEOC, ErrUnexpectedEOC},
			2},
		"RootEOC": {[]any{0x00, 0x00},
			[]any{ErrUnexpectedEOC},
			0},
		"InvalidEOC": {[]any{0x30, 0x80, 0x00, 0x01, 0x00},
			[]any{Header{tagSequence, true, LengthIndefinite}, ErrInvalidEOC, ErrInvalidEOC},
			2},

		// Testing Tag and Length Values
		"LargeTag": {[]any{0x1F, 0x84, 0x01, 0x00},
			[]any{Header{asn1.Universal(0x0201), false, 0}, []byte{}, noError, io.EOF},
			4},
		"NonMinimalTag": {[]any{0x1F, 0x80, 0x05, 0x00},
			[]any{ErrNonMinimalTag},
			0},
		"LowTagHighForm": {[]any{0x1F, 0x05, 0x00},
			[]any{ErrNonMinimalTag},
			0},
		"TruncatedHighTag": {[]any{0x9F, 0x81},
			[]any{io.ErrUnexpectedEOF},
			0},
		"LargePaddedLength": {[]any{0x04, 0x84, 0x00, 0x00, 0x00, 0x03, 0x01, 0x02, 0x03},
			[]any{Header{tagOctetString, false, 3}, []byte{0x01, 0x02, 0x03}, noError, io.EOF},
			9},
		"ReservedLength": {[]any{0x04, 0xFF, 0x00},
			[]any{ErrReservedLength},
			0},
		"IndefinitePrimitive": {[]any{0x04, 0x80, 0x01, 0x00, 0x00},
			[]any{ErrIndefinitePrimitive},
			0},

		// Structural Errors
		"ChildExceedsParent": {[]any{0x30, 0x03, 0x02, 0x02, 0x15, 0x15},
			[]any{Header{tagSequence, true, 3}, ErrExceedsParent},
			2},
		"HeaderExceedsParent": {[]any{0x30, 0x01, 0x02, 0x00},
			[]any{Header{tagSequence, true, 1}, ErrTruncated},
			2},

		// Reader Errors
		"ReaderError": {[]any{0x30, errRead},
			[]any{errRead},
			0},
		"ReaderErrorInValue": {[]any{0x04, 0x02, 0x01, errRead},
			[]any{Header{tagOctetString, false, 2}, []byte{0x01}, otherError},
			3},
		"UnexpectedEOF": {[]any{0x30, 0x03, 0x02, 0x01},
			[]any{Header{tagSequence, true, 3}, Header{tagInteger, false, 1}, []byte{}, io.ErrUnexpectedEOF},
			4},
	}
	for name, tc := range tt {
		isError := func(err any) bool {
			_, ok := err.(error)
			return ok
		}
		isBytes := func(bs any) bool {
			_, ok := bs.([]byte)
			return ok
		}

		t.Run(name, func(t *testing.T) {
			d := NewDecoder(&testDataReader{tc.input})
			var val io.ReadCloser
			var err error
			var got any
			for i := range tc.want {
				switch want := tc.want[i].(type) {
				case error:
					var op string
					if i > 0 && isBytes(tc.want[i-1]) {
						// expected error during last value read
						// err is already set
						op = "valueReader.Read"
					} else {
						// expect error during next ReadHeader()
						got, _, err = d.ReadHeader()
						op = "d.ReadHeader"
					}

					require.Error(t, err, "%s(): got %v, want %v", op, got, want)
					var ok bool
					var fErr *FormatError
					if err == io.EOF {
						ok = want == io.EOF
					} else if errors.Is(err, want) {
						ok = true
					} else if errors.As(err, &fErr) {
						ok = errors.As(want, &fErr)
					} else {
						//goland:noinspection GoDirectComparisonOfErrors
						ok = want == otherError
					}
					require.True(t, ok, "%s(): got %q, want %q", op, err, want)

					err = nil

				case Header:
					var h Header
					h, val, err = d.ReadHeader()
					require.NoError(t, err, "d.ReadHeader(), want %s", want)
					require.Equal(t, want, h, "d.ReadHeader()")

				case []byte:
					require.NotNil(t, val, "d.ReadHeader() returned no value")
					got, err = io.ReadAll(val)
					if err == nil {
						err = val.Close()
					}
					if i+1 >= len(tc.want) || !isError(tc.want[i+1]) {
						// no errors assertion given, implied no error
						require.NoError(t, err, "valueReader.Read()")
					}
					require.Equal(t, want, got.([]byte), "valueReader.Read()")

				case nil:
					// nil can be used after []byte to assert following ReadHeader errors.

				default:
					t.Fatalf("unexpected type in test case: %T", tc.want[i])
				}
			}
			assert.Equal(t, tc.offset, d.InputOffset(), "d.InputOffset()")
		})
	}
}

func TestDecoder_DER(t *testing.T) {
	tests := map[string]struct {
		input   []byte
		wantErr error
	}{
		"Minimal":    {[]byte{0x04, 0x81, 0x80}, nil},
		"Padded":     {[]byte{0x04, 0x82, 0x00, 0x80}, ErrNonMinimalLength},
		"LongShort":  {[]byte{0x04, 0x81, 0x01, 0x00}, ErrNonMinimalLength},
		"Indefinite": {[]byte{0x30, 0x80, 0x00, 0x00}, ErrIndefiniteLength},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(bytes.NewReader(tc.input))
			d.DER = true
			_, _, err := d.ReadHeader()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			var fErr *FormatError
			assert.ErrorAs(t, err, &fErr)
		})
	}
}

func TestDecoder_Skip(t *testing.T) {
	tests := map[string]struct {
		input  []byte
		read   int
		err    error
		offset int64
	}{
		"Primitive": {[]byte{0x02, 0x01, 0x15},
			1, nil, 3},
		"Constructed": {[]byte{0x30, 0x06, 0x02, 0x01, 0x15, 0x02, 0x01, 0x16},
			1, nil, 8},
		"Indefinite": {[]byte{0x30, 0x80, 0x02, 0x01, 0x15, 0x00, 0x00},
			1, nil, 7},

		"InnerPrimitive": {[]byte{0x30, 0x03, 0x02, 0x01, 0x15, 0x02, 0x01, 0x16},
			2, nil, 5},

		"UnexpectedEOC": {[]byte{0x30, 0x08, 0x02, 0x01, 0x15, 0x00, 0x00, 0x02, 0x01, 0x16},
			1, ErrUnexpectedEOC, 5},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(bytes.NewReader(tc.input))
			for range tc.read {
				_, _, err := d.ReadHeader()
				require.NoError(t, err, "d.ReadHeader()")
			}
			err := d.Skip()
			if tc.err == nil {
				assert.NoError(t, err, "d.Skip()")
			} else {
				assert.ErrorIs(t, err, tc.err, "d.Skip()")
			}
			assert.Equal(t, tc.offset, d.InputOffset(), "d.InputOffset()")
		})
	}
}

func TestDecoder_Stack(t *testing.T) {
	tests := map[string]struct {
		input  []byte
		want   Header
		depth  int
		offset int64
	}{
		"Root": {[]byte{},
			Header{asn1.Tag{}, true, LengthIndefinite}, 0, 0},
		"RootAfterValue": {[]byte{0x02, 0x01, 0x15},
			Header{asn1.Tag{}, true, LengthIndefinite}, 0, 3},
		"SingleValue": {[]byte{0x02, 0x01},
			Header{tagInteger, false, 1}, 1, 2},
		"NestedConstructed": {[]byte{0x30, 0x05, 0x30, 0x03, 0x24, 0x01},
			Header{asn1.Universal(asn1.TagOctetString), true, 1}, 3, 6},
		"InvalidLength": {[]byte{0x30, 0x05, 0x04, 0x80, 0x01, 0x00, 0x00},
			Header{tagSequence, true, 5}, 1, 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder(bytes.NewReader(tc.input))
			var err error
			var val io.ReadCloser
			for err == nil {
				_, val, err = d.ReadHeader()
				if err == nil && val != nil {
					err = val.Close()
				}
			}
			assert.Equal(t, tc.depth, d.StackDepth(), "d.StackDepth()")
			assert.Equal(t, tc.want, d.StackIndex(d.StackDepth()), "d.StackIndex()")
			assert.Equal(t, tc.offset, d.InputOffset(), "d.InputOffset()")
		})
	}
}

func TestDecoder_DataValueOffset(t *testing.T) {
	data := []byte{0x30, 0x06, 0x02, 0x01, 0x15, 0x02, 0x01, 0x16}
	d := NewDecoder(bytes.NewReader(data))
	want := []int64{0, 2, 5}
	for i, off := range want {
		_, val, err := d.ReadHeader()
		require.NoError(t, err, "d.ReadHeader() [%d]", i)
		assert.Equal(t, off, d.DataValueOffset(), "d.DataValueOffset() [%d]", i)
		if val != nil {
			require.NoError(t, val.Close(), "val.Close() [%d]", i)
		}
	}
}

func TestFormatError_Error(t *testing.T) {
	err := &FormatError{Err: ErrReservedLength, ByteOffset: 4, Header: Header{tagSet, true, 6}}
	want := "asn1: format error within [UNIVERSAL 17]/c:6 for TLV beginning at offset 4: reserved length octet 0xFF"
	assert.Equal(t, want, err.Error())
	assert.ErrorIs(t, err, ErrReservedLength)
}
