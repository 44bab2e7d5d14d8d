// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"errors"
	"io"
	"math"
	"math/bits"

	"codello.dev/krypt/asn1"
	"codello.dev/krypt/asn1/internal/vlq"
)

//region Sizes

// TagSize returns the number of identifier octets needed to encode tag.
func TagSize(tag asn1.Tag) int {
	if tag.Number < 31 {
		return 1
	}
	return 1 + vlq.Size(tag.Number)
}

// LengthSize returns the number of length octets needed to encode length. The
// indefinite length uses a single octet.
func LengthSize(length int) int {
	if length < 128 {
		return 1
	}
	return 1 + (bits.Len(uint(length))+7)/8
}

//endregion

//region Encoding

// AppendTag appends the identifier octets for tag to b. Numbers up to 30 use
// the low-tag form. Larger numbers use the high-tag form where the tag number
// follows the initial octet in base 128, most significant group first.
//
// AppendTag does not validate tag. Use [WriteTag] or [Encoder] for validated
// output.
func AppendTag(b []byte, tag asn1.Tag, constructed bool) []byte {
	c := byte(tag.Class&0b11) << 6
	if constructed {
		c |= 0x20
	}
	if tag.Number < 31 {
		return append(b, c|byte(tag.Number))
	}
	return vlq.Append(append(b, c|0x1f), tag.Number)
}

// AppendLength appends the length octets for length to b. Lengths up to 127
// use the short form. Larger lengths use the minimal long form. Any negative
// length is encoded as [LengthIndefinite].
func AppendLength(b []byte, length int) []byte {
	if length < 0 {
		return append(b, 0x80)
	}
	if length < 128 {
		return append(b, byte(length))
	}
	numBytes := (bits.Len(uint(length)) + 7) / 8
	b = append(b, 0x80|byte(numBytes))
	for ; numBytes > 0; numBytes-- {
		b = append(b, byte(length>>uint((numBytes-1)*8)))
	}
	return b
}

// AppendHeader appends the encoding of h to b. Like [AppendTag] no validation
// is performed.
func AppendHeader(b []byte, h Header) []byte {
	return AppendLength(AppendTag(b, h.Tag, h.Constructed), h.Length)
}

// WriteTag writes the identifier octets for tag to w. It returns the number of
// bytes written. An error is returned if tag cannot be encoded or w returns an
// error.
func WriteTag(w io.ByteWriter, tag asn1.Tag, constructed bool) (int, error) {
	if !tag.IsValid() {
		return 0, ErrInvalidTag
	}
	var buf [16]byte
	return writeBytes(w, AppendTag(buf[:0], tag, constructed))
}

// WriteLength writes the length octets for length to w. It returns the number
// of bytes written.
func WriteLength(w io.ByteWriter, length int) (int, error) {
	if length < LengthIndefinite {
		return 0, ErrInvalidLength
	}
	var buf [16]byte
	return writeBytes(w, AppendLength(buf[:0], length))
}

// WriteHeader writes the identifier and length octets of h to w. Headers that
// cannot be encoded are rejected.
func WriteHeader(w io.ByteWriter, h Header) (int, error) {
	if err := checkHeader(h); err != nil {
		return 0, err
	}
	var buf [32]byte
	return writeBytes(w, AppendHeader(buf[:0], h))
}

// checkHeader validates that h can be encoded as a header.
func checkHeader(h Header) error {
	switch {
	case !h.Tag.IsValid():
		return ErrInvalidTag
	case h.Length < LengthIndefinite:
		return ErrInvalidLength
	case !h.Constructed && h.Length == LengthIndefinite:
		return ErrIndefinitePrimitive
	}
	return nil
}

func writeBytes(w io.ByteWriter, p []byte) (n int, err error) {
	for ; n < len(p); n++ {
		if err = w.WriteByte(p[n]); err != nil {
			return n, err
		}
	}
	return n, nil
}

//endregion

//region Decoding

// countingReader counts the bytes read from an io.ByteReader.
type countingReader struct {
	r io.ByteReader
	n int
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// ReadTag reads identifier octets from r. It returns the tag, whether the
// constructed bit is set and the number of bytes consumed.
//
// If r is exhausted before the first byte, io.EOF is returned. A high-tag form
// that ends before its final octet returns [io.ErrUnexpectedEOF]. Tag numbers
// with leading zero groups or below 31 in the high-tag form are rejected with
// [ErrNonMinimalTag] and numbers larger than [asn1.MaxTag] with
// [ErrTagTooLarge].
func ReadTag(r io.ByteReader) (asn1.Tag, bool, int, error) {
	cr := &countingReader{r: r}
	b, err := cr.ReadByte()
	if err != nil {
		return asn1.Tag{}, false, 0, err
	}
	tag := asn1.Tag{Class: asn1.Class(b >> 6), Number: uint(b & 0x1f)}
	constructed := b&0x20 == 0x20

	// If the bottom five bits are set, then the tag number is actually VLQ-encoded
	if b&0x1f == 0x1f {
		n, err := vlq.ReadMinimal[uint64](cr)
		switch {
		case errors.Is(err, io.EOF):
			return tag, constructed, cr.n, io.ErrUnexpectedEOF
		case errors.Is(err, vlq.ErrNotMinimal):
			return tag, constructed, cr.n, ErrNonMinimalTag
		case errors.Is(err, vlq.ErrOverflow):
			return tag, constructed, cr.n, ErrTagTooLarge
		case err != nil:
			return tag, constructed, cr.n, err
		case n > asn1.MaxTag:
			return tag, constructed, cr.n, ErrTagTooLarge
		case n < 0x1f:
			// numbers below 31 must use the low-tag form
			return tag, constructed, cr.n, ErrNonMinimalTag
		}
		tag.Number = uint(n)
	}
	return tag, constructed, cr.n, nil
}

// ReadLength reads length octets from r. It returns the decoded length and the
// number of bytes consumed. The indefinite form is reported as
// [LengthIndefinite].
//
// If minimal is true the length must use the minimal number of octets as
// required by DER: long forms with leading zero octets or for lengths below
// 128 are rejected with [ErrNonMinimalLength].
func ReadLength(r io.ByteReader, minimal bool) (int, int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b&0x80 == 0:
		// The length is encoded in the bottom 7 bits.
		return int(b), 1, nil
	case b == 0x80:
		return LengthIndefinite, 1, nil
	case b == 0xff:
		return 0, 1, ErrReservedLength
	}

	// Bottom 7 bits give the number of length bytes to follow.
	length, n := 0, 1
	for numBytes := int(b & 0x7f); numBytes > 0; numBytes-- {
		if b, err = r.ReadByte(); err != nil {
			return 0, n, noEOF(err)
		}
		n++
		if minimal && length == 0 && b == 0 {
			return 0, n, ErrNonMinimalLength
		}
		if length > math.MaxInt>>8 {
			// We can't shift length up without overflowing.
			return 0, n, ErrLengthTooLarge
		}
		length = length<<8 | int(b)
	}
	if minimal && length < 128 {
		return 0, n, ErrNonMinimalLength
	}
	return length, n, nil
}

// ReadHeader reads a complete header from r and returns it together with the
// number of bytes consumed. If der is true the DER restrictions on length
// octets apply and the indefinite length is rejected.
//
// ReadHeader returns io.EOF only if r is exhausted before the first byte.
// Primitive headers with indefinite length are rejected.
func ReadHeader(r io.ByteReader, der bool) (Header, int, error) {
	tag, constructed, n, err := ReadTag(r)
	h := Header{Tag: tag, Constructed: constructed}
	if err != nil {
		return h, n, err
	}
	length, m, err := ReadLength(r, der)
	n += m
	if err != nil {
		return h, n, noEOF(err)
	}
	h.Length = length
	switch {
	case !constructed && length == LengthIndefinite:
		return h, n, ErrIndefinitePrimitive
	case der && length == LengthIndefinite:
		return h, n, ErrIndefiniteLength
	}
	return h, n, nil
}

//endregion
