// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tlv implements the tag-length-value (TLV) framing used by the Basic
// Encoding Rules (BER) and the Distinguished Encoding Rules (DER) as specified
// in [Rec. ITU-T X.690].
//
// This package deals with the syntactic layer of BER: the identifier octets
// (class, primitive/constructed flag and tag number) and the length octets of
// each data value. The semantic layer, including the contents octets of the
// universal types, is implemented in [codello.dev/krypt/asn1/ber].
//
// # Headers and Values
//
// The identifier and length octets of a data value (we call them a header) are
// represented by the [Header] type. The functions [ReadHeader], [WriteHeader]
// and [AppendHeader] convert single headers. The [Decoder] and [Encoder] types
// process a stream of headers and primitive values and validate that the
// sequence of TLVs forms a well-formed encoding.
//
// The end of a constructed element is signalled by a zero [Header] (or,
// equivalently, [EndOfContents]). [Decoder] and [Encoder] produce and expect an
// end-of-contents marker at the end of every constructed encoding, regardless
// of whether it uses the definite or indefinite-length form. Only the
// indefinite-length form writes the two zero octets to the wire.
//
// [Rec. ITU-T X.690]: https://www.itu.int/rec/T-REC-X.690
package tlv

import (
	"math"
	"strconv"

	"codello.dev/krypt/asn1"
)

// TagEndOfContents is the tag number that signifies the end of a constructed
// element. The following are the same:
//
//	tlv.Header{}
//	tlv.Header{Tag: asn1.Universal(tlv.TagEndOfContents)}
//	tlv.EndOfContents
const TagEndOfContents = asn1.TagReserved

// EndOfContents is the end-of-contents marker signalling the end of a
// constructed element.
var EndOfContents = Header{}

// LengthIndefinite when used as a magic number for the length of a [Header]
// indicates that the data value is encoded using the constructed
// indefinite-length format.
const LengthIndefinite = -1

// CombinedLength returns the length of a data value encoding (not including its
// header) consisting of data value encodings of the specified lengths. If any
// of the passed lengths are [LengthIndefinite] or the result does not fit into
// the int type, the result is [LengthIndefinite].
func CombinedLength(ls ...int) int {
	sum := 0
	for _, l := range ls {
		if l == LengthIndefinite {
			return LengthIndefinite
		}
		if l > math.MaxInt-sum { // overflow
			return LengthIndefinite
		}
		sum += l
	}
	return sum
}

// MinLength returns the smaller of the two given lengths. This function is
// aware of potentially indefinite lengths and treats them properly.
func MinLength(l1, l2 int) int {
	// this works because the bit pattern of LengthIndefinite is 1111...1, which is
	// the largest uint. So any other value will be smaller.
	//
	// max(..., LengthIndefinite) fixes invalid negative lengths
	return max(int(min(uint(l1), uint(l2))), LengthIndefinite)
}

// Header represents a TLV header. The [Header.Length] may be [LengthIndefinite]
// if an indefinite-length encoding is used. It is invalid to use the
// indefinite-length encoding when [Header.Constructed] = false.
type Header struct {
	Tag         asn1.Tag
	Constructed bool
	Length      int
}

// IsEndOfContents reports whether h is the end-of-contents marker.
func (h Header) IsEndOfContents() bool {
	return h == Header{}
}

// Size returns the number of bytes of the encoded header.
func (h Header) Size() int {
	return TagSize(h.Tag) + LengthSize(h.Length)
}

// String returns a string representation of h.
func (h Header) String() string {
	if h.IsEndOfContents() {
		return "EndOfContents"
	}
	s := h.Tag.String()
	if h.Constructed {
		s += "/c"
	} else {
		s += "/p"
	}
	if h.Length == LengthIndefinite {
		return s + ":indefinite"
	}
	return s + ":" + strconv.Itoa(h.Length)
}
