// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ber implements the ASN.1 Basic Encoding Rules (BER) and the
// Distinguished Encoding Rules (DER) as defined in [Rec. ITU-T X.690]. See also
// “[A Layman's Guide to a Subset of ASN.1, BER, and DER]”.
//
// Encoded data is represented as a tree of [Node] values. Primitive nodes hold
// a Go value that represents their contents. Constructed nodes hold an ordered
// list of child nodes. See the package documentation of
// [codello.dev/krypt/asn1] for the Go types used for the universal ASN.1
// types.
//
// Nodes can be built using [New], [Sequence], [Set] and [Constructed]. [Encode]
// and [Node.WriteTo] convert a tree into bytes. [Decode], [DecodeAll] and the
// streaming [Decoder] convert bytes into a tree.
//
// # Decoded Values
//
// During decoding the contents of primitive values in the UNIVERSAL class are
// interpreted by a static table keyed by the tag number. Values of all other
// classes as well as unregistered universal tags keep their contents octets as
// a []byte. Constructed encodings of string types are kept as constructed nodes
// with one child per segment. Use [Node.Bytes] to obtain the concatenated
// contents.
//
// A zero-length string decodes to the empty value of its Go type (for example
// "" or an empty, non-nil []byte), never to nil. Encoding such a node again
// yields a zero-length value.
//
// # Errors
//
// Malformed input is reported as a [*FormatError] containing the input offset
// of the offending data value. Invalid arguments to [New] and related functions
// are reported as an [*ArgumentError]. Trees that cannot be encoded produce an
// [*EncodeError].
//
// [Rec. ITU-T X.690]: https://www.itu.int/rec/T-REC-X.690
// [A Layman's Guide to a Subset of ASN.1, BER, and DER]: http://luca.ntop.org/Teaching/Appunti/asn1.html
package ber

import (
	"errors"
	"fmt"
	"strings"

	"codello.dev/krypt/asn1"
	"codello.dev/krypt/asn1/tlv"
)

// DefaultMaxDepth is the maximum nesting depth of data values accepted by a
// [Decoder] unless configured otherwise.
const DefaultMaxDepth = 64

//region error types

// FormatError represents malformed BER input. See [tlv.FormatError] for
// details.
type FormatError = tlv.FormatError

// ErrTooDeep indicates that encoded data values are nested deeper than allowed.
var ErrTooDeep = errors.New("data values nested too deeply")

// ArgumentError indicates that an invalid argument was passed to a function
// constructing a [Node]. Construction functions validate their arguments
// eagerly, so an ArgumentError is never deferred until encoding.
type ArgumentError struct {
	Arg   string // name of the invalid argument
	Value any    // the invalid value
	Err   error
}

func (e *ArgumentError) Error() string {
	var s strings.Builder
	s.WriteString("ber: invalid argument ")
	s.WriteString(e.Arg)
	if e.Value != nil {
		s.WriteString(" (")
		fmt.Fprintf(&s, "%#v", e.Value)
		s.WriteString(")")
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// EncodeError indicates that a [Node] could not be encoded. This happens for
// trees that have been assembled by hand and violate the invariants
// established by [New].
type EncodeError struct {
	Tag asn1.Tag // tag of the offending node
	Err error
}

func (e *EncodeError) Error() string {
	var s strings.Builder
	s.WriteString("ber: encode error for ")
	s.WriteString(e.Tag.String())
	s.WriteString(": ")
	s.WriteString(e.Err.Error())
	return s.String()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

//endregion
