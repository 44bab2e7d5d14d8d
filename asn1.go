// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asn1 defines the tags and Go value types of ASN.1 as defined in
// [Rec. ITU-T X.680]. It is the foundation of the BER/DER codec implemented in
// the subpackages:
//
//   - Package [codello.dev/krypt/asn1/tlv] implements the syntactic layer: the
//     identifier and length octets of a tag-length-value encoding.
//   - Package [codello.dev/krypt/asn1/ber] implements the semantic layer: a tree
//     of tagged values and the contents octets of the universal types.
//
// # Mapping of ASN.1 Types to Go Types
//
// Decoded values of the UNIVERSAL class are represented by the following Go
// types:
//
//   - BOOLEAN is a Go bool.
//   - INTEGER is a [*math/big.Int].
//   - ENUMERATED is an [Enumerated].
//   - NULL is a [Null].
//   - OCTET STRING is a byte slice.
//   - OBJECT IDENTIFIER and RELATIVE-OID are [ObjectIdentifier] and
//     [RelativeOID].
//   - BIT STRING is a [BitString].
//   - UTF8String is a Go string. The other restricted character string types
//     have their own named string types such as [PrintableString] or
//     [BMPString]. The contents of all string types are kept verbatim. No
//     character set conversion takes place.
//   - UTCTime and GeneralizedTime are [UTCTime] and [GeneralizedTime].
//
// # Tagging
//
// A [Tag] consists of a [Class] and a tag number. Overriding the tag of a
// value replaces its intrinsic UNIVERSAL tag (IMPLICIT tagging). When only a
// tag number is given the class defaults to [ClassContextSpecific].
//
// [Rec. ITU-T X.680]: https://www.itu.int/rec/T-REC-X.680
package asn1

import (
	"errors"
	"strconv"
	"strings"
)

// Tag constitutes an ASN.1 tag, consisting of its class and number. For
// details, see Section 8 of Rec. ITU-T X.680.
type Tag struct {
	Class  Class
	Number uint
}

// MaxTag is the largest tag number supported by this module. Larger tag
// numbers are rejected during decoding.
const MaxTag = 1<<31 - 1

// Universal returns the UNIVERSAL tag with the given number.
func Universal(n uint) Tag {
	return Tag{Class: ClassUniversal, Number: n}
}

// IsValid reports whether t has a valid class and a supported number.
func (t Tag) IsValid() bool {
	return t.Class.IsValid() && t.Number <= MaxTag
}

// String returns a string representation t in a format similar to the one used
// in ASN.1 notation. The tag number is enclosed by square brackets and prefixed
// with the class used. To avoid ambiguity the UNIVERSAL word is used for
// universal tags, although this is not valid ASN.1 syntax.
func (t Tag) String() string {
	if t.Class == ClassContextSpecific {
		return "[" + strconv.FormatUint(uint64(t.Number), 10) + "]"
	}
	return "[" + strings.ToUpper(t.Class.String()) + " " + strconv.FormatUint(uint64(t.Number), 10) + "]"
}

// Class holds the class part of an ASN.1 tag. The class acts as a namespace for
// the tag number. A Class value is an unsigned 2-bit integer. Class values
// whose value exceeds 2 bits are invalid.
//
//go:generate stringer -type=Class -trimprefix=Class
type Class uint8

// IsValid reports whether c is a valid Class value.
func (c Class) IsValid() bool {
	return c <= 3
}

// Predefined [Class] constants. These are all the possible values that can be
// encoded in the [Class] type.
const (
	ClassUniversal Class = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

// ErrUnknownClass is returned by [ParseClass] for names that do not denote a
// tag class.
var ErrUnknownClass = errors.New("asn1: unknown tag class")

// ParseClass returns the class with the given name. Names are matched case
// insensitively and underscores are ignored, so "CONTEXT_SPECIFIC" and
// "ContextSpecific" both denote [ClassContextSpecific].
func ParseClass(name string) (Class, error) {
	key := strings.ToUpper(strings.ReplaceAll(name, "_", ""))
	for c := ClassUniversal; c <= ClassPrivate; c++ {
		if key != "" && key == strings.ToUpper(c.String()) {
			return c, nil
		}
	}
	return 0, ErrUnknownClass
}

// TagReserved is a reserved tag number in the [ClassUniversal] namespace to be
// used by encoding rules. This assignment is defined in Rec. ITU-T X.680,
// Section 8, Table 1.
const TagReserved uint = 0

// These are some ASN.1 tag numbers are defined in the [ClassUniversal]
// namespace. These assignments are defined in Rec. ITU-T X.680, Section 8, Table
// 1.
const (
	TagBoolean          uint = 1
	TagInteger          uint = 2
	TagBitString        uint = 3
	TagOctetString      uint = 4
	TagNull             uint = 5
	TagOID              uint = 6
	TagObjectDescriptor uint = 7
	TagExternal         uint = 8
	TagReal             uint = 9
	TagEnumerated       uint = 10
	TagEmbeddedPDV      uint = 11
	TagUTF8String       uint = 12
	TagRelativeOID      uint = 13
	TagTime             uint = 14
	TagSequence         uint = 16
	TagSet              uint = 17
	TagNumericString    uint = 18
	TagPrintableString  uint = 19
	TagTeletexString    uint = 20
	TagT61String             = TagTeletexString
	TagVideotexString   uint = 21
	TagIA5String        uint = 22
	TagUTCTime          uint = 23
	TagGeneralizedTime  uint = 24
	TagGraphicString    uint = 25
	TagVisibleString    uint = 26
	TagISO646String          = TagVisibleString
	TagGeneralString    uint = 27
	TagUniversalString  uint = 28
	TagCharacterString  uint = 29
	TagBMPString        uint = 30
	TagDate             uint = 31
	TagTimeOfDay        uint = 32
	TagDateTime         uint = 33
	TagDuration         uint = 34
)
