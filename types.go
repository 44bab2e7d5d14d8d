// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
	"unsafe"
)

//region [UNIVERSAL 1] BOOLEAN
// Implemented as Go bool type.
//endregion

//region [UNIVERSAL 2] INTEGER
// Implemented as *big.Int.
//endregion

//region [UNIVERSAL 3] BIT STRING

// BitString implements the ASN.1 BIT STRING type. A bit string is padded up to
// the nearest byte in memory and the number of valid bits is recorded. Padding
// bits will be encoded and decoded as zero bits.
//
// See also section 22 of Rec. ITU-T X.680.
type BitString struct {
	Bytes     []byte // bits packed into bytes.
	BitLength int    // length in bits.
}

// IsValid reports whether the number of bytes in s matches the indicated
// BitLength.
func (s BitString) IsValid() bool {
	return s.BitLength >= 0 && len(s.Bytes) == (s.BitLength+8-1)/8
}

// Len returns the number of bits in s.
func (s BitString) Len() int {
	return s.BitLength
}

// Padding returns the number of unused bits in the last byte of s.
func (s BitString) Padding() int {
	return (8 - s.BitLength%8) % 8
}

// At returns the bit at the given index. If the index is out of range At panics.
func (s BitString) At(i int) int {
	if i < 0 || i >= s.BitLength {
		panic("index out of range")
	}
	x := i / 8
	y := 7 - uint(i%8)
	return int(s.Bytes[x]>>y) & 1
}

// Equal reports whether s and other contain the same bits. Padding bits are
// ignored.
func (s BitString) Equal(other BitString) bool {
	if s.BitLength != other.BitLength || !s.IsValid() || !other.IsValid() {
		return false
	}
	if len(s.Bytes) == 0 {
		return true
	}
	last := len(s.Bytes) - 1
	mask := ^byte(1<<uint(s.Padding()) - 1)
	return slices.Equal(s.Bytes[:last], other.Bytes[:last]) && s.Bytes[last]&mask == other.Bytes[last]&mask
}

// RightAlign returns a slice where the padding bits are at the beginning. The
// slice may share memory with the BitString.
func (s BitString) RightAlign() []byte {
	shift := uint(8 - (s.BitLength % 8))
	if shift == 8 || len(s.Bytes) == 0 {
		return s.Bytes
	}

	a := make([]byte, len(s.Bytes))
	a[0] = s.Bytes[0] >> shift
	for i := 1; i < len(s.Bytes); i++ {
		a[i] = s.Bytes[i-1] << (8 - shift)
		a[i] |= s.Bytes[i] >> shift
	}

	return a
}

// String formats s into a readable binary representation. Bits will be grouped
// into bytes. The last group may have fewer than 8 characters.
func (s BitString) String() string {
	var sb strings.Builder
	sb.Grow(s.BitLength + s.BitLength/8)
	for i := 0; i < s.BitLength; i++ {
		if i > 0 && i%8 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('0' + byte(s.At(i)))
	}
	return sb.String()
}

//endregion

//region [UNIVERSAL 4] OCTET STRING
// Implemented as Go byte slice.
//endregion

//region [UNIVERSAL 5] NULL

// Null represents the ASN.1 NULL type.
//
// See also section 24 of Rec. ITU-T X.680.
type Null struct{}

//endregion

//region [UNIVERSAL 6] OBJECT IDENTIFIER

// An ObjectIdentifier represents an ASN.1 OBJECT IDENTIFIER. The semantics of an object identifier are specified in [Rec. ITU-T X.660].
//
// See also section 32 of Rec. ITU-T X.680.
//
// [Rec. ITU-T X.660]: https://www.itu.int/rec/T-REC-X.660
type ObjectIdentifier []uint

var errInvalidOID = errors.New("asn1: invalid object identifier")

// ParseObjectIdentifier parses the dot-separated notation of an object
// identifier, such as "1.2.840.113549".
func ParseObjectIdentifier(s string) (ObjectIdentifier, error) {
	rel, err := ParseRelativeOID(s)
	if err != nil {
		return nil, err
	}
	oid := ObjectIdentifier(rel)
	if !oid.IsValid() {
		return nil, errInvalidOID
	}
	return oid, nil
}

// IsValid reports whether oid can be encoded. An object identifier needs at
// least two arcs and the first arc must be 0, 1 or 2. The second arc must be
// at most 39 unless the first arc is 2. If the first arc is 2, the combined
// first subidentifier 80+oid[1] must fit into a uint.
func (oid ObjectIdentifier) IsValid() bool {
	if len(oid) < 2 || oid[0] > 2 {
		return false
	}
	if oid[0] == 2 {
		return oid[1] <= math.MaxUint-80
	}
	return oid[1] < 40
}

// Equal reports whether oid and other represent the same identifier.
func (oid ObjectIdentifier) Equal(other ObjectIdentifier) bool {
	return slices.Equal(oid, other)
}

// String returns the dot-separated notation of oid.
func (oid ObjectIdentifier) String() string {
	return RelativeOID(oid).String()
}

//endregion

//region [UNIVERSAL 7] ObjectDescriptor
// Not implemented. Decoded as raw bytes.
//endregion

//region [UNIVERSAL 8] EXTERNAL
// Not implemented. Decoded as raw bytes.
//endregion

//region [UNIVERSAL 09] REAL
// Not implemented. Decoded as raw bytes.
//endregion

//region [UNIVERSAL 10] ENUMERATED

// Enumerated represents a value of the ASN.1 ENUMERATED type.
//
// See also section 20 of Rec. ITU-T X.680.
type Enumerated int

//endregion

//region [UNIVERSAL 12] UTF8String
// Implemented as Go string type. The string is not validated to be UTF-8.
//endregion

//region [UNIVERSAL 13] RELATIVE-OID

// RelativeOID represents the ASN.1 RELATIVE OID type. This is similar to the
// [ObjectIdentifier] type, but a RelativeOID is only a suffix of an OID.
//
// See also section 32 of Rec. ITU-T X.680.
type RelativeOID []uint

// ParseRelativeOID parses the dot-separated notation of a relative object
// identifier.
func ParseRelativeOID(s string) (RelativeOID, error) {
	if s == "" {
		return nil, errInvalidOID
	}
	parts := strings.Split(s, ".")
	oid := make(RelativeOID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, strconv.IntSize)
		if err != nil {
			return nil, errInvalidOID
		}
		oid[i] = uint(v)
	}
	return oid, nil
}

// Equal reports whether oid and other represent the same identifier.
func (oid RelativeOID) Equal(other RelativeOID) bool {
	return slices.Equal(oid, other)
}

// String returns the dot-separated notation of oid.
func (oid RelativeOID) String() string {
	var s strings.Builder
	s.Grow(32)

	buf := make([]byte, 0, 19)
	for i, v := range oid {
		if i > 0 {
			s.WriteByte('.')
		}
		s.Write(strconv.AppendUint(buf, uint64(v), 10))
	}

	return s.String()
}

//endregion

//region [UNIVERSAL 16] SEQUENCE and [UNIVERSAL 17] SET
// Represented as constructed nodes in package ber.
//endregion

//region Restricted character strings

// The restricted character string types below hold the contents octets of
// their ASN.1 counterparts verbatim. No transcoding is done: a BMPString holds
// big endian UTF-16 code units and a UniversalString holds big endian UTF-32
// code units exactly as they appear in an encoding.
//
// Some of the types offer an IsValid method that checks the character set of
// the type. Values are validated when a node is constructed from them but not
// when they are decoded.
type (
	// NumericString corresponds to the ASN.1 NumericString type. A NumericString
	// can only consist of the digits 0-9 and space.
	NumericString string

	// PrintableString represents the ASN.1 type PrintableString. A printable string
	// can only contain the following ASCII characters:
	//
	//	A-Z	// upper case letters
	//	a-z	// lower case letters
	//	0-9	// digits
	//	 	// space
	//	'	// apostrophe
	//	()	// Parenthesis
	//	+-/	// plus, hyphen, solidus
	//	.,:	// fill stop, comma, colon
	//	=	// equals sign
	//	?	// question mark
	PrintableString string

	// TeletexString represents the ASN.1 TeletexString (T61String) type.
	TeletexString string

	// VideotexString represents the ASN.1 VideotexString type.
	VideotexString string

	// IA5String represents the ASN.1 type IA5String. An IA5String must consist
	// of ASCII characters only.
	IA5String string

	// GraphicString represents the ASN.1 GraphicString type.
	GraphicString string

	// VisibleString represents the ASN.1 VisibleString (ISO646String) type. It is
	// limited to visible ASCII characters.
	VisibleString string

	// GeneralString represents the ASN.1 GeneralString type.
	GeneralString string

	// UniversalString represents the ASN.1 UniversalString type.
	UniversalString string

	// BMPString represents the ASN.1 BMPString type.
	BMPString string
)

// IsValid reports whether s consists only of allowed numeric characters.
func (s NumericString) IsValid() bool {
	for i := 0; i < len(s); i++ {
		if !isNumeric(s[i]) {
			return false
		}
	}
	return true
}

// isNumeric reports whether b can appear in an ASN.1 NumericString.
func isNumeric(b byte) bool {
	return '0' <= b && b <= '9' || b == ' '
}

// IsValid reports whether s consists only of printable characters.
func (s PrintableString) IsValid() bool {
	for i := 0; i < len(s); i++ {
		if !isPrintable(s[i]) {
			return false
		}
	}
	return true
}

// isPrintable reports whether the given b is in the ASN.1 PrintableString set.
func isPrintable(b byte) bool {
	return 'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z' ||
		'0' <= b && b <= '9' ||
		'\'' <= b && b <= ')' ||
		'+' <= b && b <= '/' ||
		b == ' ' ||
		b == ':' ||
		b == '=' ||
		b == '?'
}

// IsValid reports whether the contents of s consist only of ASCII characters.
func (s IA5String) IsValid() bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// IsValid reports whether s only consists of visible ASCII characters.
func (s VisibleString) IsValid() bool {
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] >= 0x7F {
			return false
		}
	}
	return true
}

// IsValid reports whether the length of s is a multiple of two.
func (s BMPString) IsValid() bool {
	return len(s)%2 == 0
}

// IsValid reports whether the length of s is a multiple of four.
func (s UniversalString) IsValid() bool {
	return len(s)%4 == 0
}

//endregion

//region [UNIVERSAL 23] UTCTime

// UTCTime represents the corresponding ASN.1 type. Only dates between
// 1950 and 2049 can be represented by this type.
//
// See also section 47 of Rec. ITU-T X.680.
type UTCTime time.Time

var (
	errInvalidUTCTime         = errors.New("asn1: invalid UTCTime")
	errInvalidGeneralizedTime = errors.New("asn1: invalid GeneralizedTime")
)

// ParseUTCTime parses the ASN.1 representation of a UTCTime, for example
// "620723161203Z" or "4807230812-0530". Seconds are optional.
func ParseUTCTime(s string) (UTCTime, error) {
	if len(s) < 11 || len(s) > 17 {
		return UTCTime{}, errInvalidUTCTime
	}
	year := atoiN[int](s, 2)
	month := atoiN[time.Month](s[2:], 2)
	day := atoiN[int](s[4:], 2)
	hour := atoiN[int](s[6:], 2)
	minute := atoiN[int](s[8:], 2)
	s = s[10:]
	second := atoiN[int](s, 2)
	if second >= 0 {
		s = s[2:]
	} else {
		second = 0
	}
	loc := parseLocation(s)
	if loc == nil {
		return UTCTime{}, errInvalidUTCTime
	}

	// UTCTime only encodes times prior to 2050. See https://tools.ietf.org/html/rfc5280#section-4.1.2.5.1
	if year < 0 {
		return UTCTime{}, errInvalidUTCTime
	} else if year <= 49 {
		year += 2000
	} else {
		year += 1900
	}
	ret := time.Date(year, month, day, hour, minute, second, 0, loc)
	if ret.Year() != year || ret.Month() != month || ret.Day() != day || ret.Hour() != hour || ret.Minute() != minute || ret.Second() != second {
		return UTCTime{}, errInvalidUTCTime
	}
	return UTCTime(ret), nil
}

// IsValid reports whether the year of t is between 1950 and 2049.
func (t UTCTime) IsValid() bool {
	year := time.Time(t).Year()
	return year >= 1950 && year < 2050
}

// Equal reports whether t and other represent the same time instant.
func (t UTCTime) Equal(other UTCTime) bool {
	return time.Time(t).Equal(time.Time(other))
}

// String returns the time of t in the format YYMMDDhhmmssZ or YYMMDDhhmmss+hhmm.
func (t UTCTime) String() string {
	tt := time.Time(t)
	b := strings.Builder{}
	b.Grow(17)
	b.WriteString(itoaN(tt.Year()%100, 2))
	b.WriteString(itoaN(tt.Month(), 2))
	b.WriteString(itoaN(tt.Day(), 2))
	b.WriteString(itoaN(tt.Hour(), 2))
	b.WriteString(itoaN(tt.Minute(), 2))
	b.WriteString(itoaN(tt.Second(), 2))
	writeOffset(&b, tt)
	return b.String()
}

//endregion

//region [UNIVERSAL 24] GeneralizedTime

// GeneralizedTime represents the corresponding ASN.1 type. This type can
// represent dates between years 1 and 9999. Sub-nanosecond precision is
// silently discarded during parsing.
//
// See also section 46 of Rec. ITU-T X.680.
type GeneralizedTime time.Time

// ParseGeneralizedTime parses the ASN.1 representation of a GeneralizedTime,
// for example "19851106210627.3Z". Minutes, seconds and the fractional part
// are optional. A missing time zone denotes local time.
func ParseGeneralizedTime(s string) (GeneralizedTime, error) {
	if len(s) < 10 {
		return GeneralizedTime{}, errInvalidGeneralizedTime
	}
	year := atoiN[int](s, 4)
	month := atoiN[time.Month](s[4:], 2)
	day := atoiN[int](s[6:], 2)
	hour := atoiN[time.Duration](s[8:], 2)
	if year < 0 || hour < 0 || 23 < hour {
		return GeneralizedTime{}, errInvalidGeneralizedTime
	}
	s = s[10:]
	dur := hour * time.Hour
	unit := time.Hour // unit for fractional time
	if len(s) >= 2 && '0' <= s[0] && s[0] <= '9' {
		minute := atoiN[time.Duration](s, 2)
		if minute < 0 || 59 < minute {
			return GeneralizedTime{}, errInvalidGeneralizedTime
		}
		dur += minute * time.Minute
		unit = time.Minute
		s = s[2:]
	}
	if len(s) >= 2 && '0' <= s[0] && s[0] <= '9' {
		second := atoiN[time.Duration](s, 2)
		if second < 0 || 59 < second {
			return GeneralizedTime{}, errInvalidGeneralizedTime
		}
		unit = time.Second
		dur += second * time.Second
		s = s[2:]
	}
	if len(s) > 0 && (s[0] == '.' || s[0] == ',') {
		i := 1
		for ; i < len(s); i++ {
			if s[i] < '0' || '9' < s[i] {
				break
			}
			unit /= 10
			dur += time.Duration(s[i]-'0') * unit
		}
		if i == 1 {
			return GeneralizedTime{}, errInvalidGeneralizedTime
		}
		s = s[i:]
	}
	loc := time.Local
	if len(s) > 0 {
		if loc = parseLocation(s); loc == nil {
			return GeneralizedTime{}, errInvalidGeneralizedTime
		}
	}
	ret := time.Date(year, month, day, 0, 0, 0, 0, loc)
	ret = ret.Add(dur)
	if ret.Year() != year || ret.Month() != month || ret.Day() != day {
		return GeneralizedTime{}, errInvalidGeneralizedTime
	}
	return GeneralizedTime(ret), nil
}

// IsValid reports if the year of t is between 1 and 9999.
func (t GeneralizedTime) IsValid() bool {
	year := time.Time(t).Year()
	return year >= 1 && year <= 9999
}

// Equal reports whether t and other represent the same time instant.
func (t GeneralizedTime) Equal(other GeneralizedTime) bool {
	return time.Time(t).Equal(time.Time(other))
}

// String returns a string representation of t that matches its representation
// in ASN.1 notation.
func (t GeneralizedTime) String() string {
	tt := time.Time(t)
	b := strings.Builder{}
	b.Grow(29) // allocate enough space for nanosecond precision
	b.WriteString(itoaN(tt.Year()%10000, 4))
	b.WriteString(itoaN(tt.Month(), 2))
	b.WriteString(itoaN(tt.Day(), 2))
	b.WriteString(itoaN(tt.Hour(), 2))
	b.WriteString(itoaN(tt.Minute(), 2))
	b.WriteString(itoaN(tt.Second(), 2))
	if tt.Nanosecond() > 0 {
		s := strconv.FormatFloat(float64(tt.Nanosecond())/float64(time.Second), 'f', -1, 64)
		b.WriteString(s[1:])
	}
	if tt.Location() == time.Local {
		return b.String()
	}
	writeOffset(&b, tt)
	return b.String()
}

//endregion

//region time helpers

// writeOffset writes the zone offset of t as Z, +hhmm or -hhmm.
func writeOffset(b *strings.Builder, t time.Time) {
	_, offset := t.Zone()
	offset /= 60
	if offset == 0 {
		b.WriteByte('Z')
		return
	}
	if offset < 0 {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	b.WriteString(itoaN(offset/60, 2))
	b.WriteString(itoaN(offset%60, 2))
}

// parseLocation parses a zone suffix (Z, +hhmm or -hhmm). It returns nil if s
// is not a valid suffix.
func parseLocation(s string) *time.Location {
	if len(s) == 1 && s[0] == 'Z' {
		return time.UTC
	}
	if len(s) != 5 {
		return nil
	}
	if s[0] != '+' && s[0] != '-' {
		return nil
	}
	mul := 44 - int(s[0])
	locHour := atoiN[int](s[1:], 2)
	locMinute := atoiN[int](s[3:], 2)
	if locHour < 0 || locMinute < 0 || locMinute > 59 {
		return nil
	}
	return time.FixedZone("", mul*(locHour*3600+locMinute*60))
}

// atoiN parses exactly n decimal digits from the start of s. It returns -1 if s
// is too short or contains a non-digit.
func atoiN[T ~int | ~int64](s string, n int) (i T) {
	if len(s) < n {
		return -1
	}
	for j := 0; j < n; j++ {
		if s[j] < '0' || '9' < s[j] {
			return -1
		}
		i = i*10 + T(s[j]-'0')
	}
	return i
}

// itoaN returns the base 10 string representation of the absolute value of i,
// truncated or zero padded to exactly n digits.
func itoaN[T ~int](i T, n int) string {
	if i < 0 {
		i = -i
	}
	bs := make([]byte, n)
	for ; n > 0; n-- {
		bs[n-1] = '0' + byte(i%10)
		i /= 10
	}
	return unsafe.String(unsafe.SliceData(bs), len(bs))
}

//endregion
