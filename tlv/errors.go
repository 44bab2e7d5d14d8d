// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"errors"
	"io"
	"strconv"
)

// Errors in the identifier and length octets.
var (
	ErrReservedLength      = errors.New("reserved length octet 0xFF")
	ErrLengthTooLarge      = errors.New("length too large")
	ErrNonMinimalLength    = errors.New("length not minimally encoded")
	ErrNonMinimalTag       = errors.New("tag number not minimally encoded")
	ErrTagTooLarge         = errors.New("tag number too large")
	ErrIndefinitePrimitive = errors.New("indefinite-length primitive data value")
	ErrIndefiniteLength    = errors.New("indefinite length not allowed in DER")
	ErrInvalidTag          = errors.New("invalid tag")
	ErrInvalidLength       = errors.New("invalid length")
)

// Errors in the structure of nested TLVs.
var (
	ErrUnexpectedEOC = errors.New("unexpected end of contents")
	ErrInvalidEOC    = errors.New("invalid end of contents")
	ErrTruncated     = errors.New("truncated data value")
	ErrExceedsParent = errors.New("data value exceeds parent")

	errClosed      = errors.New("tlv: value closed")
	errNotClosed   = errors.New("tlv: value not closed after reading")
	errNotWritten  = errors.New("tlv: value not fully written")
	errIncomplete  = errors.New("tlv: value closed before fully written")
	errNegativeCnt = errors.New("tlv: negative count")
)

// ioError represents an error that occurred when reading from or writing to an
// underlying data stream.
type ioError struct {
	action string // either "read" or "write"
	err    error
}

func (e *ioError) Unwrap() error { return e.err }
func (e *ioError) Error() string { return e.action + " error: " + e.err.Error() }

// FormatError represents malformed TLV data. The error value contains the
// location of the error within the input (or output) as well as the [Header]
// of the data value whose contents hold the malformed data.
type FormatError struct {
	Err error // underlying error

	// ByteOffset is the location of the error. The location is usually the start of
	// the TLV header containing the error.
	ByteOffset int64

	// Header is the TLV header of the data value whose contents contain the
	// malformed data. For errors at the top level it is the zero Header.
	Header Header
}

func (e *FormatError) Unwrap() error { return e.Err }
func (e *FormatError) Error() string {
	b := []byte("asn1: format error")
	if !e.Header.IsEndOfContents() {
		b = append(b, " within "...)
		b = append(b, e.Header.String()...)
	}
	//goland:noinspection GoDirectComparisonOfErrors
	if e.Err == io.ErrUnexpectedEOF {
		b = strconv.AppendInt(append(b, " at offset "...), e.ByteOffset, 10)
	} else {
		b = strconv.AppendInt(append(b, " for TLV beginning at offset "...), e.ByteOffset, 10)
	}
	if e.Err != nil {
		b = append(b, ": "...)
		b = append(b, e.Err.Error()...)
	}
	return string(b)
}

// noEOF returns err, unless err == io.EOF, in which case it returns io.ErrUnexpectedEOF.
func noEOF(err error) error {
	//goland:noinspection GoDirectComparisonOfErrors
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
