// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"io"
	"iter"

	"codello.dev/krypt/asn1/tlv"
)

var (
	errWantConstructed = errors.New("type requires the constructed encoding")
	errWantPrimitive   = errors.New("type requires the primitive encoding")
	errDERConstructed  = errors.New("constructed string encoding not allowed in DER")
	errSegmentTag      = errors.New("segment of constructed string has a different tag")
)

// maxPrealloc is the largest content length that is allocated in full before
// reading. Longer values are read incrementally so that a forged length cannot
// cause a large allocation.
const maxPrealloc = 64 << 10

// Decode decodes a single data value from b. Bytes following the first data
// value are not consumed and do not cause an error. Use [NewDecoder] to learn
// how many bytes were consumed.
//
// Malformed input, including empty input, results in a [*FormatError]. No
// partial Node is returned on error.
func Decode(b []byte) (*Node, error) {
	n, err := NewDecoder(bytes.NewReader(b)).Decode()
	//goland:noinspection GoDirectComparisonOfErrors
	if err == io.EOF {
		err = &FormatError{Err: io.ErrUnexpectedEOF}
	}
	return n, err
}

// DecodeAll returns a sequence of all top-level data values in b. The sequence
// ends at the end of b or after the first error. Every iteration starts
// decoding at the beginning of b.
func DecodeAll(b []byte) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		NewDecoder(bytes.NewReader(b)).All()(yield)
	}
}

// Decoder reads a stream of BER-encoded data values. Each call to
// [Decoder.Decode] reads a complete top-level data value.
//
// The configuration fields must not be changed while a data value is being
// decoded.
type Decoder struct {
	// MaxDepth is the maximum nesting depth of data values. A top-level data
	// value has depth 1. If MaxDepth is zero or negative, DefaultMaxDepth is
	// used.
	MaxDepth int

	// DER restricts the input to the Distinguished Encoding Rules. Notably
	// indefinite lengths, non-minimal lengths, constructed strings and
	// non-canonical BOOLEAN values are rejected.
	DER bool

	d   *tlv.Decoder
	err error // sticky error
}

// NewDecoder creates a new Decoder reading from r. If r does not implement
// [io.ByteReader] the Decoder may read past the end of the last decoded data
// value.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{MaxDepth: DefaultMaxDepth, d: tlv.NewDecoder(r)}
}

// Decode reads the next top-level data value. At the end of the input, when no
// more data values follow, Decode returns [io.EOF]. Malformed input results in
// a [*FormatError]. Errors of the underlying reader are returned as well.
//
// After an error other than io.EOF every subsequent call returns the same
// error.
func (d *Decoder) Decode() (*Node, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.d.DER = d.DER
	h, val, err := d.d.ReadHeader()
	var n *Node
	if err == nil {
		n, err = d.decode(h, val, 1)
	}
	if err != nil {
		//goland:noinspection GoDirectComparisonOfErrors
		if err != io.EOF {
			d.err = err
		}
		return nil, err
	}
	return n, nil
}

// All returns a sequence of the remaining top-level data values. The sequence
// ends at the end of the input or after the first error.
func (d *Decoder) All() iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		for {
			n, err := d.Decode()
			//goland:noinspection GoDirectComparisonOfErrors
			if err == io.EOF || !yield(n, err) || err != nil {
				return
			}
		}
	}
}

// InputOffset returns the number of input bytes consumed by the decoded data
// values.
func (d *Decoder) InputOffset() int64 {
	return d.d.InputOffset()
}

// decode decodes the data value with header h. It has already been read from
// d. If h is primitive, val reads its contents.
func (d *Decoder) decode(h tlv.Header, val io.ReadCloser, depth int) (*Node, error) {
	start := d.d.DataValueOffset()
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth > maxDepth {
		return nil, &FormatError{ByteOffset: start, Header: h, Err: ErrTooDeep}
	}
	c := lookup(h.Tag)
	if !h.Constructed {
		return d.decodePrimitive(h, val, c, start)
	}

	switch {
	case c != nil && c.form&formConstructed == 0:
		return nil, &FormatError{ByteOffset: start, Header: h, Err: errWantPrimitive}
	case c != nil && c.form == formSegmented && d.DER:
		return nil, &FormatError{ByteOffset: start, Header: h, Err: errDERConstructed}
	}
	n := &Node{
		Tag:              h.Tag,
		Constructed:      true,
		IndefiniteLength: h.Length == tlv.LengthIndefinite,
		Children:         []*Node{},
	}
	for {
		ch, cval, err := d.d.ReadHeader()
		if err != nil {
			return nil, err
		}
		if ch.IsEndOfContents() {
			break
		}
		if c != nil && c.form == formSegmented && ch.Tag != h.Tag {
			return nil, &FormatError{ByteOffset: d.d.DataValueOffset(), Header: h, Err: errSegmentTag}
		}
		child, err := d.decode(ch, cval, depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	if c != nil && c.form == formSegmented {
		if err := checkSegments(n); err != nil {
			return nil, &FormatError{ByteOffset: start, Header: h, Err: err}
		}
	}
	return n, nil
}

// decodePrimitive reads the contents of a primitive data value and interprets
// them using c. If c is nil the contents are kept as a []byte.
func (d *Decoder) decodePrimitive(h tlv.Header, val io.ReadCloser, c *valueCodec, start int64) (*Node, error) {
	content, err := readContent(val, h.Length)
	if err != nil {
		//goland:noinspection GoDirectComparisonOfErrors
		if err == io.ErrUnexpectedEOF {
			err = &FormatError{ByteOffset: d.d.InputOffset(), Header: h, Err: err}
		}
		return nil, err
	}
	n := &Node{Tag: h.Tag}
	switch {
	case c == nil:
		n.Value = content
	case c.form&formPrimitive == 0:
		return nil, &FormatError{ByteOffset: start, Header: h, Err: errWantConstructed}
	default:
		if n.Value, err = c.decode(content, d.DER); err != nil {
			return nil, &FormatError{ByteOffset: start, Header: h, Err: err}
		}
	}
	return n, nil
}

// readContent reads the remaining contents of r and closes it. The result is
// never nil.
func readContent(r io.ReadCloser, length int) (b []byte, err error) {
	if length <= maxPrealloc {
		b = make([]byte, length)
		_, err = io.ReadFull(r, b)
	} else {
		b, err = io.ReadAll(r)
	}
	if err == nil {
		err = r.Close()
	}
	if b == nil {
		b = []byte{}
	}
	return b, err
}
