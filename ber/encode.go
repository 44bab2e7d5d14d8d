// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"io"

	"codello.dev/krypt/asn1"
	"codello.dev/krypt/asn1/tlv"
)

// maxEncodeDepth limits the nesting of trees passed to the encoder. Deeper
// trees most likely contain a cycle.
const maxEncodeDepth = 1 << 12

var (
	errPrimitiveChildren = errors.New("primitive node has children")
	errConstructedValue  = errors.New("constructed node has a value")
)

// encoding is a Node whose header and contents have been computed.
type encoding struct {
	header   tlv.Header
	content  []byte     // primitive only
	children []encoding // constructed only
	size     int        // total number of bytes including the header
}

// Encode returns the BER encoding of n. Constructed nodes use the definite
// length format unless IndefiniteLength is set. Tags are written as set in the
// tree, so non-canonical tags are encoded as is.
//
// A tree that cannot be encoded results in an [*EncodeError]. This is only
// possible for trees that have not been created via [New] and related
// functions.
func Encode(n *Node) ([]byte, error) {
	enc, err := plan(n, 1)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, enc.size))
	if err = write(tlv.NewEncoder(buf), &enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodedLen returns the number of bytes of the encoding of n.
func (n *Node) EncodedLen() (int, error) {
	enc, err := plan(n, 1)
	return enc.size, err
}

// WriteTo writes the encoding of n to w. It implements [io.WriterTo].
func (n *Node) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := NewEncoder(cw).Encode(n)
	return cw.n, err
}

// Encoder writes a stream of BER-encoded data values.
type Encoder struct {
	e *tlv.Encoder
}

// NewEncoder creates a new Encoder writing to w. Every call to
// [Encoder.Encode] writes a complete top-level data value.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{tlv.NewEncoder(w)}
}

// Encode writes the encoding of n. See [Encode] for details.
func (e *Encoder) Encode(n *Node) error {
	enc, err := plan(n, 1)
	if err != nil {
		return err
	}
	return write(e.e, &enc)
}

// OutputOffset returns the number of bytes encoded so far.
func (e *Encoder) OutputOffset() int64 {
	return e.e.OutputOffset()
}

// plan computes the headers and contents octets of the tree rooted at n.
func plan(n *Node, depth int) (encoding, error) {
	if n == nil {
		return encoding{}, &EncodeError{Err: errNilValue}
	}
	switch {
	case depth > maxEncodeDepth:
		return encoding{}, &EncodeError{Tag: n.Tag, Err: ErrTooDeep}
	case !n.Tag.IsValid():
		return encoding{}, &EncodeError{Tag: n.Tag, Err: errInvalidTag}
	case n.Tag == asn1.Universal(asn1.TagReserved):
		return encoding{}, &EncodeError{Tag: n.Tag, Err: errReservedTag}
	}

	if !n.Constructed {
		switch {
		case n.IndefiniteLength:
			return encoding{}, &EncodeError{Tag: n.Tag, Err: errIndefinitePrim}
		case len(n.Children) > 0:
			return encoding{}, &EncodeError{Tag: n.Tag, Err: errPrimitiveChildren}
		}
		_, content, err := encodeValue(n.Value)
		if err != nil {
			return encoding{}, &EncodeError{Tag: n.Tag, Err: err}
		}
		h := tlv.Header{Tag: n.Tag, Length: len(content)}
		return encoding{header: h, content: content, size: h.Size() + len(content)}, nil
	}

	if n.Value != nil {
		return encoding{}, &EncodeError{Tag: n.Tag, Err: errConstructedValue}
	}
	enc := encoding{children: make([]encoding, len(n.Children))}
	length := 0
	for i, child := range n.Children {
		var err error
		if enc.children[i], err = plan(child, depth+1); err != nil {
			return encoding{}, err
		}
		length += enc.children[i].size
	}
	enc.header = tlv.Header{Tag: n.Tag, Constructed: true, Length: length}
	enc.size = enc.header.Size() + length
	if n.IndefiniteLength {
		enc.header.Length = tlv.LengthIndefinite
		enc.size = enc.header.Size() + length + tlv.EndOfContents.Size()
	}
	return enc, nil
}

// write writes a planned encoding to e.
func write(e *tlv.Encoder, enc *encoding) error {
	w, err := e.WriteHeader(enc.header)
	if err != nil {
		return err
	}
	if !enc.header.Constructed {
		if len(enc.content) > 0 {
			_, err = w.Write(enc.content)
		}
		return err
	}
	for i := range enc.children {
		if err = write(e, &enc.children[i]); err != nil {
			return err
		}
	}
	_, err = e.WriteHeader(tlv.EndOfContents)
	return err
}

// countingWriter counts the bytes written to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}
