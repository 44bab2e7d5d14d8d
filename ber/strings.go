// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"errors"
	"iter"

	"codello.dev/krypt/asn1"
)

// ErrNotString indicates that a Node is not a constructed encoding of a
// universal string type.
var ErrNotString = errors.New("ber: not a constructed string")

// Segments returns the primitive segments of a string in order. String types
// can use the primitive or constructed encoding. When using the constructed
// encoding strings can be arbitrarily nested. For a primitive Node the only
// segment is n itself.
func (n *Node) Segments() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.segments(yield)
	}
}

func (n *Node) segments(yield func(*Node) bool) bool {
	if !n.Constructed {
		return yield(n)
	}
	for _, child := range n.Children {
		if !child.segments(yield) {
			return false
		}
	}
	return true
}

// Bytes returns the concatenated contents octets of all segments of n. For a
// primitive Node these are its contents octets.
func (n *Node) Bytes() ([]byte, error) {
	var b []byte
	for seg := range n.Segments() {
		content, err := seg.content()
		if err != nil {
			return nil, &EncodeError{Tag: seg.Tag, Err: err}
		}
		b = append(b, content...)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// Flatten combines the segments of a constructed string into a single
// primitive Node with the same tag. Primitive nodes are returned unchanged. If
// n is constructed but its tag is not a universal string type, ErrNotString is
// returned.
func (n *Node) Flatten() (*Node, error) {
	if !n.Constructed {
		return n, nil
	}
	c := lookup(n.Tag)
	if c == nil || c.form != formSegmented {
		return nil, ErrNotString
	}
	if n.Tag.Number == asn1.TagBitString {
		bs, err := joinBitString(n)
		if err != nil {
			return nil, err
		}
		return &Node{Tag: n.Tag, Value: bs}, nil
	}
	b, err := n.Bytes()
	if err != nil {
		return nil, err
	}
	v, err := c.decode(b, false)
	if err != nil {
		return nil, err
	}
	return &Node{Tag: n.Tag, Value: v}, nil
}

// joinBitString concatenates the segments of a constructed BIT STRING.
func joinBitString(n *Node) (asn1.BitString, error) {
	if err := checkSegments(n); err != nil {
		return asn1.BitString{}, err
	}
	var ret asn1.BitString
	for seg := range n.Segments() {
		bs := seg.Value.(asn1.BitString)
		ret.Bytes = append(ret.Bytes, bs.Bytes...)
		ret.BitLength += bs.BitLength
	}
	if ret.Bytes == nil {
		ret.Bytes = []byte{}
	}
	return ret, nil
}

// checkSegments validates the segments of a constructed string. Only the last
// segment of a BIT STRING may contain padding bits.
func checkSegments(n *Node) error {
	if n.Tag.Number != asn1.TagBitString {
		return nil
	}
	padded := false
	for seg := range n.Segments() {
		bs, ok := seg.Value.(asn1.BitString)
		if !ok {
			return errInvalidBitString
		}
		if padded {
			return errors.New("non-zero padding in constructed BIT STRING")
		}
		padded = bs.Padding() != 0
	}
	return nil
}
