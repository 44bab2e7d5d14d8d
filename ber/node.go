// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"codello.dev/krypt/asn1"
)

// Node is a single BER data value. A Node is either primitive or constructed.
//
// A primitive Node holds its contents in Value. The dynamic type of Value
// determines how the contents octets are encoded, independent of Tag. This
// makes implicit tagging possible: a string under a context-specific tag still
// encodes its bytes verbatim. For the supported Go types see [New].
//
// A constructed Node owns its Children. A Node must not appear more than once
// in a tree. IndefiniteLength is only meaningful for constructed nodes.
type Node struct {
	Tag              asn1.Tag
	Constructed      bool
	IndefiniteLength bool

	// Value is set iff Constructed is false.
	Value any
	// Children is only used if Constructed is true.
	Children []*Node
}

// Class returns the class of n's tag.
func (n *Node) Class() asn1.Class {
	return n.Tag.Class
}

// Number returns the number of n's tag.
func (n *Node) Number() uint {
	return n.Tag.Number
}

// content returns the contents octets of a primitive node.
func (n *Node) content() ([]byte, error) {
	_, b, err := encodeValue(n.Value)
	return b, err
}

// Equal reports whether n and other encode to the same bytes. Primitive values
// are compared by their contents octets, so a decoded []byte under an
// application tag equals a string constructed with the same tag. A nil Node
// only equals another nil Node.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Tag != other.Tag || n.Constructed != other.Constructed {
		return false
	}
	if n.Constructed {
		return n.IndefiniteLength == other.IndefiniteLength &&
			slices.EqualFunc(n.Children, other.Children, (*Node).Equal)
	}
	a, err := n.content()
	if err != nil {
		return false
	}
	b, err := other.content()
	return err == nil && bytes.Equal(a, b)
}

// String returns a multi-line dump of the tree rooted at n. The format is
// intended for debugging and may change.
func (n *Node) String() string {
	var sb strings.Builder
	n.dump(&sb, 0)
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder, indent int) {
	for range indent {
		sb.WriteString("  ")
	}
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	if c := lookup(n.Tag); c != nil {
		sb.WriteString(c.name)
	} else {
		sb.WriteString(n.Tag.String())
	}
	if !n.Constructed {
		sb.WriteByte(' ')
		sb.WriteString(formatValue(n.Value))
		return
	}
	if n.IndefiniteLength {
		sb.WriteString(" (indefinite)")
	}
	sb.WriteString(" {")
	for _, child := range n.Children {
		sb.WriteByte('\n')
		child.dump(sb, indent+1)
	}
	if len(n.Children) > 0 {
		sb.WriteByte('\n')
		for range indent {
			sb.WriteString("  ")
		}
	}
	sb.WriteByte('}')
}

// formatValue formats v for a tree dump.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		if len(v) == 0 {
			return "''H"
		}
		return fmt.Sprintf("'%X'H", v)
	case *big.Int:
		if v == nil {
			return "<nil>"
		}
		return v.String()
	case asn1.Enumerated:
		return strconv.Itoa(int(v))
	case asn1.Null:
		return "NULL"
	case asn1.BitString:
		return "'" + strings.ReplaceAll(v.String(), " ", "") + "'B"
	case asn1.UTCTime, asn1.GeneralizedTime, asn1.ObjectIdentifier, asn1.RelativeOID:
		return fmt.Sprint(v)
	case string, asn1.NumericString, asn1.PrintableString, asn1.TeletexString,
		asn1.VideotexString, asn1.IA5String, asn1.GraphicString, asn1.VisibleString,
		asn1.GeneralString, asn1.UniversalString, asn1.BMPString:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%v", v)
}
