// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"math/big"
	"time"

	"golang.org/x/exp/constraints"

	"codello.dev/krypt/asn1"
)

var (
	errInvalidCharacters = errors.New("contains characters outside of the character set")
	errIndefinitePrim    = errors.New("indefinite length requires a constructed value")
	errReservedTag       = errors.New("tag is reserved for end-of-contents")
	errInvalidTag        = errors.New("invalid tag")
	errTagMismatch       = errors.New("contents do not round-trip under the universal tag")
)

// Option configures the construction of a [Node].
type Option func(*options)

type options struct {
	tag        uint
	hasTag     bool
	class      asn1.Class
	hasClass   bool
	indefinite bool
	err        error // first invalid option
}

// WithTag overrides the tag number of a Node. Unless combined with [WithClass]
// or [WithClassName] the tag is in the [asn1.ClassContextSpecific] class.
func WithTag(number uint) Option {
	return func(o *options) {
		if number > asn1.MaxTag && o.err == nil {
			o.err = &ArgumentError{Arg: "tag", Value: number, Err: errors.New("tag number too large")}
		}
		o.tag, o.hasTag = number, true
	}
}

// WithClass sets the class of a Node's tag. If no [WithTag] option is given,
// the canonical tag number of the value is used in the class c.
func WithClass(c asn1.Class) Option {
	return func(o *options) {
		if !c.IsValid() && o.err == nil {
			o.err = &ArgumentError{Arg: "class", Value: c, Err: asn1.ErrUnknownClass}
		}
		o.class, o.hasClass = c, true
	}
}

// WithClassName works like [WithClass] but accepts the symbolic name of a
// class as described in [asn1.ParseClass]. An empty or unknown name makes
// construction fail with an [*ArgumentError].
func WithClassName(name string) Option {
	return func(o *options) {
		c, err := asn1.ParseClass(name)
		if err != nil && o.err == nil {
			o.err = &ArgumentError{Arg: "class", Value: name, Err: err}
		}
		o.class, o.hasClass = c, true
	}
}

// Indefinite marks a constructed Node to be encoded using the indefinite
// length format.
func Indefinite() Option {
	return func(o *options) {
		o.indefinite = true
	}
}

// New creates a Node from a Go value. The following types are supported:
//
//   - bool as BOOLEAN
//   - all Go integer types, *big.Int and big.Int as INTEGER (stored as *big.Int)
//   - [asn1.BitString] as BIT STRING
//   - []byte as OCTET STRING
//   - nil and [asn1.Null] as NULL (stored as asn1.Null)
//   - [asn1.ObjectIdentifier] as OBJECT IDENTIFIER
//   - [asn1.Enumerated] as ENUMERATED
//   - string as UTF8String
//   - [asn1.RelativeOID] as RELATIVE-OID
//   - the string types of package asn1 as the respective string type
//   - [asn1.UTCTime] as UTCTime
//   - time.Time and [asn1.GeneralizedTime] as GeneralizedTime (stored as
//     asn1.GeneralizedTime). A time.Time is converted to UTC first.
//   - []*Node as a constructed SEQUENCE
//
// Without options the Node uses the UNIVERSAL class and the canonical tag of
// the type. Values of types with a restricted character set are validated.
// If the options select a UNIVERSAL tag with a known type, the contents octets
// of value must be a valid encoding of that type.
// Any invalid argument is reported as an [*ArgumentError].
func New(value any, opts ...Option) (*Node, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	if children, ok := value.([]*Node); ok {
		return constructed(asn1.Universal(asn1.TagSequence), &o, children)
	}
	value = normalize(value)
	number, content, err := encodeValue(value)
	if err == nil {
		err = validate(value)
	}
	if err != nil {
		return nil, &ArgumentError{Arg: "value", Value: value, Err: err}
	}
	if o.indefinite {
		return nil, &ArgumentError{Arg: "indefinite", Err: errIndefinitePrim}
	}
	tag, err := o.resolve(asn1.Universal(number))
	if err != nil {
		return nil, err
	}
	if tag != asn1.Universal(number) {
		if err = checkUniversal(tag, content); err != nil {
			return nil, &ArgumentError{Arg: "tag", Value: tag, Err: err}
		}
	}
	return &Node{Tag: tag, Value: value}, nil
}

// checkUniversal verifies that content decodes under the universal type
// registered for tag and that the decoded value encodes to the same octets.
// Tags without a registered codec are not checked.
func checkUniversal(tag asn1.Tag, content []byte) error {
	c := lookup(tag)
	if c == nil {
		return nil
	}
	if c.form&formPrimitive == 0 {
		return errWantConstructed
	}
	v, err := c.decode(content, false)
	if err != nil {
		return err
	}
	_, b, err := encodeValue(v)
	if err != nil {
		return err
	}
	if !bytes.Equal(b, content) {
		return errTagMismatch
	}
	return nil
}

// Sequence creates a constructed SEQUENCE Node containing children in order.
func Sequence(children []*Node, opts ...Option) (*Node, error) {
	return constructedWith(asn1.Universal(asn1.TagSequence), children, opts)
}

// Set creates a constructed SET Node. The order of children is kept as is.
func Set(children []*Node, opts ...Option) (*Node, error) {
	return constructedWith(asn1.Universal(asn1.TagSet), children, opts)
}

// Constructed creates a constructed Node with the specified tag. The tag can
// still be changed by passing options.
func Constructed(tag asn1.Tag, children []*Node, opts ...Option) (*Node, error) {
	if !tag.IsValid() {
		return nil, &ArgumentError{Arg: "tag", Value: tag, Err: errInvalidTag}
	}
	return constructedWith(tag, children, opts)
}

func constructedWith(tag asn1.Tag, children []*Node, opts []Option) (*Node, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	return constructed(tag, &o, children)
}

// constructed builds a constructed node. Its children must be non-nil.
func constructed(tag asn1.Tag, o *options, children []*Node) (*Node, error) {
	for _, child := range children {
		if child == nil {
			return nil, &ArgumentError{Arg: "children", Err: errNilValue}
		}
	}
	tag, err := o.resolve(tag)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []*Node{}
	}
	return &Node{Tag: tag, Constructed: true, IndefiniteLength: o.indefinite, Children: children}, nil
}

// resolve applies the tag options to the canonical tag def.
func (o *options) resolve(def asn1.Tag) (asn1.Tag, error) {
	tag := def
	switch {
	case o.hasTag && o.hasClass:
		tag = asn1.Tag{Class: o.class, Number: o.tag}
	case o.hasTag:
		tag = asn1.Tag{Class: asn1.ClassContextSpecific, Number: o.tag}
	case o.hasClass:
		tag.Class = o.class
	}
	if tag == asn1.Universal(asn1.TagReserved) {
		return tag, &ArgumentError{Arg: "tag", Value: tag, Err: errReservedTag}
	}
	return tag, nil
}

// normalize converts alternative Go representations into the type stored in a
// Node.
func normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return asn1.Null{}
	case int:
		return bigInt(v)
	case int8:
		return bigInt(v)
	case int16:
		return bigInt(v)
	case int32:
		return bigInt(v)
	case int64:
		return bigInt(v)
	case uint:
		return bigInt(v)
	case uint8:
		return bigInt(v)
	case uint16:
		return bigInt(v)
	case uint32:
		return bigInt(v)
	case uint64:
		return bigInt(v)
	case uintptr:
		return bigInt(v)
	case big.Int:
		return new(big.Int).Set(&v)
	case time.Time:
		return asn1.GeneralizedTime(v.UTC())
	}
	return v
}

// bigInt converts a Go integer into a *big.Int.
func bigInt[T constraints.Integer](i T) *big.Int {
	if i < 0 {
		return big.NewInt(int64(i))
	}
	return new(big.Int).SetUint64(uint64(i))
}

// validate checks the character set of restricted string types.
func validate(v any) error {
	if s, ok := v.(interface{ IsValid() bool }); ok && !s.IsValid() {
		return errInvalidCharacters
	}
	return nil
}
