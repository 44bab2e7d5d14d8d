// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"io"

	"codello.dev/krypt/asn1"
)

//region valueReader

// valueReader represents a primitive TLV value. It implements [io.Reader] among
// others. At the end of the primitive value, valueReader returns [io.EOF]. Note
// that this only indicates the end of a single value, not the end of the
// corresponding [Decoder] stream. If the underlying reader returns [io.EOF]
// before the value has been read completely, [io.ErrUnexpectedEOF] is returned.
//
// Errors from the underlying reader may be wrapped before being returned.
type valueReader struct {
	d *Decoder
	n int // remaining number of bytes
}

// isValid indicates whether v is able to read more bytes.
func (v *valueReader) isValid() bool {
	return v.d != nil
}

// Len returns the number of bytes in the unread portion of the value.
func (v *valueReader) Len() int {
	return v.n
}

// Read implements [io.Reader].
func (v *valueReader) Read(p []byte) (int, error) {
	if v.d == nil {
		return 0, errClosed
	}
	if v.Len() == 0 {
		return 0, io.EOF
	}
	if len(p) > v.Len() {
		p = p[0:v.Len()]
	}
	n, err := v.d.br.Read(p)
	v.n -= n
	v.d.state.advance(n)
	if err != nil && err != io.EOF {
		err = &ioError{"read", err}
	}
	if v.n == 0 {
		// if the underlying reader returns io.EOF with data and v.Len() == 0
		// we can pass through the EOF.
		return n, err
	}
	return n, noEOF(err)
}

// ReadByte implements [io.ByteReader].
func (v *valueReader) ReadByte() (b byte, err error) {
	if v.d == nil {
		return 0, errClosed
	}
	if v.Len() == 0 {
		return 0, io.EOF
	}
	b, err = v.d.br.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, &ioError{"read", err}
	}
	v.n--
	v.d.state.advance(1)
	return b, nil
}

// Discard discards up to n bytes from v. It returns the number of bytes
// discarded. An error is returned iff discarded < n.
//
// If the underlying reader of r implements its own Discard method it will be
// used for more efficient discarding.
func (v *valueReader) Discard(n int) (discarded int, err error) {
	if n < 0 {
		return 0, errNegativeCnt
	}
	if v.d == nil {
		return 0, errClosed
	}

	l := v.Len()
	discard := min(n, l)
	if discard > 0 {
		switch rd := v.d.br.(type) {
		case interface{ Discard(int) (int, error) }:
			discarded, err = rd.Discard(discard)
		default:
			var d int64
			d, err = io.CopyN(io.Discard, rd, int64(discard))
			discarded = int(d)
		}
		v.n -= discarded
		v.d.state.advance(discarded)
	}

	if n > l && err == nil {
		err = io.EOF
	} else if discarded < discard {
		err = noEOF(err)
	} else if n <= l {
		err = nil
	}
	if err != nil && err != io.EOF {
		if _, ok := err.(*ioError); !ok && err != io.ErrUnexpectedEOF {
			err = &ioError{"read", err}
		}
	}
	return discarded, err
}

// Close discards any remaining bytes in the unread portion of v. If v has been
// read to EOF calling Close will never return an error.
func (v *valueReader) Close() error {
	if v.d == nil {
		return errClosed
	} else if _, err := v.Discard(v.Len()); err != nil {
		return noEOF(err)
	}
	v.d.valueDone()
	return nil
}

//endregion

//region Decoder

// Decoder is a streaming decoder for the TLV format used by ASN.1 encoding
// rules such as BER or DER. It is used to read a stream of top-level
// tag-length-value (TLV) constructs.
//
// Malformed input is reported as a [*FormatError]. After such an error the
// Decoder cannot continue and every further call returns the same error.
type Decoder struct {
	state
	br interface {
		io.Reader
		io.ByteReader
	}
	buf bufferedReader // internal buffering
	val valueReader    // reused, saves allocations
	err error          // sticky error

	// hdrBytes is the number of bytes consumed by the current ReadHeader call.
	hdrBytes int

	// DER enables the restrictions of the Distinguished Encoding Rules on
	// length octets: lengths must be minimally encoded and the indefinite
	// length is rejected.
	DER bool
}

// NewDecoder creates a new Decoder reading from r. If r does not implement
// [io.ByteReader], Decoder will do its own buffering. The buffering mechanism
// of Decoder attempts to buffer at most the number of bytes that belong to the
// current top-level TLV. However, if a top-level TLV uses the indefinite length
// format, the Decoder may buffer past the end of the value.
func NewDecoder(r io.Reader) *Decoder {
	d := new(Decoder)
	d.Reset(r)
	return d
}

// Reset resets the state of d to read from r. See [NewDecoder] for details.
//
// Reset reuses the internal buffer of d which may save some allocations
// compared to [NewDecoder]. The DER setting is kept.
func (d *Decoder) Reset(r io.Reader) {
	d.state.reset()

	if br, ok := r.(interface {
		io.Reader
		io.ByteReader
	}); ok {
		// allow previous reader to be garbage-collected, but keep the allocated buffer
		d.buf.Reset(nil)
		d.br = br
	} else {
		d.buf.Reset(r)
		d.br = &d.buf
	}
	d.val.d = nil
	d.err = nil
	d.hdrBytes = 0
}

// ReadHeader reads the next TLV header from the input. At the end of
// constructed TLVs a Header with [TagEndOfContents] will be returned (for both
// definite and indefinite-length encodings). If an error occurs during decoding
// the TLV header, or it is detected that the TLV structure is invalid, an error
// is returned. At the end of the input in between top-level TLVs ReadHeader
// returns [io.EOF].
//
// The second return value is non-nil iff the decoded Header indicates the use
// of the primitive encoding. The [io.ReadCloser] can be used to read the
// contents of the primitive TLV. It also implements [io.ByteReader].
// [io.Closer.Close] must be called before the next call of [Decoder.ReadHeader].
func (d *Decoder) ReadHeader() (Header, io.ReadCloser, error) {
	if d.err != nil {
		return Header{}, nil, d.err
	}
	if d.val.isValid() {
		return Header{}, nil, errNotClosed
	}
	d.hdrBytes = 0
	h, err := d.readHeader()
	if err != nil {
		//goland:noinspection GoDirectComparisonOfErrors
		if err == io.EOF {
			return h, nil, err
		}
		if _, ok := err.(*ioError); !ok {
			fErr := &FormatError{ByteOffset: d.offset, Header: d.curr.Header, Err: err}
			//goland:noinspection GoDirectComparisonOfErrors
			if err == io.ErrUnexpectedEOF {
				fErr.ByteOffset += int64(d.hdrBytes)
			}
			if d.root() {
				fErr.Header = Header{}
			}
			err = fErr
		}
		d.err = err
		return h, nil, err
	}

	if h.IsEndOfContents() {
		d.state.pop(d.hdrBytes)
	} else {
		d.state.push(h, d.hdrBytes)
	}
	d.hdrBytes = 0

	// adjust buffering
	switch d.StackDepth() {
	case 1: // we have just read the start of a top-level data value
		d.buf.SetLimit(d.curr.Length)
	case 0: // we have just read the end of a top-level data value
		d.buf.SetLimit(0)
	}
	if d.curr.Constructed || h.IsEndOfContents() {
		return h, nil, nil
	}
	d.val = valueReader{d, d.curr.Remaining()}
	return h, &d.val, nil
}

// readHeader decodes a TLV header from d. If decoding fails or an invalid TLV
// structure is detected, an error is returned.
func (d *Decoder) readHeader() (Header, error) {
	if d.curr.Header.Length != LengthIndefinite && d.curr.Remaining() == 0 {
		// definite-length values end implicitly
		return EndOfContents, nil
	}

	h, _, err := ReadHeader(byteReaderFunc(d.readByte), d.DER)
	if err != nil {
		if !d.root() || d.hdrBytes > 0 {
			err = noEOF(err)
		}
		return h, err
	}
	switch {
	case h.IsEndOfContents() && !d.root() && d.curr.Header.Length == LengthIndefinite:
		// The end-of-contents marker is 0x0000, coinciding with the empty header.
		return h, nil
	case h.IsEndOfContents():
		return h, ErrUnexpectedEOC
	case h.Tag == asn1.Universal(TagEndOfContents):
		// end-of-contents is a reserved tag
		return h, ErrInvalidEOC
	case h.Length != LengthIndefinite && uint(d.hdrBytes+h.Length) > uint(d.curr.Remaining()):
		// uint conversion takes care of indefinite length
		return h, ErrExceedsParent
	}
	return h, nil
}

// readByte reads a single byte of a header from the underlying reader of d. A
// header may not extend beyond the end of its parent.
func (d *Decoder) readByte() (byte, error) {
	// uint conversion takes care of indefinite length
	if uint(d.hdrBytes) >= uint(d.curr.Remaining()) {
		return 0, ErrTruncated
	}
	b, err := d.br.ReadByte()
	if err == io.EOF {
		return 0, err
	} else if err != nil {
		return 0, &ioError{"read", err}
	}
	d.hdrBytes++
	return b, nil
}

// valueDone gets called by the valueReader type when a data value has been
// fully read. d automatically updates its state accordingly.
func (d *Decoder) valueDone() {
	if d.val.Len() != 0 {
		panic("BUG: value is not completely read")
	}
	d.val.d = nil

	// We have read or discarded the entire data value.
	// The next byte is the start of another TLV.
	d.state.pop(0)
	if d.root() {
		d.buf.SetLimit(0)
	}
}

// Skip discards the remainder of the current data value. If it uses the
// primitive encoding, only that value is discarded. If it is constructed,
// everything until the matching end-of-contents is skipped.
//
// If at any point an error is encountered, the skipping will be stopped and the
// error returned.
func (d *Decoder) Skip() (err error) {
	if d.err != nil {
		return d.err
	}
	if d.root() {
		return nil
	}
	if !d.curr.Constructed {
		if d.val.isValid() {
			return d.val.Close()
		}
		return errClosed
	}
	depth := d.StackDepth()
	var val io.ReadCloser
	for d.StackDepth() >= depth && err == nil {
		_, val, err = d.ReadHeader()
		if err == nil && val != nil {
			err = val.Close()
		}
	}
	return err
}

// DataValueOffset returns the input byte offset where the current data value
// starts. This is the first byte of the identifier octets of the current value.
func (d *Decoder) DataValueOffset() int64 {
	return d.curr.Start
}

// InputOffset returns the current input byte offset. The number of bytes
// actually read from the underlying [io.Reader] may be more than this offset
// due to internal buffering effects.
//
//   - If the current TLV uses the primitive encoding, it gives the number of
//     bytes that have been read from the input, including any bytes read from the
//     current value.
//   - If the current TLV uses the constructed encoding, it gives the location of
//     the first byte of the next TLV header in the input.
func (d *Decoder) InputOffset() int64 {
	return d.offset
}

// StackDepth returns the number of nested TLVs of the current location of d.
// It is incremented whenever a TLV header is read and decremented whenever a
// TLV ends. The depth is zero-indexed, where zero represents the (virtual)
// top-level TLV.
func (d *Decoder) StackDepth() int { return len(d.stack) }

// StackIndex returns information about the specified stack level. It must be a
// number between 0 and [Decoder.StackDepth], inclusive.
//
// The TLV header at level 0 represents the top level and is not present in the
// input data. The top-level TLV header is a constructed, indefinite-length
// data value with tag 0.
func (d *Decoder) StackIndex(i int) Header {
	if i == len(d.stack) {
		return d.curr.Header
	}
	return d.stack[i].Header
}

//endregion
