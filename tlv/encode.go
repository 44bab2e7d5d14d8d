// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"io"

	"codello.dev/krypt/asn1"
)

//region valueWriter

// valueWriter represents a primitive TLV value for writing. It implements
// [io.Writer] among others. The writer is restricted to write at most n bytes
// (corresponding to the length of the value).
//
// For primitive data values at the root level valueWriter takes care of
// flushing the internal buffer of [Encoder].
//
// Errors from the underlying writer may be wrapped before being returned.
type valueWriter struct {
	e *Encoder
	n int // remaining number of bytes
}

// Len returns the number of bytes in the unwritten portion of the value.
func (w *valueWriter) Len() int {
	return w.n
}

// advance gets called when n bytes are written to the underlying writer.
func (w *valueWriter) advance(n int) error {
	w.n -= n
	w.e.state.advance(n)
	if w.n == 0 {
		return w.e.valueDone()
	}
	return nil
}

// WriteByte implements [io.ByteWriter].
func (w *valueWriter) WriteByte(b byte) error {
	if w.e == nil || w.Len() == 0 {
		return ErrTruncated
	}
	err := w.e.wr.WriteByte(b)
	if err != nil {
		return &ioError{"write", err}
	}
	return w.advance(1)
}

// Write implements [io.Writer].
func (w *valueWriter) Write(p []byte) (n int, err error) {
	if w.e == nil {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, ErrTruncated
	}
	write := min(len(p), w.Len())
	if write > 0 {
		n, err = w.e.wr.Write(p[:write])
	}
	if err != nil {
		err = &ioError{"write", err}
	} else if n < write {
		err = io.ErrShortWrite
	} else if write < len(p) {
		err = ErrTruncated
	}
	if n > 0 {
		if fErr := w.advance(n); err == nil {
			// w.wr.Write might return n == w.n and a non-nil error.
			// In that case we still advance, but prefer the original write error.
			err = fErr
		}
	}
	return n, err
}

// Close reports an error if the value has not been written completely.
func (w *valueWriter) Close() error {
	if w.e != nil && w.n > 0 {
		return errIncomplete
	}
	return nil
}

//endregion

//region Encoder

// Encoder is a streaming encoder for the TLV format used by ASN.1 encoding
// rules such as BER or DER. It is used to write a stream of top-level
// tag-length-value (TLV) constructs.
//
// Encoder validates that the written sequence of headers and values forms a
// well-formed encoding. Violations are reported as [*FormatError] values whose
// ByteOffset refers to the output stream.
type Encoder struct {
	state
	wr interface {
		io.Writer
		io.ByteWriter
	}
	buf bufferedWriter // internal buffering
	val valueWriter    // reused, saves allocations

	hdr [32]byte // scratch space for encoded headers
}

// NewEncoder creates a new [Encoder] writing to w. If w does not implement
// [io.ByteWriter], Encoder will do its own buffering. The buffer is
// automatically flushed at the end of each top-level data value.
func NewEncoder(w io.Writer) *Encoder {
	e := new(Encoder)
	e.Reset(w)
	return e
}

// Reset resets the state of e to write to w. See [NewEncoder] for details.
//
// Reset reuses the internal buffer of e which may save some allocations
// compared to [NewEncoder].
func (e *Encoder) Reset(w io.Writer) {
	e.state.reset()

	if bw, ok := w.(interface {
		io.Writer
		io.ByteWriter
	}); ok {
		// allow previous writer to be garbage-collected, but keep the allocated buffer
		e.buf.Reset(nil)
		e.wr = bw
	} else {
		e.buf.Reset(w)
		e.wr = &e.buf
	}
	e.val = valueWriter{}
}

// WriteHeader writes the next TLV header to the output. At the end of
// constructed TLVs, a Header with [TagEndOfContents] must be written (for both
// definite and indefinite-length encodings). Only indefinite-length values
// produce end-of-contents octets in the output. Encoder validates that the
// written sequence of headers and values is valid and will return an error if h
// cannot be written at the current place in the TLV structure.
//
// When h indicates the use of the primitive encoding, WriteHeader returns an
// [io.WriteCloser] that can be used to write the contents of the value. The
// full value (as indicated by h.Length) must be written before the next call to
// WriteHeader. The returned writer also implements [io.ByteWriter].
func (e *Encoder) WriteHeader(h Header) (io.WriteCloser, error) {
	if e.val.e != nil {
		if e.val.Len() > 0 {
			return nil, errNotWritten
		}
		e.val = valueWriter{}
	}
	n, err := e.writeHeader(h)
	if err != nil {
		if _, ok := err.(*ioError); !ok {
			fErr := &FormatError{ByteOffset: e.offset, Header: e.curr.Header, Err: err}
			if e.root() {
				fErr.Header = Header{}
			}
			err = fErr
		}
		return nil, err
	}

	if h.IsEndOfContents() {
		e.state.pop(n)
		if e.root() {
			// We have ended a top level data value
			if err = e.buf.Flush(); err != nil {
				return nil, &ioError{"write", err}
			}
		}
		return nil, nil
	}
	e.state.push(h, n)
	if h.Constructed {
		return nil, nil
	}
	e.val = valueWriter{e, e.curr.Remaining()}
	if h.Length == 0 {
		if err = e.valueDone(); err != nil {
			return nil, err
		}
	}
	return &e.val, nil
}

// writeHeader validates and encodes a TLV header into e. It returns the number
// of bytes written.
func (e *Encoder) writeHeader(h Header) (int, error) {
	if h.IsEndOfContents() {
		switch {
		case e.root():
			return 0, ErrUnexpectedEOC
		case e.curr.Header.Length != LengthIndefinite && e.curr.Remaining() != 0:
			return 0, ErrUnexpectedEOC
		case e.curr.Header.Length != LengthIndefinite:
			return 0, nil
		}
		return e.write(AppendHeader(e.hdr[:0], EndOfContents))
	}

	if err := checkHeader(h); err != nil {
		return 0, err
	}
	if h.Tag == asn1.Universal(TagEndOfContents) {
		return 0, ErrInvalidEOC
	}
	b := AppendHeader(e.hdr[:0], h)
	if h.Length != LengthIndefinite && uint(len(b)+h.Length) > uint(e.curr.Remaining()) {
		return 0, ErrExceedsParent
	}
	return e.write(b)
}

// write writes an encoded header to the underlying writer. The header must fit
// into the remaining space of the current TLV.
func (e *Encoder) write(b []byte) (int, error) {
	// uint conversion takes care of indefinite length
	if uint(len(b)) > uint(e.curr.Remaining()) {
		return 0, ErrTruncated
	}
	n, err := e.wr.Write(b)
	if err != nil {
		return n, &ioError{"write", err}
	}
	return n, nil
}

// valueDone gets called by the valueWriter type when a data value has been
// fully written. e automatically updates its state accordingly.
func (e *Encoder) valueDone() error {
	// We have written the entire data value. Next another TLV must follow.
	e.state.pop(0)

	if e.root() {
		// this is a root data value
		if err := e.buf.Flush(); err != nil {
			return &ioError{"write", err}
		}
	}
	return nil
}

// OutputOffset returns the current output byte offset. It gives the location of
// the next byte immediately after the most recently written header or value.
// The number of bytes actually written to the underlying [io.Writer] may be
// less than this offset due to internal buffering effects.
func (e *Encoder) OutputOffset() int64 {
	return e.offset
}

// StackDepth returns the depth of nested TLVs that have been opened and not
// closed by WriteHeader. The depth is zero-indexed, where zero represents the
// (virtual) top-level TLV.
func (e *Encoder) StackDepth() int { return len(e.stack) }

// StackIndex returns information about the specified stack level.
// It must be a number between 0 and [Encoder.StackDepth], inclusive.
//
// The TLV header at level 0 represents the top level and is not written to the
// output. The top-level TLV header is a constructed, indefinite-length data
// value with tag 0.
func (e *Encoder) StackIndex(i int) Header {
	if i == len(e.stack) {
		return e.curr.Header
	}
	return e.stack[i].Header
}

//endregion
