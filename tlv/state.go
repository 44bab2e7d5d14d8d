// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

// stateEntry represents the encoding or decoding state of a TLV.
type stateEntry struct {
	Header

	// Start is the stream offset of the first identifier octet of the TLV.
	Start int64

	// Offset indicates how far into the value of the TLV the encoder/decoder has
	// progressed, i.e. how many bytes have been written or read.
	Offset int

	// Length is the maximum length that the TLV value may have. This is at most the
	// length indicated by the header, but may be less if a surrounding TLV is more
	// restrictive. Length is [LengthIndefinite] if no restriction is known.
	Length int
}

// Remaining returns the remaining number of bytes within the value, or
// LengthIndefinite if the length of the element is unknown/indefinite.
func (e *stateEntry) Remaining() int {
	if e.Length == LengthIndefinite {
		return LengthIndefinite
	}
	return max(e.Length-e.Offset, 0)
}

// state maintains the state of an [Encoder] or [Decoder]. The state consists of
// a stack of TLVs that are currently being processed. At the bottom of the
// stack there is a virtual constructed indefinite-length TLV representing the
// root level of the stream.
//
// Only the offset of the topmost stateEntry is updated during processing.
// Whenever an element is removed from the stack its offset is added to the new
// topmost entry.
type state struct {
	stack  []stateEntry
	curr   stateEntry // top entry of the stack
	offset int64      // stream offset
}

// reset clears the state to a single root element. The allocated stack space is
// reused.
func (s *state) reset() {
	if s.stack == nil {
		s.stack = make([]stateEntry, 0, 10)
	}
	s.stack = s.stack[:0]
	s.curr = stateEntry{
		Header: Header{Length: LengthIndefinite, Constructed: true},
		Length: LengthIndefinite,
	}
	s.offset = 0
}

// root indicates whether s is currently at the root level.
func (s *state) root() bool {
	return len(s.stack) == 0
}

// advance records that n bytes of the current TLV have been processed.
func (s *state) advance(n int) {
	s.curr.Offset += n
	s.offset += int64(n)
}

// push puts h onto the stack, indicating that the value of h is now being
// processed. n is the size of the encoded header of h.
func (s *state) push(h Header, n int) {
	start := s.offset
	s.advance(n)
	s.stack = append(s.stack, s.curr)
	s.curr = stateEntry{
		Header: h,
		Start:  start,
		Length: MinLength(h.Length, s.curr.Remaining()),
	}
}

// pop removes the topmost element from the stack after processing its final n
// bytes. This indicates that processing of the topmost element is completed.
func (s *state) pop(n int) {
	s.advance(n)
	prev := s.curr
	s.curr = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.curr.Offset += prev.Offset
}
