// This file is part of GoRE.
//
// Copyright (C) 2019-2024 GoRE Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package bloat

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Stream is a cursor over a byte buffer with fixed-width, byte order aware
// reads. It is used by all the format parsers.
//
// Reads past the end of the buffer abort the parse. The parse entry points
// turn the abort into a *ParseError wrapping ErrUnexpectedEOF, so callers of
// the package never observe it.
type Stream struct {
	data   []byte
	offset int
	order  binary.ByteOrder
}

// NewStream returns a stream positioned at the start of data.
func NewStream(data []byte, order binary.ByteOrder) *Stream {
	return &Stream{data: data, order: order}
}

// NewStreamAt returns a stream positioned at offset.
func NewStreamAt(data []byte, offset uint64, order binary.ByteOrder) *Stream {
	if offset > uint64(len(data)) {
		panic(streamError{offset: offset, need: 0, size: len(data)})
	}
	return &Stream{data: data, offset: int(offset), order: order}
}

type streamError struct {
	offset uint64
	need   uint64
	size   int
}

func (e streamError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer of %d bytes", e.need, e.offset, e.size)
}

func (s *Stream) take(n uint64) []byte {
	if n > uint64(len(s.data)-s.offset) {
		panic(streamError{offset: uint64(s.offset), need: n, size: len(s.data)})
	}
	b := s.data[s.offset : s.offset+int(n)]
	s.offset += int(n)
	return b
}

// ReadU8 reads one byte.
func (s *Stream) ReadU8() uint8 {
	return s.take(1)[0]
}

// ReadU16 reads an unsigned 16-bit integer.
func (s *Stream) ReadU16() uint16 {
	return s.order.Uint16(s.take(2))
}

// ReadI16 reads a signed 16-bit integer.
func (s *Stream) ReadI16() int16 {
	return int16(s.ReadU16())
}

// ReadU32 reads an unsigned 32-bit integer.
func (s *Stream) ReadU32() uint32 {
	return s.order.Uint32(s.take(4))
}

// ReadU64 reads an unsigned 64-bit integer.
func (s *Stream) ReadU64() uint64 {
	return s.order.Uint64(s.take(8))
}

// ReadBytes returns the next n bytes. The slice is shared with the
// underlying buffer.
func (s *Stream) ReadBytes(n uint64) []byte {
	return s.take(n)
}

// Skip advances the cursor by n bytes.
func (s *Stream) Skip(n uint64) {
	s.take(n)
}

// AtEnd reports whether the whole buffer has been consumed.
func (s *Stream) AtEnd() bool {
	return s.offset == len(s.data)
}

// Offset returns the current cursor position.
func (s *Stream) Offset() uint64 {
	return uint64(s.offset)
}

// catchEOF must be deferred by every parse entry point. It converts a
// stream overrun into a ParseError for the stage the parser was in.
func catchEOF(f Format, stage *Stage, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(streamError); !ok {
		panic(r)
	}
	*err = parseErr(f, *stage, fmt.Errorf("%w: %v", ErrUnexpectedEOF, r))
}

// Decode runs fn, which reads from one or more Streams, and converts a read
// past the end of a stream into an error wrapping ErrUnexpectedEOF.
func Decode(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		se, ok := r.(streamError)
		if !ok {
			panic(r)
		}
		err = fmt.Errorf("%w: %v", ErrUnexpectedEOF, se)
	}()
	return fn()
}

// readCString returns the NUL terminated string starting at off. A string
// without terminator runs to the end of the blob.
func readCString(blob []byte, off uint64) (string, bool) {
	if off >= uint64(len(blob)) {
		return "", false
	}
	b := blob[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), true
}

// inRange reports whether [off, off+size) lies within a buffer of length n.
func inRange(off, size uint64, n int) bool {
	end := off + size
	return end >= off && end <= uint64(n)
}
