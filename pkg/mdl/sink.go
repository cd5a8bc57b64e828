package mdl

import (
	"io"

	"github.com/anaminus/parse"

	"github.com/Faultbox/kotormdl/pkg/encoding"
)

// ByteSink is an append-only little-endian writer. Every put appends
// exactly its fixed width; Len always equals the bytes appended so far.
// The first write failure is sticky and later puts become no-ops.
type ByteSink struct {
	fw     *parse.BinaryWriter
	n      int64
	failed bool
}

// NewByteSink returns a sink writing to w.
func NewByteSink(w io.Writer) *ByteSink {
	return &ByteSink{fw: parse.NewBinaryWriter(w)}
}

// Len returns the number of bytes appended.
func (s *ByteSink) Len() int64 {
	return s.n
}

// Err returns the first write failure, if any.
func (s *ByteSink) Err() error {
	if !s.failed {
		return nil
	}
	_, err := s.fw.End()
	return err
}

func (s *ByteSink) number(v any, width int64) {
	if s.failed {
		return
	}
	if s.fw.Number(v) {
		s.failed = true
		return
	}
	s.n += width
}

// PutUint8 appends one byte.
func (s *ByteSink) PutUint8(v uint8) { s.number(v, 1) }

// PutUint16 appends a 16-bit value.
func (s *ByteSink) PutUint16(v uint16) { s.number(v, 2) }

// PutUint32 appends a 32-bit value.
func (s *ByteSink) PutUint32(v uint32) { s.number(v, 4) }

// PutFloat appends a 32-bit float.
func (s *ByteSink) PutFloat(v float32) { s.number(v, 4) }

// PutFloats appends each value as a 32-bit float.
func (s *ByteSink) PutFloats(vs ...float32) {
	for _, v := range vs {
		s.PutFloat(v)
	}
}

// PutBytes appends p verbatim.
func (s *ByteSink) PutBytes(p []byte) {
	if s.failed || len(p) == 0 {
		return
	}
	if s.fw.Bytes(p) {
		s.failed = true
		return
	}
	s.n += int64(len(p))
}

// PutZeros appends n zero bytes.
func (s *ByteSink) PutZeros(n int) {
	s.PutBytes(make([]byte, n))
}

// PutString appends str as a zero-padded field of exactly width bytes.
func (s *ByteSink) PutString(str string, width int) {
	s.PutBytes(encoding.FixedString(str, width))
}

// PutCString appends str followed by a terminating zero byte.
func (s *ByteSink) PutCString(str string) {
	s.PutBytes(encoding.UTF8ToWindows1252(str))
	s.PutUint8(0)
}

// PutArrayDef appends an (offset, count, count) triple.
func (s *ByteSink) PutArrayDef(offset uint32, count int) {
	s.PutUint32(offset)
	s.PutUint32(uint32(count))
	s.PutUint32(uint32(count))
}
