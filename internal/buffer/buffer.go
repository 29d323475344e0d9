// Package buffer provides a growable byte buffer with independent read
// and write cursors, used by the transport I/O buffer API and the AMQP
// frame codec.
package buffer

import "encoding/binary"

// Buffer is a growable byte slice with a read cursor (i) and a write
// boundary (len(b)). It is not safe for concurrent use.
type Buffer struct {
	b []byte
	i int
}

// New creates a Buffer wrapping a copy of b, read cursor at the start.
func New(b []byte) *Buffer {
	return &Buffer{b: append([]byte(nil), b...)}
}

// Reset empties the buffer, keeping the underlying array for reuse.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
	b.i = 0
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.b) - b.i
}

// Cap returns the capacity of the underlying array.
func (b *Buffer) Cap() int {
	return cap(b.b)
}

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.b[b.i:]
}

// Next returns the next n unread bytes, advancing the read cursor. If
// fewer than n bytes remain, it returns all that remain and false.
func (b *Buffer) Next(n int) ([]byte, bool) {
	if n > b.Len() {
		n = b.Len()
		out := b.b[b.i : b.i+n]
		b.i += n
		return out, false
	}
	out := b.b[b.i : b.i+n]
	b.i += n
	return out, true
}

// Skip advances the read cursor by n bytes (clamped to Len()).
func (b *Buffer) Skip(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.i += n
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() == 0 {
		return 0, errEOF
	}
	c := b.b[b.i]
	b.i++
	return c, nil
}

// PeekByte returns the next byte without advancing the cursor.
func (b *Buffer) PeekByte() (byte, bool) {
	if b.Len() == 0 {
		return 0, false
	}
	return b.b[b.i], true
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// WriteUint16 appends c in big-endian order.
func (b *Buffer) WriteUint16(c uint16) {
	b.b = binary.BigEndian.AppendUint16(b.b, c)
}

// WriteUint32 appends c in big-endian order.
func (b *Buffer) WriteUint32(c uint32) {
	b.b = binary.BigEndian.AppendUint32(b.b, c)
}

// WriteUint64 appends c in big-endian order.
func (b *Buffer) WriteUint64(c uint64) {
	b.b = binary.BigEndian.AppendUint64(b.b, c)
}

// Compact discards already-read bytes, resetting the read cursor to 0.
// Callers that interleave Write (for new output) with partial Next/Skip
// consumption (draining output already handed to the network) must call
// this before relying on Len() as an absolute offset into the backing
// array, as PutUint32At does.
func (b *Buffer) Compact() {
	if b.i == 0 {
		return
	}
	b.b = append(b.b[:0], b.b[b.i:]...)
	b.i = 0
}

// PutUint32At overwrites the 4 bytes at offset i with c, regardless of
// the read/write cursors. Used to backpatch the frame size header.
func (b *Buffer) PutUint32At(i int, c uint32) {
	binary.BigEndian.PutUint32(b.b[i:i+4], c)
}

type eofError struct{}

func (eofError) Error() string { return "buffer: no more bytes" }

var errEOF = eofError{}
