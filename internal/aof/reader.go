package aof

import "encoding/binary"

// reader consumes big-endian fields from a buffer. Every read is bounds
// checked and fails with ErrTruncatedInput once the buffer is exhausted.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

// Offset returns the position of the next unread byte.
func (r *reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *reader) Remaining() int {
	return len(r.buf) - r.off
}

// take returns the next n bytes without copying them.
func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrTruncatedInput
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

// uint reads an unsigned value of width 1 or 2 bytes.
func (r *reader) uint(width int) (uint16, error) {
	if width == 1 {
		v, err := r.uint8()
		return uint16(v), err
	}
	return r.uint16()
}

// shortBytes reads a 1-byte length prefix and that many bytes.
func (r *reader) shortBytes() ([]byte, error) {
	n, err := r.uint8()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// blob reads a 4-byte signed length prefix and that many bytes.
// A negative length cannot be satisfied and reads as truncated input.
func (r *reader) blob() ([]byte, error) {
	n, err := r.int32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}
