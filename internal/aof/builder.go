package aof

import "encoding/binary"

// builder appends big-endian fields to a buffer sized up front.
type builder struct {
	buf []byte
}

func newBuilder(size int) *builder {
	return &builder{buf: make([]byte, 0, size)}
}

// WriteUint8 writes a single byte.
func (b *builder) WriteUint8(v uint8) *builder {
	b.buf = append(b.buf, v)
	return b
}

// WriteUint16 writes a uint16 in big-endian order.
func (b *builder) WriteUint16(v uint16) *builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

// WriteUint32 writes a uint32 in big-endian order.
func (b *builder) WriteUint32(v uint32) *builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
	return b
}

// WriteInt32 writes an int32 in big-endian two's complement.
func (b *builder) WriteInt32(v int32) *builder {
	return b.WriteUint32(uint32(v))
}

// WriteUint writes v using width bytes. Width is 1 or 2.
func (b *builder) WriteUint(width int, v uint16) *builder {
	if width == 1 {
		return b.WriteUint8(uint8(v))
	}
	return b.WriteUint16(v)
}

// WriteShortBytes writes a 1-byte length prefix followed by data.
// Format: [length:1][bytes...]
// Callers must ensure len(data) <= 255.
func (b *builder) WriteShortBytes(data []byte) *builder {
	b.buf = append(b.buf, byte(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

// WriteBlob writes a 4-byte signed length prefix followed by data.
// Format: [length:4][bytes...]
func (b *builder) WriteBlob(data []byte) *builder {
	b.WriteInt32(int32(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

// Build returns the constructed bytes.
func (b *builder) Build() []byte {
	return b.buf
}

// Len returns the number of bytes written so far.
func (b *builder) Len() int {
	return len(b.buf)
}
