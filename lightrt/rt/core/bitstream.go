package core

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrStreamUnderflow = errors.New("bitstream: read past end")

// BitStream packs values LSB-first at bit granularity. Reads past the end
// return zero values and latch ErrStreamUnderflow.
type BitStream struct {
	buf     []byte
	writeAt int
	readAt  int
	err     error
}

func NewBitStream() *BitStream { return &BitStream{} }

// NewBitStreamFrom wraps data for reading.
func NewBitStreamFrom(data []byte) *BitStream {
	return &BitStream{buf: data, writeAt: len(data) * 8}
}

func (s *BitStream) Bytes() []byte { return s.buf }

func (s *BitStream) BitPosition() int { return s.writeAt }

func (s *BitStream) Err() error { return s.err }

// Rewind moves the read cursor back to the start.
func (s *BitStream) Rewind() {
	s.readAt = 0
	s.err = nil
}

func (s *BitStream) writeBit(on bool) {
	if s.writeAt/8 >= len(s.buf) {
		s.buf = append(s.buf, 0)
	}
	if on {
		s.buf[s.writeAt/8] |= 1 << (s.writeAt % 8)
	}
	s.writeAt++
}

func (s *BitStream) readBit() bool {
	if s.readAt >= s.writeAt {
		s.err = ErrStreamUnderflow
		return false
	}
	on := s.buf[s.readAt/8]&(1<<(s.readAt%8)) != 0
	s.readAt++
	return on
}

// WriteInt writes the low bits of v.
func (s *BitStream) WriteInt(v uint32, bits int) {
	for i := 0; i < bits; i++ {
		s.writeBit(v&(1<<i) != 0)
	}
}

func (s *BitStream) ReadInt(bits int) uint32 {
	var v uint32
	for i := 0; i < bits; i++ {
		if s.readBit() {
			v |= 1 << i
		}
	}
	return v
}

// WriteFlag writes one bit and returns it so callers can branch on it.
func (s *BitStream) WriteFlag(on bool) bool {
	s.writeBit(on)
	return on
}

func (s *BitStream) ReadFlag() bool { return s.readBit() }

func (s *BitStream) WriteUint32(v uint32) { s.WriteInt(v, 32) }

func (s *BitStream) ReadUint32() uint32 { return s.ReadInt(32) }

func (s *BitStream) WriteFloat32(f float32) { s.WriteInt(math.Float32bits(f), 32) }

func (s *BitStream) ReadFloat32() float32 { return math.Float32frombits(s.ReadInt(32)) }

func (s *BitStream) WriteVec3(v mgl32.Vec3) {
	for _, c := range v {
		s.WriteFloat32(c)
	}
}

func (s *BitStream) ReadVec3() mgl32.Vec3 {
	return mgl32.Vec3{s.ReadFloat32(), s.ReadFloat32(), s.ReadFloat32()}
}

func (s *BitStream) WriteVec4(v mgl32.Vec4) {
	for _, c := range v {
		s.WriteFloat32(c)
	}
}

func (s *BitStream) ReadVec4() mgl32.Vec4 {
	return mgl32.Vec4{s.ReadFloat32(), s.ReadFloat32(), s.ReadFloat32(), s.ReadFloat32()}
}
