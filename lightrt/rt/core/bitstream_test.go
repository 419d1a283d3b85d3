package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitStreamMixedFields(t *testing.T) {
	bs := NewBitStream()
	bs.WriteInt(5, 8)
	bs.WriteFlag(true)
	bs.WriteUint32(0xDEADBEEF)
	bs.WriteFloat32(-3.25)
	bs.WriteFlag(false)
	bs.WriteVec3(mgl32.Vec3{1, 2, 3})
	bs.WriteVec4(mgl32.Vec4{4, 5, 6, 7})

	assert.Equal(t, 8+1+32+32+1+96+128, bs.BitPosition())

	rd := NewBitStreamFrom(bs.Bytes())
	assert.Equal(t, uint32(5), rd.ReadInt(8))
	assert.True(t, rd.ReadFlag())
	assert.Equal(t, uint32(0xDEADBEEF), rd.ReadUint32())
	assert.Equal(t, float32(-3.25), rd.ReadFloat32())
	assert.False(t, rd.ReadFlag())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, rd.ReadVec3())
	assert.Equal(t, mgl32.Vec4{4, 5, 6, 7}, rd.ReadVec4())
	require.NoError(t, rd.Err())
}

func TestBitStreamUnderflow(t *testing.T) {
	bs := NewBitStream()
	bs.WriteInt(3, 2)

	assert.Equal(t, uint32(3), bs.ReadInt(2))
	assert.Equal(t, uint32(0), bs.ReadInt(4))
	assert.ErrorIs(t, bs.Err(), ErrStreamUnderflow)

	bs.Rewind()
	assert.NoError(t, bs.Err())
	assert.Equal(t, uint32(3), bs.ReadInt(2))
}

func TestSignalOrdering(t *testing.T) {
	var s Signal[int]
	var calls []string

	s.Notify(func(v int) { calls = append(calls, "late") }, 1.0)
	early := s.Notify(func(v int) { calls = append(calls, "early") }, 0.01)
	s.Notify(func(v int) { calls = append(calls, "late2") }, 1.0)

	s.Trigger(1)
	assert.Equal(t, []string{"early", "late", "late2"}, calls)

	assert.True(t, s.Remove(early))
	assert.False(t, s.Remove(early))
	calls = nil
	s.Trigger(2)
	assert.Equal(t, []string{"late", "late2"}, calls)
	assert.Equal(t, 2, s.Len())
}
