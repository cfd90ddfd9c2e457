package metadata

import (
	"unsafe"

	"github.com/spaghettifunk/hawk/engine/math"
)

// ConstantBufferSize is the size of each per-frame upload constant buffer.
const ConstantBufferSize = 64 * (2 << 10)

// ConstantBufferAlignment is the placement alignment of a constant buffer view.
const ConstantBufferAlignment = 256

// AlignConstantBuffer rounds size up to the constant buffer view alignment.
func AlignConstantBuffer(size uint32) uint32 {
	return (size + ConstantBufferAlignment - 1) &^ (ConstantBufferAlignment - 1)
}

/** @brief Per-frame camera constants. */
type FrameConstantBuffer struct {
	View    math.Mat4
	Project math.Mat4
}

/** @brief Per-object transform constants. */
type ObjectConstantBuffer struct {
	WVP    math.Mat4
	World  math.Mat4
	Normal math.Mat4
}

const (
	FrameConstantsSize  = uint32(unsafe.Sizeof(FrameConstantBuffer{}))
	ObjectConstantsSize = uint32(unsafe.Sizeof(ObjectConstantBuffer{}))
	// ObjectConstantsOffset places the object constants after the frame constants.
	ObjectConstantsOffset = (FrameConstantsSize + ConstantBufferAlignment - 1) &^ (ConstantBufferAlignment - 1)
)

func (c *FrameConstantBuffer) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(c)), FrameConstantsSize)
}

func (c *ObjectConstantBuffer) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(c)), ObjectConstantsSize)
}
