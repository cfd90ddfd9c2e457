package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func TestDescriptorAllocatorHandles(t *testing.T) {
	tests := []struct {
		name          string
		heapType      metadata.DescriptorHeapType
		shaderVisible bool
	}{
		{"rtv", metadata.DescriptorHeapTypeRTV, false},
		{"dsv", metadata.DescriptorHeapTypeDSV, false},
		{"cbv_srv_uav", metadata.DescriptorHeapTypeCBVSRVUAV, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			a, err := NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{Type: tt.heapType, Capacity: 16, ShaderVisible: tt.shaderVisible})
			require.NoError(t, err)
			defer a.Release()

			seen := make(map[uint64]bool)
			for i := uint32(0); i < a.Capacity(); i++ {
				h := a.Allocate()
				assert.False(t, seen[h.CPU], "slot %d handed out twice", i)
				seen[h.CPU] = true
				assert.Equal(t, a.Heap().CPUStart()+uint64(i)*uint64(a.Stride()), h.CPU)
				if tt.shaderVisible {
					assert.Equal(t, a.Heap().GPUStart()+uint64(i)*uint64(a.Stride()), h.GPU)
				} else {
					assert.Zero(t, h.GPU)
				}
			}
			assert.Equal(t, a.Capacity(), a.Size())
			assert.Equal(t, tt.heapType, a.Type())
		})
	}
}

func TestDescriptorAllocatorUsesDeviceStride(t *testing.T) {
	dev := headless.NewDevice(headless.Options{
		DescriptorIncrements: map[metadata.DescriptorHeapType]uint32{metadata.DescriptorHeapTypeRTV: 64},
	})
	defer dev.Release()

	a, err := NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeRTV, Capacity: 4})
	require.NoError(t, err)
	defer a.Release()

	first, second := a.Allocate(), a.Allocate()
	assert.Equal(t, uint32(64), a.Stride())
	assert.Equal(t, uint64(64), second.CPU-first.CPU)
	assert.Equal(t, first.Offset(64), second)
}

func TestDescriptorAllocatorOverflowPanics(t *testing.T) {
	dev := newTestDevice(t)
	a, err := NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeDSV, Capacity: 2})
	require.NoError(t, err)
	defer a.Release()

	a.Allocate()
	a.Allocate()
	requirePrecondition(t, func() { a.Allocate() })
	assert.Equal(t, uint32(2), a.Size())
}

func TestDescriptorHeapsRejectZeroCapacity(t *testing.T) {
	dev := newTestDevice(t)
	caps := DefaultHeapCapacities()
	caps.DSV = 0
	_, err := NewDescriptorHeaps(dev, caps)
	assert.ErrorIs(t, err, core.ErrAPI)

	heaps, err := NewDescriptorHeaps(dev, DefaultHeapCapacities())
	require.NoError(t, err)
	defer heaps.Release()
	assert.Equal(t, uint32(128), heaps.RTV.Capacity())
	assert.Equal(t, uint32(32), heaps.DSV.Capacity())
	assert.Equal(t, uint32(256), heaps.CBVSRVUAV.Capacity())
	assert.NotZero(t, heaps.CBVSRVUAV.Heap().GPUStart())
}
