package metadata

type ResourceDimension uint8

const (
	ResourceDimensionBuffer ResourceDimension = iota
	ResourceDimensionTexture2D
)

type ResourceFlags uint8

const (
	ResourceFlagNone                 ResourceFlags = 0
	ResourceFlagAllowRenderTarget    ResourceFlags = 0x1
	ResourceFlagAllowDepthStencil    ResourceFlags = 0x2
	ResourceFlagAllowUnorderedAccess ResourceFlags = 0x4
)

/**
 * @brief Where a committed resource lives. Upload heap memory is CPU writable,
 * coherent and persistently mappable; default heap memory is GPU only.
 */
type HeapType uint8

const (
	HeapTypeDefault HeapType = iota
	HeapTypeUpload
)

type ResourceDesc struct {
	Name      string
	Dimension ResourceDimension
	// Width is the byte size for buffers.
	Width  uint64
	Height uint32
	Format Format
	Flags  ResourceFlags
}

func NewBufferDesc(name string, size uint64) ResourceDesc {
	return ResourceDesc{Name: name, Dimension: ResourceDimensionBuffer, Width: size, Height: 1}
}

func NewTexture2DDesc(name string, width, height uint32, format Format, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Name:      name,
		Dimension: ResourceDimensionTexture2D,
		Width:     uint64(width),
		Height:    height,
		Format:    format,
		Flags:     flags,
	}
}

// ByteSize is the tightly packed size of the resource contents.
func (d ResourceDesc) ByteSize() uint64 {
	if d.Dimension == ResourceDimensionBuffer {
		return d.Width
	}
	return d.Width * uint64(d.Height) * uint64(d.Format.Size())
}

type ClearValue struct {
	Format  Format
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	Left, Top, Right, Bottom int32
}

type VertexBufferView struct {
	BufferLocation uint64
	SizeInBytes    uint32
	StrideInBytes  uint32
}

type IndexBufferView struct {
	BufferLocation uint64
	SizeInBytes    uint32
	Format         Format
}
