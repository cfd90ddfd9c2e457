package metadata

/**
 * @brief A paired CPU/GPU handle identifying one slot of a descriptor heap.
 * GPU is zero for heaps that are not shader visible.
 */
type DescriptorHandle struct {
	CPU uint64
	GPU uint64
}

func (h DescriptorHandle) Offset(bytes uint64) DescriptorHandle {
	out := DescriptorHandle{CPU: h.CPU + bytes}
	if h.GPU != 0 {
		out.GPU = h.GPU + bytes
	}
	return out
}

type DescriptorHeapType uint8

const (
	DescriptorHeapTypeCBVSRVUAV DescriptorHeapType = iota
	DescriptorHeapTypeRTV
	DescriptorHeapTypeDSV
)

func (t DescriptorHeapType) String() string {
	switch t {
	case DescriptorHeapTypeCBVSRVUAV:
		return "CBV_SRV_UAV"
	case DescriptorHeapTypeRTV:
		return "RTV"
	case DescriptorHeapTypeDSV:
		return "DSV"
	}
	return "UNKNOWN"
}

type DescriptorHeapDesc struct {
	Type          DescriptorHeapType
	Capacity      uint32
	ShaderVisible bool
}
