package metadata

type RootParameterKind uint8

const (
	RootParameterConstants RootParameterKind = iota
	RootParameterCBV
	RootParameterDescriptorTable
)

type DescriptorRangeKind uint8

const (
	DescriptorRangeSRV DescriptorRangeKind = iota
	DescriptorRangeUAV
	DescriptorRangeCBV
)

type DescriptorRange struct {
	Kind  DescriptorRangeKind
	Count uint32
}

/**
 * @brief One root signature slot. Shaders see slot i as @group(i); a root CBV
 * is binding 0 of its group, table ranges take consecutive bindings and root
 * constants are the push constant block.
 */
type RootParameter struct {
	Kind           RootParameterKind
	Num32BitValues uint32
	Ranges         []DescriptorRange
}

type RootSignatureDesc struct {
	Parameters []RootParameter
}

// TableSize is the number of descriptors a table parameter spans.
func (p RootParameter) TableSize() uint32 {
	n := uint32(0)
	for _, r := range p.Ranges {
		n += r.Count
	}
	return n
}

type CompareFunc uint8

const (
	CompareFuncAlways CompareFunc = iota
	CompareFuncLess
	CompareFuncGreaterEqual
)

type GraphicsPipelineDesc struct {
	Name          string
	RootSignature RootSignatureDesc
	VS            ShaderBytecode
	PS            ShaderBytecode
	InputLayout   []InputElementDesc
	RTVFormats    []Format
	DSVFormat     Format
	DepthEnable   bool
	DepthFunc     CompareFunc
}

type ComputePipelineDesc struct {
	Name          string
	RootSignature RootSignatureDesc
	CS            ShaderBytecode
}
