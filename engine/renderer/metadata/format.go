package metadata

import "fmt"

/**
 * @brief Texel and vertex element formats understood by the renderer.
 */
type Format uint32

const (
	FormatUnknown Format = iota
	FormatR32Float
	FormatR32G32Float
	FormatR32G32B32Float
	FormatR32G32B32A32Float
	FormatR32Uint
	FormatR32G32Uint
	FormatR32G32B32Uint
	FormatR32G32B32A32Uint
	FormatR32Sint
	FormatR32G32Sint
	FormatR32G32B32Sint
	FormatR32G32B32A32Sint
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatR16G16Float
	FormatD32Float
)

var formatNames = map[Format]string{
	FormatUnknown:           "UNKNOWN",
	FormatR32Float:          "R32_FLOAT",
	FormatR32G32Float:       "R32G32_FLOAT",
	FormatR32G32B32Float:    "R32G32B32_FLOAT",
	FormatR32G32B32A32Float: "R32G32B32A32_FLOAT",
	FormatR32Uint:           "R32_UINT",
	FormatR32G32Uint:        "R32G32_UINT",
	FormatR32G32B32Uint:     "R32G32B32_UINT",
	FormatR32G32B32A32Uint:  "R32G32B32A32_UINT",
	FormatR32Sint:           "R32_SINT",
	FormatR32G32Sint:        "R32G32_SINT",
	FormatR32G32B32Sint:     "R32G32B32_SINT",
	FormatR32G32B32A32Sint:  "R32G32B32A32_SINT",
	FormatR8G8B8A8Unorm:     "R8G8B8A8_UNORM",
	FormatB8G8R8A8Unorm:     "B8G8R8A8_UNORM",
	FormatR16G16Float:       "R16G16_FLOAT",
	FormatD32Float:          "D32_FLOAT",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// Size returns the bytes per texel or vertex element.
func (f Format) Size() uint32 {
	switch f {
	case FormatR32Float, FormatR32Uint, FormatR32Sint, FormatR8G8B8A8Unorm,
		FormatB8G8R8A8Unorm, FormatR16G16Float, FormatD32Float:
		return 4
	case FormatR32G32Float, FormatR32G32Uint, FormatR32G32Sint:
		return 8
	case FormatR32G32B32Float, FormatR32G32B32Uint, FormatR32G32B32Sint:
		return 12
	case FormatR32G32B32A32Float, FormatR32G32B32A32Uint, FormatR32G32B32A32Sint:
		return 16
	}
	return 0
}

func (f Format) IsDepth() bool {
	return f == FormatD32Float
}

// ScalarKind is the component type of a vertex input element.
type ScalarKind uint8

const (
	ScalarFloat ScalarKind = iota
	ScalarUint
	ScalarSint
)

var vertexFormats = [3][4]Format{
	ScalarFloat: {FormatR32Float, FormatR32G32Float, FormatR32G32B32Float, FormatR32G32B32A32Float},
	ScalarUint:  {FormatR32Uint, FormatR32G32Uint, FormatR32G32B32Uint, FormatR32G32B32A32Uint},
	ScalarSint:  {FormatR32Sint, FormatR32G32Sint, FormatR32G32B32Sint, FormatR32G32B32A32Sint},
}

// VertexFormat maps a 32-bit scalar kind and a component count (1-4) to a format.
func VertexFormat(kind ScalarKind, components int) (Format, bool) {
	if int(kind) >= len(vertexFormats) || components < 1 || components > 4 {
		return FormatUnknown, false
	}
	return vertexFormats[kind][components-1], true
}
