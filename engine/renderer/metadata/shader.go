package metadata

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStagePixel
	ShaderStageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStagePixel:
		return "pixel"
	case ShaderStageCompute:
		return "compute"
	}
	return "unknown"
}

// ShaderProfile is a fixed shader-model target string.
type ShaderProfile string

const (
	ShaderProfileVS ShaderProfile = "vs_5_1"
	ShaderProfilePS ShaderProfile = "ps_5_1"
	ShaderProfileCS ShaderProfile = "cs_5_1"
)

// Stage returns the pipeline stage a profile targets.
func (p ShaderProfile) Stage() (ShaderStage, bool) {
	switch p {
	case ShaderProfileVS:
		return ShaderStageVertex, true
	case ShaderProfilePS:
		return ShaderStagePixel, true
	case ShaderProfileCS:
		return ShaderStageCompute, true
	}
	return 0, false
}

// Fixed entry point names per stage.
const (
	EntryPointVS = "VSMain"
	EntryPointPS = "PSMain"
	EntryPointCS = "CSMain"
)

/**
 * @brief One element of a vertex input layout.
 */
type InputElementDesc struct {
	SemanticName      string
	SemanticIndex     uint32
	Format            Format
	InputSlot         uint32
	AlignedByteOffset uint32
	// Location is the shader input location the element feeds.
	Location uint32
}

// ShaderBytecode is a compiled stage ready for pipeline creation.
type ShaderBytecode struct {
	Stage      ShaderStage
	EntryPoint string
	Code       []byte
}
