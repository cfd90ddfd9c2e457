package metadata

/**
 * @brief The usage mode a GPU resource is in. Every change must be declared
 * through an explicit transition barrier.
 */
type ResourceState uint8

const (
	ResourceStateCommon ResourceState = iota
	ResourceStateRenderTarget
	ResourceStatePixelShaderResource
	ResourceStateNonPixelShaderResource
	ResourceStateDepthWrite
	ResourceStateDepthRead
	ResourceStateUnorderedAccess
	ResourceStateGenericRead
	ResourceStateCopyDest
	ResourceStateCopySource
	ResourceStateVertexAndConstantBuffer
	ResourceStateIndexBuffer
	ResourceStatePresent
)

var stateNames = [...]string{
	ResourceStateCommon:                  "COMMON",
	ResourceStateRenderTarget:            "RENDER_TARGET",
	ResourceStatePixelShaderResource:     "PIXEL_SHADER_RESOURCE",
	ResourceStateNonPixelShaderResource:  "NON_PIXEL_SHADER_RESOURCE",
	ResourceStateDepthWrite:              "DEPTH_WRITE",
	ResourceStateDepthRead:               "DEPTH_READ",
	ResourceStateUnorderedAccess:         "UNORDERED_ACCESS",
	ResourceStateGenericRead:             "GENERIC_READ",
	ResourceStateCopyDest:                "COPY_DEST",
	ResourceStateCopySource:              "COPY_SOURCE",
	ResourceStateVertexAndConstantBuffer: "VERTEX_AND_CONSTANT_BUFFER",
	ResourceStateIndexBuffer:             "INDEX_BUFFER",
	ResourceStatePresent:                 "PRESENT",
}

func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// IsShaderReadable reports whether a shader may sample the resource in this state.
func (s ResourceState) IsShaderReadable() bool {
	switch s {
	case ResourceStatePixelShaderResource, ResourceStateNonPixelShaderResource,
		ResourceStateGenericRead, ResourceStateDepthRead:
		return true
	}
	return false
}
