package metadata

import "github.com/spaghettifunk/hawk/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

const (
	/** @brief The default diffuse texture name. */
	DEFAULT_DIFFUSE_TEXTURE_NAME string = "default_DIFF"
	/** @brief The default specular texture name. */
	DEFAULT_SPECULAR_TEXTURE_NAME string = "default_SPEC"
	/** @brief The default normal texture name. */
	DEFAULT_NORMAL_TEXTURE_NAME string = "default_NORM"
)

/**
 * @brief Texture slots of a material, in descriptor allocation order.
 */
type TextureSlot uint8

const (
	TextureSlotDiffuse TextureSlot = iota
	TextureSlotSpecular
	TextureSlotNormal
	TextureSlotCount
)

// DescriptorsPerMaterial is the number of SRVs each material occupies in the table.
const DescriptorsPerMaterial = uint32(TextureSlotCount)

/**
 * @brief Material configuration as declared by a scene. Empty texture names
 * fall back to the default material's texture for that slot.
 */
type MaterialDesc struct {
	Name      string
	Textures  [TextureSlotCount]string
	Ambient   math.Vec4
	Diffuse   math.Vec4
	Specular  math.Vec4
	Emission  math.Vec4
	Shininess float32
}

// DefaultMaterialDesc is the material at index 0 of every model.
func DefaultMaterialDesc() MaterialDesc {
	return MaterialDesc{
		Name: DefaultMaterialName,
		Textures: [TextureSlotCount]string{
			DEFAULT_DIFFUSE_TEXTURE_NAME,
			DEFAULT_SPECULAR_TEXTURE_NAME,
			DEFAULT_NORMAL_TEXTURE_NAME,
		},
		Ambient:   math.NewVec4(0.1, 0.1, 0.1, 1),
		Diffuse:   math.NewVec4One(),
		Specular:  math.NewVec4(0.5, 0.5, 0.5, 1),
		Shininess: 32,
	}
}

/**
 * @brief A material after fallback resolution: every slot names a texture and
 * FirstDescriptor is its first SRV in the shader-visible heap.
 */
type Material struct {
	MaterialDesc
	FirstDescriptor DescriptorHandle
}
