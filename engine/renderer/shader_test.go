package renderer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func shaderSource(file, entry string, profile metadata.ShaderProfile) ShaderSource {
	return ShaderSource{Path: filepath.Join(testShaderDir, file), EntryPoint: entry, Profile: profile}
}

func TestCompileFillVertexShaderReflectsLayout(t *testing.T) {
	sm, err := CompileShader(shaderSource(FillShaderFile, metadata.EntryPointVS, metadata.ShaderProfileVS))
	require.NoError(t, err)

	assert.Equal(t, metadata.ShaderStageVertex, sm.Stage)
	assert.NotEmpty(t, sm.Bytecode)
	assert.Equal(t, metadata.VertexInputLayout, sm.InputLayout)
	assert.Equal(t, [3]uint32{}, sm.Workgroup)

	code := sm.Bytes()
	assert.Equal(t, metadata.ShaderStageVertex, code.Stage)
	assert.Equal(t, metadata.EntryPointVS, code.EntryPoint)
}

func TestCompileComputeShadersReflectWorkgroup(t *testing.T) {
	for _, file := range []string{AmbientOcclusionShaderFile, ReflectionShaderFile} {
		t.Run(file, func(t *testing.T) {
			sm, err := CompileShader(shaderSource(file, metadata.EntryPointCS, metadata.ShaderProfileCS))
			require.NoError(t, err)
			assert.Equal(t, metadata.ShaderStageCompute, sm.Stage)
			assert.Equal(t, [3]uint32{8, 8, 1}, sm.Workgroup)
			assert.Empty(t, sm.InputLayout)
		})
	}
}

func TestCompilePixelShaders(t *testing.T) {
	for _, file := range []string{FillShaderFile, CompositeShaderFile} {
		sm, err := CompileShader(shaderSource(file, metadata.EntryPointPS, metadata.ShaderProfilePS))
		require.NoError(t, err, file)
		assert.Equal(t, metadata.ShaderStagePixel, sm.Stage)
	}
}

func TestCompositeVertexShaderHasNoInputs(t *testing.T) {
	sm, err := CompileShader(shaderSource(CompositeShaderFile, metadata.EntryPointVS, metadata.ShaderProfileVS))
	require.NoError(t, err)
	assert.Empty(t, sm.InputLayout, "vertex_index is a builtin, not a vertex input")
}

func TestReflectInputLayoutFormats(t *testing.T) {
	const src = `
struct In {
    @location(2) weights0: vec4<f32>,
    @location(0) pos: vec3<f32>,
    @location(1) id: u32,
    @location(3) offset: vec2<i32>,
}

@vertex
fn VSMain(input: In, @builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(input.pos, input.weights0.x);
}
`
	sm, err := CompileShaderSource(ShaderSource{Path: "inline.wgsl", EntryPoint: metadata.EntryPointVS, Profile: metadata.ShaderProfileVS}, src)
	require.NoError(t, err)

	want := []metadata.InputElementDesc{
		{SemanticName: "POS", Format: metadata.FormatR32G32B32Float, AlignedByteOffset: 0, Location: 0},
		{SemanticName: "ID", Format: metadata.FormatR32Uint, AlignedByteOffset: 12, Location: 1},
		{SemanticName: "WEIGHTS", Format: metadata.FormatR32G32B32A32Float, AlignedByteOffset: 16, Location: 2},
		{SemanticName: "OFFSET", Format: metadata.FormatR32G32Sint, AlignedByteOffset: 32, Location: 3},
	}
	assert.Equal(t, want, sm.InputLayout)
}

func TestSplitSemantic(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		index uint32
	}{
		{"texcoord", "TEXCOORD", 0},
		{"texcoord1", "TEXCOORD", 1},
		{"color12", "COLOR", 12},
		{"42", "42", 0},
	}
	for _, tt := range tests {
		name, index := splitSemantic(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.index, index, tt.in)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     ShaderSource
		code    string
		message string
	}{
		{
			name:    "syntax",
			src:     ShaderSource{Path: "broken.wgsl", EntryPoint: metadata.EntryPointCS, Profile: metadata.ShaderProfileCS},
			code:    "@compute @workgroup_size(1) fn CSMain( {",
			message: "",
		},
		{
			name:    "missing entry point",
			src:     shaderSource(FillShaderFile, metadata.EntryPointCS, metadata.ShaderProfileCS),
			message: "entry point CSMain not found",
		},
		{
			name:    "stage mismatch",
			src:     shaderSource(FillShaderFile, metadata.EntryPointVS, metadata.ShaderProfilePS),
			message: "is not a pixel shader",
		},
		{
			name:    "unknown profile",
			src:     shaderSource(FillShaderFile, metadata.EntryPointVS, "gs_5_1"),
			message: "unknown profile",
		},
		{
			name:    "missing file",
			src:     shaderSource("missing.wgsl", metadata.EntryPointVS, metadata.ShaderProfileVS),
			message: "missing.wgsl",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.code != "" {
				_, err = CompileShaderSource(tt.src, tt.code)
			} else {
				_, err = CompileShader(tt.src)
			}
			require.ErrorIs(t, err, core.ErrShaderCompile)

			var ce *core.CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.src.Path, ce.Path)
			assert.Equal(t, tt.src.EntryPoint, ce.EntryPoint)
			assert.Equal(t, string(tt.src.Profile), ce.Profile)
			assert.NotEmpty(t, ce.Diagnostic)
			assert.Contains(t, ce.Diagnostic, tt.message)
		})
	}
}

func TestCompileErrorReportsEveryLoweringError(t *testing.T) {
	code := `fn first() -> f32 {
    return firstMissing;
}

fn second() -> f32 {
    return secondMissing;
}

@compute @workgroup_size(1)
fn CSMain() {
}
`
	src := ShaderSource{Path: "two_errors.wgsl", EntryPoint: metadata.EntryPointCS, Profile: metadata.ShaderProfileCS}
	_, err := CompileShaderSource(src, code)
	require.ErrorIs(t, err, core.ErrShaderCompile)

	var ce *core.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Diagnostic, "firstMissing")
	assert.Contains(t, ce.Diagnostic, "secondMissing")
	// Source context is kept for each error.
	assert.Contains(t, ce.Diagnostic, "return firstMissing;")
	assert.Contains(t, ce.Diagnostic, "return secondMissing;")
}
