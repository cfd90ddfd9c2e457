package renderer

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// ShaderSource names one entry point of a WGSL file.
type ShaderSource struct {
	Path       string
	EntryPoint string
	Profile    metadata.ShaderProfile
}

/**
 * @brief A compiled shader stage plus what was reflected from it.
 * InputLayout is only populated for vertex shaders, Workgroup only for
 * compute shaders.
 */
type ShaderModule struct {
	Source      ShaderSource
	Stage       metadata.ShaderStage
	Bytecode    []byte
	InputLayout []metadata.InputElementDesc
	Workgroup   [3]uint32
}

// CompileShader reads and compiles src.Path.
func CompileShader(src ShaderSource) (*ShaderModule, error) {
	code, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, compileError(src, err.Error())
	}
	return CompileShaderSource(src, string(code))
}

// CompileShaderSource compiles WGSL text already in memory. src.Path is only
// used for diagnostics.
func CompileShaderSource(src ShaderSource, code string) (*ShaderModule, error) {
	stage, ok := src.Profile.Stage()
	if !ok {
		return nil, compileError(src, fmt.Sprintf("unknown profile %q", src.Profile))
	}

	ast, err := naga.Parse(code)
	if err != nil {
		return nil, compileError(src, err.Error())
	}
	module, err := naga.LowerWithSource(ast, code)
	if err != nil {
		return nil, compileError(src, diagnostic(err))
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, compileError(src, err.Error())
	}
	if len(verrs) > 0 {
		lines := make([]string, 0, len(verrs))
		for i := range verrs {
			lines = append(lines, verrs[i].Error())
		}
		return nil, compileError(src, strings.Join(lines, "\n"))
	}

	ep, err := findEntryPoint(module, src.EntryPoint, stage)
	if err != nil {
		return nil, compileError(src, err.Error())
	}

	bytecode, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, compileError(src, err.Error())
	}

	sm := &ShaderModule{
		Source:   src,
		Stage:    stage,
		Bytecode: bytecode,
	}
	switch stage {
	case metadata.ShaderStageVertex:
		if sm.InputLayout, err = reflectInputLayout(module, ep); err != nil {
			return nil, compileError(src, err.Error())
		}
	case metadata.ShaderStageCompute:
		sm.Workgroup = ep.Workgroup
	}
	core.LogDebug("compiled %s:%s (%s, %d bytes)", src.Path, src.EntryPoint, src.Profile, len(bytecode))
	return sm, nil
}

func (s *ShaderModule) Bytes() metadata.ShaderBytecode {
	return metadata.ShaderBytecode{Stage: s.Stage, EntryPoint: s.Source.EntryPoint, Code: s.Bytecode}
}

func compileError(src ShaderSource, diag string) error {
	err := &core.CompileError{
		Path:       src.Path,
		EntryPoint: src.EntryPoint,
		Profile:    string(src.Profile),
		Diagnostic: diag,
	}
	core.LogError("%s", err)
	return err
}

// diagnostic prefers the multi-error report with source context. The naga
// error types are internal, so they are matched by method set.
func diagnostic(err error) string {
	var list interface{ FormatAll() string }
	if errors.As(err, &list) {
		return list.FormatAll()
	}
	var single interface{ FormatWithContext() string }
	if errors.As(err, &single) {
		return single.FormatWithContext()
	}
	return err.Error()
}

var irStages = map[metadata.ShaderStage]ir.ShaderStage{
	metadata.ShaderStageVertex:  ir.StageVertex,
	metadata.ShaderStagePixel:   ir.StageFragment,
	metadata.ShaderStageCompute: ir.StageCompute,
}

func findEntryPoint(module *ir.Module, name string, stage metadata.ShaderStage) (*ir.EntryPoint, error) {
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Name != name {
			continue
		}
		if ep.Stage != irStages[stage] {
			return nil, fmt.Errorf("entry point %s is not a %s shader", name, stage)
		}
		return ep, nil
	}
	return nil, fmt.Errorf("entry point %s not found", name)
}

type locationInput struct {
	name     string
	location uint32
	ty       ir.TypeHandle
}

func locationOf(b *ir.Binding) (uint32, bool) {
	if b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	}
	return 0, false
}

// reflectInputLayout turns every @location input of the entry point into a
// packed input element, sorted by location.
func reflectInputLayout(module *ir.Module, ep *ir.EntryPoint) ([]metadata.InputElementDesc, error) {
	fn := &ep.Function

	var inputs []locationInput
	for _, arg := range fn.Arguments {
		if loc, ok := locationOf(arg.Binding); ok {
			inputs = append(inputs, locationInput{name: arg.Name, location: loc, ty: arg.Type})
			continue
		}
		if arg.Binding != nil {
			// builtin
			continue
		}
		if int(arg.Type) >= len(module.Types) {
			return nil, fmt.Errorf("argument %s has an invalid type", arg.Name)
		}
		st, ok := module.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			return nil, fmt.Errorf("argument %s has no binding", arg.Name)
		}
		for _, m := range st.Members {
			if loc, ok := locationOf(m.Binding); ok {
				inputs = append(inputs, locationInput{name: m.Name, location: loc, ty: m.Type})
			}
		}
	}
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].location < inputs[j].location })

	layout := make([]metadata.InputElementDesc, 0, len(inputs))
	offset := uint32(0)
	for _, in := range inputs {
		format, err := inputFormat(module, in)
		if err != nil {
			return nil, err
		}
		name, index := splitSemantic(in.name)
		layout = append(layout, metadata.InputElementDesc{
			SemanticName:      name,
			SemanticIndex:     index,
			Format:            format,
			InputSlot:         0,
			AlignedByteOffset: offset,
			Location:          in.location,
		})
		offset += format.Size()
	}
	return layout, nil
}

func inputFormat(module *ir.Module, in locationInput) (metadata.Format, error) {
	if int(in.ty) >= len(module.Types) {
		return metadata.FormatUnknown, fmt.Errorf("input %s has an invalid type", in.name)
	}
	var (
		scalar     ir.ScalarType
		components int
	)
	switch t := module.Types[in.ty].Inner.(type) {
	case ir.ScalarType:
		scalar, components = t, 1
	case ir.VectorType:
		scalar, components = t.Scalar, int(t.Size)
	default:
		return metadata.FormatUnknown, fmt.Errorf("input %s has unsupported type %T", in.name, t)
	}
	if scalar.Width != 4 {
		return metadata.FormatUnknown, fmt.Errorf("input %s has %d-byte components", in.name, scalar.Width)
	}
	var kind metadata.ScalarKind
	switch scalar.Kind {
	case ir.ScalarFloat:
		kind = metadata.ScalarFloat
	case ir.ScalarUint:
		kind = metadata.ScalarUint
	case ir.ScalarSint:
		kind = metadata.ScalarSint
	default:
		return metadata.FormatUnknown, fmt.Errorf("input %s has unsupported scalar kind", in.name)
	}
	format, ok := metadata.VertexFormat(kind, components)
	if !ok {
		return metadata.FormatUnknown, fmt.Errorf("input %s has %d components", in.name, components)
	}
	return format, nil
}

// splitSemantic maps "texcoord1" to ("TEXCOORD", 1).
func splitSemantic(name string) (string, uint32) {
	end := len(name)
	for end > 0 && name[end-1] >= '0' && name[end-1] <= '9' {
		end--
	}
	index := uint32(0)
	if end < len(name) && end > 0 {
		if n, err := strconv.ParseUint(name[end:], 10, 32); err == nil {
			index = uint32(n)
		}
	} else {
		end = len(name)
	}
	return strings.ToUpper(name[:end]), index
}
