package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// ErrAPI marks failures returned by the graphics API.
	ErrAPI = errors.New("graphics api call failed")
	// ErrShaderCompile marks shader compilation failures.
	ErrShaderCompile = errors.New("shader compilation failed")
	// ErrPrecondition marks programmer errors caught by Assert.
	ErrPrecondition = errors.New("precondition violated")
	// ErrAsset marks missing or malformed scene and texture files.
	ErrAsset = errors.New("asset error")
)

// APIError carries the failure code of a graphics API call.
type APIError struct {
	Op     string
	Code   int32
	Result string
}

func NewAPIError(op string, code int32, result string) *APIError {
	return &APIError{Op: op, Code: code, Result: result}
}

func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("%s failed with code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed with code %d: %s", e.Op, e.Code, e.Result)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// CompileError keeps the complete compiler diagnostic for the operator.
type CompileError struct {
	Path       string
	EntryPoint string
	Profile    string
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s (%s, %s):\n%s", e.Path, e.EntryPoint, e.Profile, e.Diagnostic)
}

func (e *CompileError) Is(target error) bool { return target == ErrShaderCompile }

// AssetError reports the offending path of a scene or texture file.
type AssetError struct {
	Path string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %q: %v", e.Path, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

func (e *AssetError) Is(target error) bool { return target == ErrAsset }

type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return "precondition violated: " + e.Msg
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

/**
 * @brief Panics with a *PreconditionError when cond is false. Used for programmer
 * errors (allocator exhaustion, command list misuse) that must never be recovered
 * from inside the renderer.
 */
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	err := &PreconditionError{Msg: fmt.Sprintf(format, args...)}
	LogError("%s", err)
	panic(err)
}
