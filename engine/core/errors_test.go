package core

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsAreDistinguishable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"api", NewAPIError("vkCreateBuffer", -2, "VK_ERROR_OUT_OF_DEVICE_MEMORY"), ErrAPI},
		{"compile", &CompileError{Path: "fill.wgsl", EntryPoint: "VSMain", Profile: "vs_5_1", Diagnostic: "boom"}, ErrShaderCompile},
		{"asset", &AssetError{Path: "scene.glb", Err: os.ErrNotExist}, ErrAsset},
		{"precondition", &PreconditionError{Msg: "heap full"}, ErrPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("initialize: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrAPI, ErrShaderCompile, ErrAsset, ErrPrecondition} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestAPIErrorCarriesCode(t *testing.T) {
	var apiErr *APIError
	err := fmt.Errorf("create device: %w", NewAPIError("vkCreateDevice", -3, "VK_ERROR_INITIALIZATION_FAILED"))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int32(-3), apiErr.Code)
	assert.Contains(t, err.Error(), "VK_ERROR_INITIALIZATION_FAILED")
}

func TestAssetErrorUnwrapsCause(t *testing.T) {
	err := &AssetError{Path: "missing.png", Err: os.ErrNotExist}
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.png")
}

func TestCompileErrorKeepsDiagnostic(t *testing.T) {
	diag := "error: expected ';'\n  --> fill.wgsl:3:10"
	err := &CompileError{Path: "fill.wgsl", EntryPoint: "PSMain", Profile: "ps_5_1", Diagnostic: diag}
	assert.Contains(t, err.Error(), diag)
}

func TestAssertPanicsWithPreconditionError(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrPrecondition)
		assert.Contains(t, err.Error(), "size 4 == capacity 4")
	}()
	Assert(false, "size %d == capacity %d", 4, 4)
}
