package assets

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/hawk/engine/assets/loaders"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// MultiSource picks a loader by path prefix first and by file extension
// second.
type MultiSource struct {
	prefixes   map[string]AssetSource
	extensions map[string]AssetSource
}

func NewMultiSource() *MultiSource {
	return &MultiSource{
		prefixes:   make(map[string]AssetSource),
		extensions: make(map[string]AssetSource),
	}
}

// NewDefaultSource serves procedural shapes and glTF files.
func NewDefaultSource() *MultiSource {
	ms := NewMultiSource()
	ms.RegisterPrefix(loaders.ProceduralPrefix, &loaders.ProceduralLoader{})
	gltf := &loaders.GLTFLoader{}
	ms.RegisterExtension(".gltf", gltf)
	ms.RegisterExtension(".glb", gltf)
	return ms
}

func (ms *MultiSource) RegisterPrefix(prefix string, source AssetSource) {
	ms.prefixes[prefix] = source
}

func (ms *MultiSource) RegisterExtension(ext string, source AssetSource) {
	ms.extensions[strings.ToLower(ext)] = source
}

func (ms *MultiSource) LoadScene(path string) (*metadata.Scene, error) {
	for prefix, source := range ms.prefixes {
		if strings.HasPrefix(path, prefix) {
			return source.LoadScene(path)
		}
	}
	if source, ok := ms.extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return source.LoadScene(path)
	}
	err := &core.AssetError{Path: path, Err: fmt.Errorf("no loader for %q", filepath.Ext(path))}
	core.LogError("%s", err)
	return nil, err
}

// NewTextureSource loads textures relative to dir.
func NewTextureSource(dir string) TextureSource {
	return &loaders.TextureLoader{Dir: dir}
}
