package loaders

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// TextureLoader decodes texture files from disk into RGBA8 images. Names
// of the default textures never touch the disk.
type TextureLoader struct {
	// Dir resolves relative texture names. Empty means the working directory.
	Dir string
}

func (tl *TextureLoader) LoadTexture(name string) (*metadata.Image, error) {
	if img, ok := DefaultTexture(name); ok {
		return img, nil
	}

	path := name
	if !filepath.IsAbs(path) && tl.Dir != "" {
		path = filepath.Join(tl.Dir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, assetError(path, err)
	}
	defer file.Close()

	decoded, format, err := image.Decode(file)
	if err != nil {
		return nil, assetError(path, fmt.Errorf("decode: %w", err))
	}
	img := toRGBA8(name, decoded)
	core.LogDebug("loaded texture %s (%s, %dx%d)", path, format, img.Width, img.Height)
	return img, nil
}

func toRGBA8(name string, src image.Image) *metadata.Image {
	bounds := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	}
	return &metadata.Image{
		Name:   name,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}

var defaultTexels = map[string][4]byte{
	metadata.DEFAULT_DIFFUSE_TEXTURE_NAME:  {255, 255, 255, 255},
	metadata.DEFAULT_SPECULAR_TEXTURE_NAME: {0, 0, 0, 255},
	// Tangent space +Z.
	metadata.DEFAULT_NORMAL_TEXTURE_NAME: {128, 128, 255, 255},
}

// DefaultTexture generates the 1x1 texture for one of the default names.
func DefaultTexture(name string) (*metadata.Image, bool) {
	texel, ok := defaultTexels[name]
	if !ok {
		return nil, false
	}
	return &metadata.Image{Name: name, Width: 1, Height: 1, Pixels: texel[:]}, true
}

func assetError(path string, err error) error {
	e := &core.AssetError{Path: path, Err: err}
	core.LogError("%s", e)
	return e
}
