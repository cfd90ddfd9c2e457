package assets

import "github.com/spaghettifunk/hawk/engine/renderer/metadata"

// AssetSource produces the scene a model is built from.
type AssetSource interface {
	LoadScene(path string) (*metadata.Scene, error)
}

// TextureSource decodes texture files. The default texture names always
// resolve.
type TextureSource interface {
	LoadTexture(name string) (*metadata.Image, error)
}
