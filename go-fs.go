package sdfat

import (
	"io/fs"

	"github.com/spf13/afero"
)

// NewGoFS exposes the root directory of a mounted volume as io/fs.FS.
// It also implements fs.ReadDirFS and fs.StatFS, so fs.ReadFile, fs.WalkDir
// and http.FS work on it.
func NewGoFS(vol *Volume) fs.FS {
	return afero.NewIOFS(NewFs(vol))
}
