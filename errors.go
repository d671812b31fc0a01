package sdfat

import "errors"

// These errors may occur while mounting or reading a volume.
// They are wrapped by checkpoint, so use errors.Is to check for them.
var (
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrNotFound         = errors.New("no such entry in the root directory")
	ErrTruncated        = errors.New("cluster chain ended before the end of the file")
	ErrSeekFile         = errors.New("could not seek inside of the file")
	ErrReadDir          = errors.New("could not read the directory")
	ErrReadOnly         = errors.New("read-only filesystem")
)
