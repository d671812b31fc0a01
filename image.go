package sdfat

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/aligator/sdfat/checkpoint"
)

//go:generate go run ./cmd/generate -d testdata

var _ BlockDevice = (*ImageDevice)(nil)

// ImageDevice reads sectors from a raw card image, e.g. one written with dd.
type ImageDevice struct {
	file afero.File
}

// OpenImage opens the image at path read-only. Use afero.NewOsFs() for images
// on the local disk.
func OpenImage(fs afero.Fs, path string) (*ImageDevice, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	return &ImageDevice{file: f}, nil
}

// NewImageDevice uses an already opened image.
func NewImageDevice(file afero.File) *ImageDevice {
	return &ImageDevice{file: file}
}

// ReadBlock reads sector lba. Reading past the end of the image is an error.
func (img *ImageDevice) ReadBlock(lba uint32, buf []byte) error {
	if img.file == nil {
		return fmt.Errorf("image is not open")
	}
	if len(buf) < sectorSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", sectorSize, len(buf))
	}

	n, err := img.file.ReadAt(buf[:sectorSize], int64(lba)*sectorSize)
	if n == sectorSize {
		return nil
	}
	if err == nil || err == io.EOF {
		err = fmt.Errorf("short read of sector %d: got %d bytes", lba, n)
	}
	return checkpoint.From(err)
}

// SectorCount returns the number of whole sectors in the image.
func (img *ImageDevice) SectorCount() uint64 {
	if img.file == nil {
		return 0
	}
	info, err := img.file.Stat()
	if err != nil {
		return 0
	}
	return uint64(info.Size() / sectorSize)
}

// Close closes the image file.
func (img *ImageDevice) Close() error {
	if img.file == nil {
		return nil
	}
	err := img.file.Close()
	img.file = nil
	return err
}
