package sdfat

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/afero"

	"github.com/aligator/sdfat/checkpoint"
)

// fsFile is the afero.File handed out by Fs. Either it is the root directory
// or it wraps a read cursor of a single file.
type fsFile struct {
	fs   *Fs
	name string

	isDirectory bool
	closed      bool

	entry  DirEntry
	cursor *File

	// dirOffset counts the entries already returned by Readdir.
	dirOffset int
}

var _ afero.File = (*fsFile)(nil)

func (f *fsFile) Close() error {
	if f.closed {
		return &os.PathError{Op: "close", Path: f.name, Err: os.ErrClosed}
	}

	f.closed = true
	f.cursor = nil
	return nil
}

func (f *fsFile) checkFile(op string) error {
	if f.closed {
		return &os.PathError{Op: op, Path: f.name, Err: os.ErrClosed}
	}
	if f.isDirectory {
		return &os.PathError{Op: op, Path: f.name, Err: syscall.EISDIR}
	}
	return nil
}

func (f *fsFile) Read(p []byte) (int, error) {
	if err := f.checkFile("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.fs.lock.Lock()
	defer f.fs.lock.Unlock()

	n, err := f.cursor.Read(p)
	if err != nil {
		return n, checkpoint.From(err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt does not move the offset used by Read.
func (f *fsFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.checkFile("read"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, &os.PathError{Op: "readat", Path: f.name, Err: syscall.EINVAL}
	}
	if off >= int64(f.cursor.Size) {
		return 0, io.EOF
	}

	f.fs.lock.Lock()
	defer f.fs.lock.Unlock()

	cursor := *f.cursor
	if err := cursor.SeekTo(uint32(off)); err != nil {
		return 0, err
	}

	n := 0
	for n < len(p) {
		read, err := cursor.Read(p[n:])
		n += read
		if err != nil {
			return n, checkpoint.From(err)
		}
		if read == 0 {
			return n, io.EOF
		}
	}
	return n, nil
}

// Seek moves the offset used by Read.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *fsFile) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkFile("seek"); err != nil {
		return 0, err
	}

	size := int64(f.cursor.Size)
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = int64(f.cursor.Position) + offset
	case io.SeekEnd:
		offset = size + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 || offset > size {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.fs.lock.Lock()
	defer f.fs.lock.Unlock()

	if err := f.cursor.SeekTo(uint32(offset)); err != nil {
		return int64(f.cursor.Position), err
	}
	return offset, nil
}

func (f *fsFile) Name() string {
	return f.name
}

// Readdir behaves like os.File.Readdir for the root directory. The volume
// label is not reported.
// May return syscall.ENOTDIR if the current file is no directory.
func (f *fsFile) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: os.ErrClosed}
	}
	if !f.isDirectory {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	var content []os.FileInfo
	f.fs.lock.Lock()
	err := f.fs.vol.ListRoot(func(entry DirEntry) error {
		if !entry.IsVolumeLabel() {
			content = append(content, entry.FileInfo())
		}
		return nil
	})
	f.fs.lock.Unlock()
	if err != nil {
		return nil, err
	}

	if f.dirOffset > len(content) {
		f.dirOffset = len(content)
	}
	content = content[f.dirOffset:]

	if count <= 0 {
		f.dirOffset += len(content)
		return content, nil
	}

	if len(content) == 0 {
		return nil, io.EOF
	}
	if count < len(content) {
		content = content[:count]
	}
	f.dirOffset += len(content)
	return content, nil
}

func (f *fsFile) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *fsFile) Stat() (os.FileInfo, error) {
	if f.isDirectory {
		return rootFileInfo{label: f.fs.vol.info.Label}, nil
	}
	return f.entry.FileInfo(), nil
}

func (f *fsFile) Write(p []byte) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *fsFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *fsFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *fsFile) Sync() error {
	return nil
}

func (f *fsFile) Truncate(size int64) error {
	return readOnly("truncate", f.name)
}
