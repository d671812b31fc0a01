package sdfat

import (
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/aligator/sdfat/checkpoint"
)

// Fs is a read-only afero.Fs over the root directory of a Volume.
// Names are matched case-insensitively against the 8.3 names. Paths into
// subdirectories do not exist.
//
// Fs serializes all access to the Volume, so it is safe for concurrent use,
// e.g. by the FTP or WebDAV servers.
type Fs struct {
	lock sync.Mutex
	vol  *Volume
}

var _ afero.Fs = (*Fs)(nil)

// NewFs wraps an already mounted volume.
func NewFs(vol *Volume) *Fs {
	return &Fs{vol: vol}
}

// cleanName returns the upper case root entry name of p, "" for the root
// itself and ok == false for anything below a subdirectory.
func cleanName(p string) (string, bool) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if strings.Contains(p, "/") {
		return "", false
	}
	return strings.ToUpper(p), true
}

// lookup finds name in the root directory, including directories.
// The caller must hold the lock.
func (fs *Fs) lookup(name string) (DirEntry, error) {
	var found *DirEntry
	err := fs.vol.ListRoot(func(entry DirEntry) error {
		if entry.IsVolumeLabel() || entry.Name != name {
			return nil
		}
		found = &entry
		return errStopWalk
	})
	if err != nil {
		return DirEntry{}, err
	}
	if found == nil {
		return DirEntry{}, checkpoint.Wrap(os.ErrNotExist, ErrNotFound)
	}
	return *found, nil
}

func (fs *Fs) Open(name string) (afero.File, error) {
	clean, ok := cleanName(name)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: checkpoint.Wrap(os.ErrNotExist, ErrNotFound)}
	}

	if clean == "" {
		return &fsFile{fs: fs, name: name, isDirectory: true}, nil
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	entry, err := fs.lookup(clean)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	if entry.IsDir() {
		// Subdirectories are listed in the root but cannot be entered.
		return nil, &os.PathError{Op: "open", Path: name, Err: checkpoint.Wrap(os.ErrNotExist, ErrNotFound)}
	}

	cursor, err := fs.vol.Open(clean)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}

	return &fsFile{fs: fs, name: name, entry: entry, cursor: cursor}, nil
}

func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	clean, ok := cleanName(name)
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: checkpoint.Wrap(os.ErrNotExist, ErrNotFound)}
	}
	if clean == "" {
		return rootFileInfo{label: fs.vol.info.Label}, nil
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	entry, err := fs.lookup(clean)
	if err != nil {
		return nil, &os.PathError{Op: "stat", Path: name, Err: err}
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "sdfat"
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdir", path)
}

func (fs *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (fs *Fs) RemoveAll(path string) error {
	return readOnly("remove", path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	return readOnly("rename", oldname)
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: checkpoint.Wrap(os.ErrPermission, ErrReadOnly)}
}
