package sdfat

import (
	"os"
	"time"
)

// FileInfo returns the entry as os.FileInfo.
func (e DirEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry DirEntry
}

func (e entryFileInfo) Name() string {
	return e.entry.Name
}

func (e entryFileInfo) Size() int64 {
	return int64(e.entry.Size)
}

// Mode reports everything as read-only, the volume is never written.
func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0o555
	}
	return 0o444
}

func (e entryFileInfo) ModTime() time.Time {
	return ParseDateTime(e.entry.header.WriteDate, e.entry.header.WriteTime)
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.IsDir()
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}

// rootFileInfo describes the root directory, which has no entry of its own.
type rootFileInfo struct {
	label string
}

func (r rootFileInfo) Name() string       { return "/" }
func (r rootFileInfo) Size() int64        { return 0 }
func (r rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0o555 }
func (r rootFileInfo) ModTime() time.Time { return time.Time{} }
func (r rootFileInfo) IsDir() bool        { return true }
func (r rootFileInfo) Sys() interface{}   { return r.label }
