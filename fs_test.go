package sdfat

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/aligator/sdfat/internal/fatimage"
)

func newTestFs(t *testing.T) *Fs {
	t.Helper()
	img := mustBuild(t, fatimage.Builder{
		Label: "SDCARD",
		Entries: []fatimage.Entry{
			{Name: "README.TXT", Data: []byte("Hello World")},
			{Name: "SUBDIR", Attr: fatimage.AttrDirectory},
			{Name: "DATA.BIN", Data: pattern(10000)},
			{Name: "NOEXT", Data: []byte("x")},
		},
	})
	return NewFs(mustMount(t, img))
}

func TestFs_Open(t *testing.T) {
	fs := newTestFs(t)

	tests := []struct {
		name    string
		open    string
		wantDir bool
		wantErr error
	}{
		{name: "root", open: "", wantDir: true},
		{name: "root slash", open: "/", wantDir: true},
		{name: "root dot", open: ".", wantDir: true},
		{name: "file", open: "README.TXT"},
		{name: "lower case file", open: "readme.txt"},
		{name: "absolute path", open: "/DATA.BIN"},
		{name: "no extension", open: "NOEXT"},
		{name: "missing", open: "MISSING.TXT", wantErr: os.ErrNotExist},
		{name: "directory", open: "SUBDIR", wantErr: os.ErrNotExist},
		{name: "inside a directory", open: "SUBDIR/A.TXT", wantErr: os.ErrNotExist},
		{name: "volume label", open: "SDCARD", wantErr: os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := fs.Open(tt.open)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Fs.Open() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fs.Open() error = %v", err)
			}
			defer f.Close()

			stat, err := f.Stat()
			if err != nil {
				t.Fatalf("File.Stat() error = %v", err)
			}
			if stat.IsDir() != tt.wantDir {
				t.Errorf("File.Stat().IsDir() = %v, want %v", stat.IsDir(), tt.wantDir)
			}
		})
	}
}

func TestFs_Stat(t *testing.T) {
	fs := newTestFs(t)

	tests := []struct {
		name     string
		stat     string
		wantName string
		wantSize int64
		wantMode os.FileMode
		wantErr  bool
	}{
		{name: "root", stat: "/", wantName: "/", wantMode: os.ModeDir | 0o555},
		{name: "file", stat: "readme.txt", wantName: "README.TXT", wantSize: 11, wantMode: 0o444},
		{name: "directory", stat: "SUBDIR", wantName: "SUBDIR", wantMode: os.ModeDir | 0o555},
		{name: "missing", stat: "NOPE", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Stat(tt.stat)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fs.Stat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Name() != tt.wantName || got.Size() != tt.wantSize || got.Mode() != tt.wantMode {
				t.Errorf("Fs.Stat() = %v %v %v, want %v %v %v",
					got.Name(), got.Size(), got.Mode(), tt.wantName, tt.wantSize, tt.wantMode)
			}
		})
	}
}

func TestFs_ReadOnly(t *testing.T) {
	fs := newTestFs(t)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "Create", call: func() error { _, err := fs.Create("NEW.TXT"); return err }},
		{name: "OpenFile for writing", call: func() error { _, err := fs.OpenFile("README.TXT", os.O_RDWR, 0); return err }},
		{name: "Mkdir", call: func() error { return fs.Mkdir("DIR", 0o755) }},
		{name: "MkdirAll", call: func() error { return fs.MkdirAll("DIR/SUB", 0o755) }},
		{name: "Remove", call: func() error { return fs.Remove("README.TXT") }},
		{name: "RemoveAll", call: func() error { return fs.RemoveAll("/") }},
		{name: "Rename", call: func() error { return fs.Rename("README.TXT", "OTHER.TXT") }},
		{name: "Chmod", call: func() error { return fs.Chmod("README.TXT", 0o777) }},
		{name: "Chown", call: func() error { return fs.Chown("README.TXT", 1, 1) }},
		{name: "Chtimes", call: func() error { return fs.Chtimes("README.TXT", time.Now(), time.Now()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrReadOnly) || !errors.Is(err, os.ErrPermission) {
				t.Errorf("Fs.%s() error = %v, want %v", tt.name, err, ErrReadOnly)
			}
		})
	}

	// Reading through OpenFile still works.
	f, err := fs.OpenFile("README.TXT", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("Fs.OpenFile() error = %v", err)
	}
	f.Close()
}

func TestFs_ReadFile(t *testing.T) {
	fs := newTestFs(t)

	got, err := afero.ReadFile(fs, "DATA.BIN")
	if err != nil {
		t.Fatalf("afero.ReadFile() error = %v", err)
	}
	if string(got) != string(pattern(10000)) {
		t.Errorf("afero.ReadFile() returned %d bytes which differ from the file", len(got))
	}
}

func TestFs_Walk(t *testing.T) {
	fs := newTestFs(t)

	var got []string
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != "/" {
			return filepath.SkipDir
		}
		got = append(got, path)
		return nil
	})
	if err != nil {
		t.Fatalf("afero.Walk() error = %v", err)
	}

	// Readdir sorts by name.
	want := []string{"/", "/DATA.BIN", "/NOEXT", "/README.TXT"}
	if len(got) != len(want) {
		t.Fatalf("afero.Walk() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("afero.Walk() = %v, want %v", got, want)
			break
		}
	}
}

func TestNewGoFS(t *testing.T) {
	img := mustBuild(t, fatimage.Builder{
		Entries: []fatimage.Entry{
			{Name: "README.TXT", Data: []byte("Hello World")},
			{Name: "B.TXT", Data: []byte("b")},
		},
	})
	fsys := NewGoFS(mustMount(t, img))

	got, err := fs.ReadFile(fsys, "README.TXT")
	if err != nil {
		t.Fatalf("fs.ReadFile() error = %v", err)
	}
	if string(got) != "Hello World" {
		t.Errorf("fs.ReadFile() = %q", got)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("fs.ReadDir() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "B.TXT" || entries[1].Name() != "README.TXT" {
		t.Errorf("fs.ReadDir() = %v", entries)
	}

	if _, err := fs.Stat(fsys, "MISSING"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("fs.Stat() error = %v, want %v", err, fs.ErrNotExist)
	}
}
