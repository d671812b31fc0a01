package sdfat

import (
	"bytes"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/spf13/afero"
)

func TestFile_AferoRead(t *testing.T) {
	fs := newTestFs(t)
	f, err := fs.Open("DATA.BIN")
	if err != nil {
		t.Fatalf("Fs.Open() error = %v", err)
	}
	defer f.Close()

	data := pattern(10000)
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("io.ReadAll() returned %d bytes which differ from the file", len(got))
	}

	if n, err := f.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		t.Errorf("File.Read() at the end = %v, %v, want 0, io.EOF", n, err)
	}
}

func TestFile_ReadAt(t *testing.T) {
	data := pattern(10000)

	tests := []struct {
		name    string
		off     int64
		size    int
		wantN   int
		wantErr error
	}{
		{name: "start", off: 0, size: 100, wantN: 100},
		{name: "across clusters", off: 4000, size: 5000, wantN: 5000},
		{name: "up to the end", off: 9000, size: 1000, wantN: 1000},
		{name: "beyond the end", off: 9500, size: 1000, wantN: 500, wantErr: io.EOF},
		{name: "at the end", off: 10000, size: 10, wantN: 0, wantErr: io.EOF},
		{name: "negative offset", off: -1, size: 10, wantN: 0, wantErr: syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFs(t)
			f, err := fs.Open("DATA.BIN")
			if err != nil {
				t.Fatalf("Fs.Open() error = %v", err)
			}
			defer f.Close()

			p := make([]byte, tt.size)
			n, err := f.ReadAt(p, tt.off)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("File.ReadAt() error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Fatalf("File.ReadAt() n = %v, want %v", n, tt.wantN)
			}
			if n > 0 && !bytes.Equal(p[:n], data[tt.off:tt.off+int64(n)]) {
				t.Errorf("File.ReadAt() returned the wrong bytes")
			}

			// ReadAt does not move the read offset.
			pos, err := f.Seek(0, io.SeekCurrent)
			if err != nil || pos != 0 {
				t.Errorf("File.Seek(0, io.SeekCurrent) = %v, %v, want 0, nil", pos, err)
			}
		})
	}
}

func TestFile_AferoSeek(t *testing.T) {
	data := pattern(10000)

	type args struct {
		offset int64
		whence int
	}
	tests := []struct {
		name    string
		start   int64
		args    args
		want    int64
		wantErr error
	}{
		{name: "seek start", args: args{offset: 5000, whence: io.SeekStart}, want: 5000},
		{name: "seek current", start: 4000, args: args{offset: 100, whence: io.SeekCurrent}, want: 4100},
		{name: "seek current backwards", start: 9000, args: args{offset: -8000, whence: io.SeekCurrent}, want: 1000},
		{name: "seek end", args: args{offset: -10, whence: io.SeekEnd}, want: 9990},
		{name: "seek to the end", args: args{offset: 0, whence: io.SeekEnd}, want: 10000},
		{name: "before the start", args: args{offset: -1, whence: io.SeekStart}, wantErr: afero.ErrOutOfRange},
		{name: "beyond the end", args: args{offset: 1, whence: io.SeekEnd}, wantErr: afero.ErrOutOfRange},
		{name: "invalid whence", args: args{offset: 0, whence: 7}, wantErr: syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFs(t)
			f, err := fs.Open("DATA.BIN")
			if err != nil {
				t.Fatalf("Fs.Open() error = %v", err)
			}
			defer f.Close()

			if _, err := f.Seek(tt.start, io.SeekStart); err != nil {
				t.Fatalf("File.Seek() error = %v", err)
			}

			got, err := f.Seek(tt.args.offset, tt.args.whence)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("File.Seek() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("File.Seek() = %v, %v, want %v, nil", got, err, tt.want)
			}

			rest, err := io.ReadAll(f)
			if err != nil {
				t.Fatalf("io.ReadAll() error = %v", err)
			}
			if !bytes.Equal(rest, data[tt.want:]) {
				t.Errorf("read after File.Seek() returned the wrong bytes")
			}
		})
	}
}

func TestFile_Readdir(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int
		wantNames [][]string
		wantErrs  []error
	}{
		{
			name:      "everything",
			counts:    []int{-1, -1},
			wantNames: [][]string{{"README.TXT", "SUBDIR", "DATA.BIN", "NOEXT"}, {}},
			wantErrs:  []error{nil, nil},
		},
		{
			name:      "in pages",
			counts:    []int{3, 3, 3},
			wantNames: [][]string{{"README.TXT", "SUBDIR", "DATA.BIN"}, {"NOEXT"}, nil},
			wantErrs:  []error{nil, nil, io.EOF},
		},
		{
			name:      "rest after a page",
			counts:    []int{1, 0},
			wantNames: [][]string{{"README.TXT"}, {"SUBDIR", "DATA.BIN", "NOEXT"}},
			wantErrs:  []error{nil, nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFs(t)
			f, err := fs.Open("/")
			if err != nil {
				t.Fatalf("Fs.Open() error = %v", err)
			}
			defer f.Close()

			for i, count := range tt.counts {
				names, err := f.Readdirnames(count)
				if err != tt.wantErrs[i] {
					t.Errorf("call %d: File.Readdirnames() error = %v, want %v", i, err, tt.wantErrs[i])
				}
				if len(names) != len(tt.wantNames[i]) {
					t.Fatalf("call %d: File.Readdirnames() = %v, want %v", i, names, tt.wantNames[i])
				}
				for j := range names {
					if names[j] != tt.wantNames[i][j] {
						t.Errorf("call %d: File.Readdirnames() = %v, want %v", i, names, tt.wantNames[i])
						break
					}
				}
			}
		})
	}
}

func TestFile_NotADirectory(t *testing.T) {
	fs := newTestFs(t)
	f, err := fs.Open("README.TXT")
	if err != nil {
		t.Fatalf("Fs.Open() error = %v", err)
	}
	defer f.Close()

	if _, err := f.Readdir(-1); !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("File.Readdir() error = %v, want %v", err, syscall.ENOTDIR)
	}

	root, err := fs.Open("/")
	if err != nil {
		t.Fatalf("Fs.Open() error = %v", err)
	}
	if _, err := root.Read(make([]byte, 1)); !errors.Is(err, syscall.EISDIR) {
		t.Errorf("File.Read() on the root error = %v, want %v", err, syscall.EISDIR)
	}
}

func TestFile_Write(t *testing.T) {
	fs := newTestFs(t)
	f, err := fs.Open("README.TXT")
	if err != nil {
		t.Fatalf("Fs.Open() error = %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("File.Write() error = %v, want %v", err, ErrReadOnly)
	}
	if _, err := f.WriteAt([]byte("x"), 0); !errors.Is(err, ErrReadOnly) {
		t.Errorf("File.WriteAt() error = %v, want %v", err, ErrReadOnly)
	}
	if _, err := f.WriteString("x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("File.WriteString() error = %v, want %v", err, ErrReadOnly)
	}
	if err := f.Truncate(0); !errors.Is(err, ErrReadOnly) {
		t.Errorf("File.Truncate() error = %v, want %v", err, ErrReadOnly)
	}
	if err := f.Sync(); err != nil {
		t.Errorf("File.Sync() error = %v", err)
	}
}

func TestFile_Close(t *testing.T) {
	fs := newTestFs(t)
	f, err := fs.Open("README.TXT")
	if err != nil {
		t.Fatalf("Fs.Open() error = %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("File.Close() error = %v", err)
	}
	if err := f.Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("second File.Close() error = %v, want %v", err, os.ErrClosed)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("File.Read() after Close error = %v, want %v", err, os.ErrClosed)
	}
}
