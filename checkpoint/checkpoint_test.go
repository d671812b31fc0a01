package checkpoint

import (
	"errors"
	"io"
	"strings"
	"testing"
)

var (
	errCause  = errors.New("cause")
	errReason = errors.New("reason")
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name    string
		prev    error
		err     error
		wantNil bool
		wantIs  []error
	}{
		{
			name:    "nil stays nil",
			prev:    nil,
			err:     errReason,
			wantNil: true,
		},
		{
			name:   "both errors are visible",
			prev:   errCause,
			err:    errReason,
			wantIs: []error{errCause, errReason},
		},
		{
			name:   "nil description still wraps",
			prev:   errCause,
			err:    nil,
			wantIs: []error{errCause},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.prev, tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Wrap() = %v, want nil", got)
				}
				return
			}

			for _, want := range tt.wantIs {
				if !errors.Is(got, want) {
					t.Errorf("errors.Is(Wrap(), %v) = false", want)
				}
			}
		})
	}
}

func TestWrap_EOF(t *testing.T) {
	if got := Wrap(io.EOF, errReason); got != io.EOF {
		t.Errorf("Wrap(io.EOF) = %v, want io.EOF", got)
	}
	if got := From(io.EOF); got != io.EOF {
		t.Errorf("From(io.EOF) = %v, want io.EOF", got)
	}
}

func TestTag(t *testing.T) {
	err := Tag(Wrap(errCause, errReason), "CMD7")

	if got := StageOf(err); got != "CMD7" {
		t.Errorf("StageOf() = %q, want %q", got, "CMD7")
	}
	if !errors.Is(err, errCause) || !errors.Is(err, errReason) {
		t.Errorf("Tag() hides the wrapped errors: %v", err)
	}
	if !strings.Contains(err.Error(), "stage: CMD7") {
		t.Errorf("Error() = %q, missing stage", err.Error())
	}

	// The innermost stage wins.
	outer := Tag(err, "init")
	if got := StageOf(outer); got != "CMD7" {
		t.Errorf("StageOf() = %q, want %q", got, "CMD7")
	}

	if got := StageOf(errCause); got != "" {
		t.Errorf("StageOf() = %q, want empty", got)
	}
	if Tag(nil, "CMD0") != nil {
		t.Errorf("Tag(nil) must be nil")
	}
}

func TestFrom(t *testing.T) {
	err := From(errCause)
	if !errors.Is(err, errCause) {
		t.Errorf("From() lost the cause")
	}
	if !strings.HasPrefix(err.Error(), "File: checkpoint_test.go:") {
		t.Errorf("Error() = %q, want caller location", err.Error())
	}
}
