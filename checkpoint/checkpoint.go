// Package checkpoint decorates errors with the caller location and an optional
// diagnostic stage, which results in something similar to a stacktrace of the
// bring-up or read path that failed.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint which only adds the caller location.
// It returns nil, if err == nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil, "")
}

// Wrap adds a checkpoint to prev which is further described by err.
// Both stay visible to errors.Is and errors.As:
//
//	var ErrTruncated = errors.New("cluster chain ended early")
//
//	func read() error {
//		err := dev.ReadBlock(lba, buf)
//		return checkpoint.Wrap(err, ErrTruncated)
//	}
//
// Returns nil if prev == nil, so the result can be returned unconditionally.
func Wrap(prev, err error) error {
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(err, prev, "")
}

// Tag records the named step at which prev happened, e.g. "CMD7" or
// "ACMD41 timeout". The stage is meant for operators and is retrieved by StageOf.
// Returns nil if prev == nil.
func Tag(prev error, stage string) error {
	if prev == nil {
		return nil
	}

	return newCheckpoint(nil, prev, stage)
}

// StageOf returns the innermost stage recorded by Tag, or "" if there is none.
func StageOf(err error) string {
	stage := ""
	for err != nil {
		if c, ok := err.(*checkpoint); ok && c.stage != "" {
			stage = c.stage
		}
		err = errors.Unwrap(err)
	}
	return stage
}

func newCheckpoint(err, prev error, stage string) *checkpoint {
	// Skip newCheckpoint and the exported helper.
	_, file, line, ok := runtime.Caller(2)

	if prev == nil {
		prev, err = err, nil
	}

	return &checkpoint{
		err:   err,
		prev:  prev,
		stage: stage,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err   error
	prev  error
	stage string

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) Error() string {
	// Use different formatting for the prev error if it was not also a checkpoint.
	prevErrString := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prevErrString = "File: unknown\n\t" + strings.ReplaceAll(prevErrString, "\n", "\n\t")
	}

	location := "unknown"
	if e.callerOk {
		location = fmt.Sprintf("%s:%d", e.file, e.line)
	}

	var describe []string
	if e.stage != "" {
		describe = append(describe, "stage: "+e.stage)
	}
	if e.err != nil {
		describe = append(describe, e.err.Error())
	}
	if len(describe) == 0 {
		return fmt.Sprintf("File: %s\n%v", location, prevErrString)
	}

	return fmt.Sprintf("File: %s\n\t%s\n%v", location, strings.Join(describe, ", "), prevErrString)
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}
