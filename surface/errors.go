// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package surface

import (
	"errors"
)

// Errors returned by Surface methods.
var (
	ErrDisposed   = errors.New("surface: disposed")
	ErrUnusable   = errors.New("surface: unusable after draw failure")
	ErrDimensions = errors.New("surface: dimensions must be positive and at most MaxDimension")
	ErrLost       = errors.New("surface: gpu context lost")
)

// Error reports a failure to acquire a resource while creating a Surface.
// Op names the failed step, Err is the cause, for example a *shader.CompileError.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "surface " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DrawError reports a failed frame.
type DrawError struct {
	Err error
}

func (e *DrawError) Error() string {
	return "surface draw: " + e.Err.Error()
}

func (e *DrawError) Unwrap() error {
	return e.Err
}
