// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package surface

import (
	"github.com/devblok/doodle/model"
)

// Binding supplies the value of one declared uniform every frame.
type Binding interface {
	Name() string
	Value(model.Frame) interface{}
}

type static struct {
	name  string
	value interface{}
}

func (s static) Name() string                  { return s.name }
func (s static) Value(model.Frame) interface{} { return s.value }

// Static binds name to a constant value.
func Static(name string, value interface{}) Binding {
	return static{name: name, value: value}
}

type dynamic struct {
	name string
	fn   func(model.Frame) interface{}
}

func (d dynamic) Name() string                    { return d.name }
func (d dynamic) Value(f model.Frame) interface{} { return d.fn(f) }

// Func binds name to a value computed from the current frame.
func Func(name string, fn func(model.Frame) interface{}) Binding {
	return dynamic{name: name, fn: fn}
}

func builtin(name string) bool {
	_, ok := model.Frame{}.Uniforms()[name]
	return ok
}
