// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shader

import (
	"github.com/gobuffalo/packr"
)

// Names of the embedded default shaders.
const (
	DefaultVertexName   = "quad.vert.wgsl"
	DefaultFragmentName = "passthrough.frag.wgsl"
)

var defaults = packr.NewBox("./shaders")

// DefaultVertex returns the pass-through full-screen quad vertex shader.
func DefaultVertex() (string, error) {
	return defaults.FindString(DefaultVertexName)
}

// DefaultFragment returns a fragment shader that writes the quad's
// texture coordinates as a colour.
func DefaultFragment() (string, error) {
	return defaults.FindString(DefaultFragmentName)
}
