// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the geometry and per-frame uniform data shared by all surfaces.
package model

import (
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Names of the built-in uniforms.
const (
	TimeUniform       = "u_time"
	DeltaUniform      = "u_delta"
	FrameUniform      = "u_frame"
	ResolutionUniform = "u_resolution"
	DateUniform       = "u_date"
)

// Vertex is a quad vertex in clip space.
type Vertex struct {
	Pos glm.Vec2
}

var quad = []Vertex{
	{Pos: glm.Vec2{-1, -1}},
	{Pos: glm.Vec2{1, -1}},
	{Pos: glm.Vec2{-1, 1}},
	{Pos: glm.Vec2{-1, 1}},
	{Pos: glm.Vec2{1, -1}},
	{Pos: glm.Vec2{1, 1}},
}

// QuadVertices returns two triangles covering the viewport,
// flattened to x,y pairs ready for a vertex buffer.
func QuadVertices() []float32 {
	data := make([]float32, 0, len(quad)*2)
	for _, v := range quad {
		data = append(data, v.Pos[0], v.Pos[1])
	}
	return data
}

// Frame is the built-in uniform block refreshed before every draw.
type Frame struct {
	Time       float32
	Delta      float32
	Index      int32
	Resolution glm.Vec2
	Date       glm.Vec4
}

// Date packs t as year, zero based month, day of month and seconds since midnight.
func Date(t time.Time) glm.Vec4 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return glm.Vec4{
		float32(t.Year()),
		float32(t.Month() - 1),
		float32(t.Day()),
		float32(t.Sub(midnight).Seconds()),
	}
}

// Uniforms returns the frame values keyed by uniform name.
func (f Frame) Uniforms() map[string]interface{} {
	return map[string]interface{}{
		TimeUniform:       f.Time,
		DeltaUniform:      f.Delta,
		FrameUniform:      f.Index,
		ResolutionUniform: f.Resolution,
		DateUniform:       f.Date,
	}
}
