// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/devblok/doodle/gfx"
)

const shaderSuffix = ".wgsl"

// ShaderFile is a shader source file found on disk.
type ShaderFile struct {
	Name  string
	Stage gfx.Stage
	Path  string
}

// ParseShaderName splits a file name of the form name.stage.wgsl,
// stage being one of vert, frag or comp.
func ParseShaderName(filename string) (string, gfx.Stage, bool) {
	base := filepath.Base(filename)
	if !strings.HasSuffix(base, shaderSuffix) {
		return "", 0, false
	}

	nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
	if len(nodes) != 2 || nodes[0] == "" {
		return "", 0, false
	}

	switch nodes[1] {
	case "vert":
		return nodes[0], gfx.VertexStage, true
	case "frag":
		return nodes[0], gfx.FragmentStage, true
	case "comp":
		return nodes[0], gfx.ComputeStage, true
	}
	return "", 0, false
}

// LoadShaderFiles walks dir and returns every shader source file in it.
// Files not following the naming scheme are skipped.
func LoadShaderFiles(dir string) ([]ShaderFile, error) {
	var shaders []ShaderFile
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}
		if name, stage, ok := ParseShaderName(f.Name()); ok {
			shaders = append(shaders, ShaderFile{Name: name, Stage: stage, Path: path})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return shaders, nil
}
