// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/surface"
	"github.com/devblok/doodle/utility/kar"
	log "github.com/sirupsen/logrus"
)

// ShaderEntryName is the name a shader stage is stored under in a bundle.
func ShaderEntryName(name string, stage gfx.Stage) string {
	switch stage {
	case gfx.VertexStage:
		return name + ".vert" + shaderSuffix
	case gfx.FragmentStage:
		return name + ".frag" + shaderSuffix
	case gfx.ComputeStage:
		return name + ".comp" + shaderSuffix
	}
	return name
}

// PackShaders adds every file to builder under its entry name.
func PackShaders(builder *kar.Builder, files []ShaderFile) error {
	for _, sf := range files {
		f, err := os.Open(sf.Path)
		if err != nil {
			return err
		}
		err = builder.Add(ShaderEntryName(sf.Name, sf.Stage), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("PackShaders(): %s: %w", sf.Path, err)
		}
		log.WithFields(log.Fields{
			"name":  sf.Name,
			"stage": sf.Stage,
		}).Debug("shader packed")
	}
	return nil
}

// BundleSource reads the named shader from an archive. The fragment stage
// is required, a missing vertex stage leaves the default one in place.
func BundleSource(ar *kar.Archive, name string) (surface.Source, error) {
	fragment, err := ar.ReadAll(ShaderEntryName(name, gfx.FragmentStage))
	if err != nil {
		return surface.Source{}, fmt.Errorf("BundleSource(): %s: %w", name, err)
	}
	src := surface.Source{Fragment: string(fragment)}

	vertex, err := ar.ReadAll(ShaderEntryName(name, gfx.VertexStage))
	switch err {
	case nil:
		src.Vertex = string(vertex)
	case kar.ErrNotFound:
	default:
		return surface.Source{}, fmt.Errorf("BundleSource(): %s: %w", name, err)
	}
	return src, nil
}

// DirectorySource finds the named shader among the files in dir,
// with the same rules as BundleSource.
func DirectorySource(dir, name string) (surface.Source, error) {
	files, err := LoadShaderFiles(dir)
	if err != nil {
		return surface.Source{}, err
	}

	var src surface.Source
	for _, sf := range files {
		if sf.Name != name || sf.Stage == gfx.ComputeStage {
			continue
		}
		data, err := ioutil.ReadFile(sf.Path)
		if err != nil {
			return surface.Source{}, err
		}
		if sf.Stage == gfx.VertexStage {
			src.Vertex = string(data)
		} else {
			src.Fragment = string(data)
		}
	}
	if src.Fragment == "" {
		return surface.Source{}, fmt.Errorf("DirectorySource(): no fragment shader named %q in %s", name, dir)
	}
	return src, nil
}
