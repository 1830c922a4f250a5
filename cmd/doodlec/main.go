// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command doodlec compiles shader sources and prints the diagnostics as JSON.
// It exits with status 1 when any stage fails to compile.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/gfx/shader"
	"github.com/devblok/doodle/gfx/soft"
	"github.com/devblok/doodle/utility/kar"
	log "github.com/sirupsen/logrus"
)

var (
	dir    = flag.String("dir", "", "Compile every shader in the directory")
	bundle = flag.String("bundle", "", "Compile every shader in the kar bundle")
)

// Diagnostic is the outcome of compiling one stage.
type Diagnostic struct {
	File  string `json:"file"`
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Log   string `json:"log,omitempty"`
	Words int    `json:"words,omitempty"`
}

type source struct {
	file  string
	stage gfx.Stage
	data  []byte
}

func main() {
	flag.Parse()

	sources, err := collect()
	if err != nil {
		log.Fatal(err)
	}

	ctx := soft.NewContext(nil, soft.Configuration{})
	defer ctx.Release()

	failed := false
	diagnostics := make([]Diagnostic, 0, len(sources))
	for _, src := range sources {
		d := compile(ctx, src)
		failed = failed || !d.OK
		diagnostics = append(diagnostics, d)
	}

	if bytes, err := json.MarshalIndent(diagnostics, "", "  "); err == nil {
		fmt.Printf("%s\n", bytes)
	} else {
		log.Fatal(err)
	}
	if failed {
		os.Exit(1)
	}
}

func compile(ctx *soft.Context, src source) Diagnostic {
	d := Diagnostic{File: src.file, Stage: src.stage.String()}
	h, err := shader.Compile(ctx, src.stage, string(src.data))
	if err != nil {
		var compileErr *shader.CompileError
		if errors.As(err, &compileErr) {
			d.Log = compileErr.Log
		} else {
			d.Log = err.Error()
		}
		return d
	}
	d.OK = true
	d.Words = len(ctx.SPIRV(h))
	ctx.DeleteShaderStage(h)
	return d
}

func collect() ([]source, error) {
	var sources []source

	if *dir != "" {
		files, err := core.LoadShaderFiles(*dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			data, err := ioutil.ReadFile(f.Path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source{file: f.Path, stage: f.Stage, data: data})
		}
	}

	if *bundle != "" {
		f, err := os.Open(*bundle)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ar, err := kar.Open(f)
		if err != nil {
			return nil, err
		}
		for _, name := range ar.Names() {
			_, stage, ok := core.ParseShaderName(name)
			if !ok {
				continue
			}
			data, err := ar.ReadAll(name)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source{file: name, stage: stage, data: data})
		}
	}

	for _, path := range flag.Args() {
		_, stage, ok := core.ParseShaderName(path)
		if !ok {
			return nil, fmt.Errorf("%s: expected a name.vert.wgsl, name.frag.wgsl or name.comp.wgsl file", path)
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source{file: path, stage: stage, data: data})
	}

	if len(sources) == 0 {
		flag.PrintDefaults()
		os.Exit(2)
	}
	return sources, nil
}
