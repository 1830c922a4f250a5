// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/utility/kar"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given")
	list     = flag.String("l", "", "List the contents of the archive given")
	compress = flag.String("c", "", "Compress the shaders in the given folder")
	dstFile  = flag.String("f", "out.kar", "Destination file, or directory when extracting")
)

func main() {
	flag.Parse()

	ops := 0
	for _, op := range []string{*extract, *list, *compress} {
		if op != "" {
			ops++
		}
	}
	if ops > 1 {
		log.Fatal(errors.New("only one operation at a time"))
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles()
	case *extract != "":
		err = extractFiles()
	case *list != "":
		err = listFiles()
	default:
		flag.PrintDefaults()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func compressFiles() error {
	if _, err := os.Stat(*dstFile); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	files, err := core.LoadShaderFiles(*compress)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no shaders found in %s", *compress)
	}

	builder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	if err := core.PackShaders(builder, files); err != nil {
		return err
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(dst)
	if err != nil {
		dst.Close()
		return err
	}
	log.WithFields(log.Fields{
		"file":    *dstFile,
		"shaders": len(files),
		"bytes":   written,
	}).Info("archive written")
	return dst.Close()
}

func open(path string) (*kar.Archive, func() error, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return ar, r.Close, nil
}

func extractFiles() error {
	ar, done, err := open(*extract)
	if err != nil {
		return err
	}
	defer done()

	if err := os.MkdirAll(*dstFile, 0755); err != nil {
		return err
	}
	for _, name := range ar.Names() {
		data, err := ar.ReadAll(name)
		if err != nil {
			return err
		}
		path := filepath.Join(*dstFile, filepath.Base(name))
		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return err
		}
		log.WithField("file", path).Info("extracted")
	}
	return nil
}

func listFiles() error {
	ar, done, err := open(*list)
	if err != nil {
		return err
	}
	defer done()

	header := ar.Header()
	fmt.Printf("author: %s, version: %d, created: %s\n",
		header.Author, header.Version, time.Unix(header.DateCreated, 0).Format(time.RFC3339))
	for _, e := range header.Index {
		fmt.Printf("%8d %8d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}
