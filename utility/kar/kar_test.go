// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/devblok/doodle/utility/kar"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(t *testing.T) []byte {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("test", strings.NewReader(testString1)); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("test2", strings.NewReader(testString2)); err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer([]byte{})
	if written, err := builder.WriteTo(buf); err != nil {
		t.Fatal(err)
	} else {
		t.Logf("written %d", written)
	}
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(build(t)))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.Open("test")
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(testString1)) {
		t.Errorf("incorrect size %d", f.Size())
	}

	result := make([]byte, len(testString1))
	if _, err := io.ReadFull(f, result); err != nil {
		t.Error(err)
	}
	if string(result) != testString1 {
		t.Error("test string does not match up")
	}
}

func TestCreateAndReadAll(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(build(t)))
	if err != nil {
		t.Fatal(err)
	}

	for name, expected := range map[string]string{"test": testString1, "test2": testString2} {
		f, err := ar.ReadAll(name)
		if err != nil {
			t.Error(err)
			continue
		}
		if string(f) != expected {
			t.Errorf("%s: test string does not match up", name)
		}
	}

	header := ar.Header()
	if header.Author != "devblok" || header.Version != 1 || len(header.Index) != 2 {
		t.Errorf("incorrect header %+v", header)
	}
	if names := ar.Names(); len(names) != 2 || names[0] != "test" || names[1] != "test2" {
		t.Errorf("incorrect names %v", names)
	}
}

func TestNotFound(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(build(t)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.Open("missing"); err != kar.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := ar.ReadAll("missing"); err != kar.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenCorrupted(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"magic":     []byte("TAR\x00\x08\x00\x00\x00\x00\x00\x00\x00"),
		"truncated": build(t)[:20],
	}
	for name, data := range cases {
		if _, err := kar.Open(bytes.NewReader(data)); err != kar.ErrFileFormat {
			t.Errorf("%s: expected ErrFileFormat, got %v", name, err)
		}
	}
}
