// Package irfile reads graph description files: TOML documents that
// declare types and replay the node-building and scope operations a front
// end would perform for one function body.
//
//	unit = "demo"
//
//	[[type]]
//	name = "int"
//	kind = "int"
//	sign = "signed"
//
//	[[stmt]]
//	op = "declare"
//	var = "x"
//	type = "int"
//
//	[[stmt]]
//	op = "node"
//	name = "one"
//	kind = "lit"
//	type = "int"
//	value = 1
package irfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Document is a decoded description file.
type Document struct {
	Path  string     `toml:"-"`
	Unit  string     `toml:"unit"`
	Root  string     `toml:"root"`
	Types []TypeDecl `toml:"type"`
	Stmts []Stmt     `toml:"stmt"`
}

// TypeDecl declares a named type. Kind is a basic specifier ("int",
// "long long", "struct", ...) or one of "array", "pointer", "function".
type TypeDecl struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	Sign    string   `toml:"sign"`
	Storage string   `toml:"storage"`
	Qual    []string `toml:"qual"`
	Tag     string   `toml:"tag"`
	Opaque  bool     `toml:"opaque"`
	Elem    string   `toml:"elem"`
	Count   uint32   `toml:"count"`
	Fields  []Member `toml:"fields"`
	Params  []Member `toml:"params"`
}

// Member is a struct field or a function parameter.
type Member struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// Stmt is one replayed operation. Op selects which fields apply:
//
//	node     name kind type [value callee left right]
//	load     name var
//	declare  var type
//	assign   var node
//	enter
//	exit     branch
//	join     primary [alternates]
//	drop     branch
type Stmt struct {
	Op         string   `toml:"op"`
	Name       string   `toml:"name"`
	Kind       string   `toml:"kind"`
	Type       string   `toml:"type"`
	Value      int64    `toml:"value"`
	Node       string   `toml:"node"`
	Callee     string   `toml:"callee"`
	Left       string   `toml:"left"`
	Right      string   `toml:"right"`
	Var        string   `toml:"var"`
	Branch     string   `toml:"branch"`
	Primary    string   `toml:"primary"`
	Alternates []string `toml:"alternates"`
}

// ErrUnknownKey reports a key the format does not define.
var ErrUnknownKey = errors.New("irfile: unknown key")

// Parse decodes a description. path is used for messages and as the
// default unit name.
func Parse(path string, data []byte) (*Document, error) {
	var doc Document
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	var errs []error
	for _, key := range meta.Undecoded() {
		errs = append(errs, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, key.String()))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	doc.Path = path
	if doc.Unit == "" {
		doc.Unit = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &doc, nil
}

// ParseFile reads and decodes the description at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}
