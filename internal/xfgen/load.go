// Package xfgen generates reflection-free materialize accessors for the
// entity structs of a package.
package xfgen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/xframe/schema"
)

// OutputFile is the name of the generated file in every package directory.
const OutputFile = "xf_accessors.go"

// Package is a parsed package directory.
type Package struct {
	Dir     string
	Name    string
	Structs []*Struct
}

// Struct is an exported struct type and the members its accessor sets.
type Struct struct {
	Name   string
	Fields []string
}

// Load parses the non-test Go files of dir and collects its exported
// struct types. Members that cannot map onto a column are left out:
// unexported and embedded members, members tagged "-" or nomap,
// navigations and slices other than []byte.
func Load(dir string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("xfgen: read %s: %w", dir, err)
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || name == OutputFile {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("xfgen: %w", err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("xfgen: no Go files in %s", dir)
	}
	p := &Package{Dir: dir, Name: files[0].Name.Name}

	specs := make(map[string]*ast.StructType)
	var order []string
	for _, f := range files {
		if f.Name.Name != p.Name {
			return nil, fmt.Errorf("xfgen: %s holds packages %s and %s", dir, p.Name, f.Name.Name)
		}
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				st, ok := ts.Type.(*ast.StructType)
				if !ok || ts.Assign.IsValid() || ts.TypeParams != nil {
					continue
				}
				specs[ts.Name.Name] = st
				order = append(order, ts.Name.Name)
			}
		}
	}
	slices.Sort(order)
	for _, name := range order {
		if !ast.IsExported(name) {
			continue
		}
		s := &Struct{Name: name}
		for _, field := range specs[name].Fields.List {
			if len(field.Names) == 0 || skipped(field, specs) {
				continue
			}
			for _, id := range field.Names {
				if id.IsExported() {
					s.Fields = append(s.Fields, id.Name)
				}
			}
		}
		if len(s.Fields) > 0 {
			p.Structs = append(p.Structs, s)
		}
	}
	return p, nil
}

func skipped(field *ast.Field, local map[string]*ast.StructType) bool {
	if field.Tag != nil {
		raw, _ := strconv.Unquote(field.Tag.Value)
		tag := reflect.StructTag(raw).Get(schema.TagName)
		if tag == "-" {
			return true
		}
		parts := strings.Split(tag, ",")
		for _, opt := range parts[1:] {
			opt = strings.TrimSpace(opt)
			if opt == "nomap" || opt == "-" || strings.HasPrefix(opt, "fk=") {
				return true
			}
		}
	}
	t := field.Type
	for {
		star, ok := t.(*ast.StarExpr)
		if !ok {
			break
		}
		t = star.X
	}
	switch t := t.(type) {
	case *ast.Ident:
		_, nav := local[t.Name]
		return nav
	case *ast.ArrayType:
		elem, ok := t.Elt.(*ast.Ident)
		return t.Len != nil || !ok || (elem.Name != "byte" && elem.Name != "uint8")
	case *ast.SelectorExpr:
		return false
	default:
		return true
	}
}
