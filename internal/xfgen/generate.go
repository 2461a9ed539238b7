package xfgen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

const materializePkg = "github.com/syssam/xframe/materialize"

// Generate returns the accessor file of p.
func Generate(p *Package) *jen.File {
	f := jen.NewFile(p.Name)
	f.HeaderComment("Code generated by xfgen. DO NOT EDIT.")
	var calls []jen.Code
	for _, s := range p.Structs {
		setters := jen.Dict{}
		for _, name := range s.Fields {
			setters[jen.Lit(name)] = jen.Func().Params(
				jen.Id("o").Op("*").Id(s.Name),
				jen.Id("v").Id("any"),
			).Error().Block(
				jen.Return(jen.Qual(materializePkg, "Assign").Call(jen.Op("&").Id("o").Dot(name), jen.Id("v"))),
			)
		}
		calls = append(calls, jen.Qual(materializePkg, "RegisterType").Call(
			jen.Map(jen.String()).Func().Params(jen.Op("*").Id(s.Name), jen.Id("any")).Error().Values(setters),
		))
	}
	f.Func().Id("init").Params().Block(calls...)
	return f
}

// Writer generates the accessor files of many packages in parallel.
type Writer struct {
	workers int

	mu      sync.Mutex
	written []string
}

// NewWriter returns a Writer running one worker per CPU.
func NewWriter() *Writer {
	return &Writer{workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers sets the number of parallel workers.
func (w *Writer) WithWorkers(n int) *Writer {
	if n > 0 {
		w.workers = n
	}
	return w
}

// Written returns the paths of the files written so far.
func (w *Writer) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

// Run generates the accessor file of every directory in dirs. Packages
// without eligible structs get no file.
func (w *Writer) Run(ctx context.Context, dirs []string) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, dir := range dirs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.generateDir(dir)
			}
		})
	}
	return eg.Wait()
}

func (w *Writer) generateDir(dir string) error {
	p, err := Load(dir)
	if err != nil {
		return err
	}
	if len(p.Structs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := Generate(p).Render(&buf); err != nil {
		return fmt.Errorf("xfgen: render %s: %w", dir, err)
	}
	path := filepath.Join(dir, OutputFile)
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("xfgen: format %s: %w", path, err)
	}
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return fmt.Errorf("xfgen: write %s: %w", path, err)
	}
	w.mu.Lock()
	w.written = append(w.written, path)
	w.mu.Unlock()
	return nil
}
