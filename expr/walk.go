package expr

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Walk traverses the tree rooted at n in depth-first order. If fn returns
// false the children of the node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Member:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Unary:
		Walk(n.X, fn)
	case *Conditional:
		Walk(n.Test, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Call:
		Walk(n.Recv, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Init:
		for _, b := range n.Bindings {
			Walk(b.X, fn)
		}
	case *Coalesce:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	}
}

// RootParam returns the parameter a member path starts from, or nil if
// the path is rooted elsewhere (a literal, a call).
func RootParam(n Node) *Param {
	for {
		switch x := n.(type) {
		case *Param:
			return x
		case *Member:
			n = x.X
		default:
			return nil
		}
	}
}

// Params returns the distinct parameters referenced by n in encounter order.
func Params(n Node) []*Param {
	var (
		ps   []*Param
		seen = make(map[string]bool)
	)
	Walk(n, func(n Node) bool {
		if p, ok := n.(*Param); ok && !seen[p.Name] {
			seen[p.Name] = true
			ps = append(ps, p)
		}
		return true
	})
	return ps
}

// Path returns the member names of a member chain from its root, and the
// root node itself.
func Path(m *Member) (Node, []string) {
	var names []string
	var n Node = m
	for {
		x, ok := n.(*Member)
		if !ok {
			break
		}
		names = append(names, x.Name)
		n = x.X
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return n, names
}

// Format renders n in a canonical form. Equal trees format equally, so the
// result serves as a cache key.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Param:
		b.WriteString(n.Name)
	case *Member:
		format(b, n.X)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *Literal:
		formatLiteral(b, n.Value)
	case *Binary:
		b.WriteByte('(')
		format(b, n.X)
		b.WriteByte(' ')
		b.WriteString(n.Op.String())
		b.WriteByte(' ')
		format(b, n.Y)
		b.WriteByte(')')
	case *Unary:
		b.WriteByte('!')
		format(b, n.X)
	case *Conditional:
		b.WriteByte('(')
		format(b, n.Test)
		b.WriteString(" ? ")
		format(b, n.Then)
		b.WriteString(" : ")
		format(b, n.Else)
		b.WriteByte(')')
	case *Call:
		if n.Recv != nil {
			format(b, n.Recv)
			b.WriteByte('.')
		}
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
		b.WriteByte(')')
	case *Init:
		b.WriteString("new ")
		if n.T != nil {
			b.WriteString(n.T.String())
		}
		b.WriteByte('{')
		for i, bd := range n.Bindings {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(bd.Member)
			b.WriteString(": ")
			format(b, bd.X)
		}
		b.WriteByte('}')
	case *Coalesce:
		b.WriteByte('(')
		format(b, n.X)
		b.WriteString(" ?? ")
		format(b, n.Y)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "%T", n)
	}
}

func formatLiteral(b *strings.Builder, v any) {
	if v == nil {
		b.WriteString("null")
		return
	}
	formatValue(b, reflect.ValueOf(v), 0)
}

// maxFormatDepth bounds the pointers followed inside one literal, so
// cyclic values terminate.
const maxFormatDepth = 16

// formatValue writes rv by content. Pointers are followed, never printed,
// so equal values format alike wherever they live.
func formatValue(b *strings.Builder, rv reflect.Value, depth int) {
	switch rv.Kind() {
	case reflect.Invalid:
		b.WriteString("null")
		return
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		if depth == maxFormatDepth {
			b.WriteString("...")
			return
		}
		formatValue(b, rv.Elem(), depth+1)
		return
	}
	if rv.Type() == stringType {
		b.WriteString(strconv.Quote(rv.String()))
		return
	}
	if rv.CanInterface() {
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			b.WriteString(strconv.Quote(s.String()))
			return
		}
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			formatValue(b, rv.Index(i), depth)
		}
		b.WriteByte(']')
	case reflect.Struct:
		b.WriteString(rv.Type().String())
		b.WriteByte('{')
		for i := 0; i < rv.NumField(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(rv.Type().Field(i).Name)
			b.WriteString(": ")
			formatValue(b, rv.Field(i), depth)
		}
		b.WriteByte('}')
	case reflect.Map:
		keys := rv.MapKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			var kb strings.Builder
			formatValue(&kb, k, depth)
			kb.WriteString(": ")
			formatValue(&kb, rv.MapIndex(k), depth)
			parts[i] = kb.String()
		}
		slices.Sort(parts)
		b.WriteString(rv.Type().String())
		b.WriteByte('{')
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%s(%v)", rv.Type(), rv)
	}
}
