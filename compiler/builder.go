package compiler

import (
	"strings"
)

// tab is one level of statement indentation.
const tab = "    "

// builder accumulates statement text. Newlines are followed by the current
// indentation, so nested statements line up under their parent.
type builder struct {
	f      *Flavor
	sb     strings.Builder
	indent int
}

func newBuilder(f *Flavor, indent int) *builder {
	return &builder{f: f, indent: indent}
}

func (b *builder) WriteString(s string) *builder {
	b.sb.WriteString(s)
	return b
}

func (b *builder) nl() *builder {
	b.sb.WriteByte('\n')
	for i := 0; i < b.indent; i++ {
		b.sb.WriteString(tab)
	}
	return b
}

// Ident writes a quoted identifier.
func (b *builder) Ident(name string) *builder {
	b.sb.WriteString(b.f.Quote(name))
	return b
}

// Column writes alias.[name], or [name] for an empty alias.
func (b *builder) Column(alias, name string) *builder {
	if alias != "" {
		b.sb.WriteString(alias)
		b.sb.WriteByte('.')
	}
	return b.Ident(name)
}

// As writes " AS [name]".
func (b *builder) As(name string) *builder {
	b.sb.WriteString(" AS ")
	return b.Ident(name)
}

func (b *builder) Len() int { return b.sb.Len() }

func (b *builder) String() string { return b.sb.String() }
