package compiler

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/query"
)

// Aliases assigns table aliases within one SELECT level. Explicit sources
// take t0..tn in declaration order; navigation joins are numbered after
// them, in the order they are first resolved.
type Aliases struct {
	// params maps parameter names to explicit aliases.
	params map[string]string
	// types maps source types to the alias of their first occurrence.
	types map[reflect.Type]string
	// tables maps explicitly joined table names to their alias.
	tables map[string]string
	// navs maps navigation path keys to their alias.
	navs     map[string]string
	explicit int
	single   bool
}

// NewAliases returns the aliases of the sources of d. A statement without
// joins reads a single source, so every parameter maps to t0.
func NewAliases(d *query.Descriptor) *Aliases {
	a := &Aliases{
		params:   make(map[string]string),
		types:    make(map[reflect.Type]string),
		tables:   make(map[string]string),
		navs:     make(map[string]string),
		explicit: 1 + len(d.Joins),
		single:   len(d.Joins) == 0,
	}
	if d.Source != nil {
		a.types[d.Source] = "t0"
	}
	for _, j := range d.Joins {
		switch j.Op {
		case query.OpSelectMany:
			if len(j.Params) == 2 {
				a.register(j.Params[0])
				a.register(j.Params[1])
			}
		default:
			if len(j.On) > 0 {
				a.register(expr.RootParam(j.On[0].Outer))
				a.register(expr.RootParam(j.On[0].Inner))
			}
		}
	}
	return a
}

func (a *Aliases) register(p *expr.Param) string {
	if p == nil {
		return ""
	}
	if alias, ok := a.params[p.Name]; ok {
		return alias
	}
	alias := "t" + strconv.Itoa(len(a.params))
	a.params[p.Name] = alias
	if _, ok := a.types[p.T]; !ok && p.T != nil {
		a.types[p.T] = alias
	}
	return alias
}

// Param returns the alias of the source p ranges over. Parameters that no
// join declared are matched by their element type.
func (a *Aliases) Param(p *expr.Param) (string, error) {
	if a.single || p.Name == "" {
		return "t0", nil
	}
	if alias, ok := a.params[p.Name]; ok {
		return alias, nil
	}
	if alias, ok := a.types[p.T]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("%w: parameter %q is not bound to a source", ErrUnknownMember, p.Name)
}

// Len returns the number of explicit sources.
func (a *Aliases) Len() int { return a.explicit }

// setJoinTable records the alias of an explicitly joined table.
func (a *Aliases) setJoinTable(table, alias string) {
	a.tables[table] = alias
}

// JoinTable returns the alias of an explicitly joined table.
func (a *Aliases) JoinTable(table string) (string, bool) {
	alias, ok := a.tables[table]
	return alias, ok
}

// Navigation returns the alias of the navigation path key, minting one
// on first use. created reports whether the alias is new.
func (a *Aliases) Navigation(key string) (alias string, created bool) {
	if alias, ok := a.navs[key]; ok {
		return alias, false
	}
	alias = "t" + strconv.Itoa(len(a.navs)+a.explicit)
	a.navs[key] = alias
	return alias, true
}
