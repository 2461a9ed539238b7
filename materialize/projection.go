// Package materialize rebuilds typed objects from result rows.
//
// The compiler records, for every SELECT it emits, which member each output
// column feeds and which column ranges belong to objects reached through
// navigations. A Materializer turns that Projection into a plan once per
// distinct output shape and replays the plan for every row.
package materialize

import (
	"strconv"
	"strings"
)

// Column is one output column of a statement.
type Column struct {
	// Name is the de-duplicated alias the column is selected as.
	Name string
	// Member is the member the column feeds.
	Member string
}

// Nav is the column range of an object reached through a navigation.
type Nav struct {
	// Key is the owner type name followed by the dotted navigation path,
	// as in "SaleOrder.Client" or "SaleOrder.Client.CloudServer".
	Key string
	// Member is the navigation member of the owner.
	Member string
	// Start is the index of the first column of the range.
	Start int
	// Count is the number of columns in the range.
	Count int
}

// End returns the index past the last column of the range.
func (n Nav) End() int { return n.Start + n.Count }

// Projection describes the columns of a statement.
type Projection struct {
	Columns []Column
	Navs    []Nav

	names map[string]int
}

// Add appends a column feeding member. Repeated names get a numeric suffix
// from a per-name counter so the aliases stay unique (Id, Id1, Id2). The
// alias is returned.
func (p *Projection) Add(name, member string) string {
	if p.names == nil {
		p.names = make(map[string]int)
		for _, c := range p.Columns {
			p.names[c.Name] = 0
		}
	}
	alias := name
	if n, ok := p.names[name]; ok {
		for {
			n++
			alias = name + strconv.Itoa(n)
			if _, taken := p.names[alias]; !taken {
				break
			}
		}
		p.names[name] = n
	}
	p.names[alias] = 0
	p.Columns = append(p.Columns, Column{Name: alias, Member: member})
	return alias
}

// Has reports whether a column with the given alias exists.
func (p *Projection) Has(name string) bool {
	for _, c := range p.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Lookup returns the alias of the column feeding member directly, outside
// every navigation range.
func (p *Projection) Lookup(member string) (string, bool) {
	if p == nil {
		return "", false
	}
next:
	for i, c := range p.Columns {
		if c.Member != member {
			continue
		}
		for _, n := range p.Navs {
			if i >= n.Start && i < n.End() {
				continue next
			}
		}
		return c.Name, true
	}
	return "", false
}

// AddNav records a navigation range. A key recorded earlier is kept.
func (p *Projection) AddNav(n Nav) {
	if _, ok := p.Nav(n.Key); ok {
		return
	}
	p.Navs = append(p.Navs, n)
}

// Nav returns the range recorded under key.
func (p *Projection) Nav(key string) (Nav, bool) {
	for _, n := range p.Navs {
		if n.Key == key {
			return n, true
		}
	}
	return Nav{}, false
}

// Len returns the number of columns.
func (p *Projection) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Columns)
}

// signature identifies the shape of p for plan caching.
func (p *Projection) signature() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range p.Columns {
		b.WriteString(c.Member)
		b.WriteByte(',')
	}
	for _, n := range p.Navs {
		b.WriteByte('|')
		b.WriteString(n.Key)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n.Start))
		b.WriteByte('+')
		b.WriteString(strconv.Itoa(n.Count))
	}
	return b.String()
}
