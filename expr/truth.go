package expr

// Explicit rewrites boolean leaves that SQL cannot use as conditions into
// comparisons: a bare member m becomes m == true, !m becomes m == false and
// a boolean constant becomes 1 = 1 or 1 = 2. The operands of && and || are
// rewritten recursively. With skipConst, constants are kept as is; they
// render as 1 or 0 inside CASE branches.
func Explicit(n Node, skipConst bool) Node {
	if n == nil || n.Kind() != KindBool {
		return n
	}
	switch x := n.(type) {
	case *Binary:
		if x.Op == OpAndAlso || x.Op == OpOrElse {
			return &Binary{Op: x.Op, X: Explicit(x.X, skipConst), Y: Explicit(x.Y, skipConst)}
		}
	case *Literal:
		if skipConst {
			return n
		}
		if b, ok := x.Value.(bool); ok && b {
			return Eq(V(1), V(1))
		}
		return Eq(V(1), V(2))
	case *Member:
		return Eq(x, V(true))
	case *Unary:
		if m, ok := x.X.(*Member); ok {
			return Eq(m, V(false))
		}
	}
	return n
}
