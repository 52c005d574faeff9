package dstree

// VisitFunc is invoked once per node during Apply, with the node's depth
// relative to the walk's root. The function performs its own type and
// capability checks; the walk filters nothing.
type VisitFunc func(n Node, depth int)

// Apply walks the tree pre-order: the node itself first, then every
// traversable child at depth+1, siblings in declaration order. The walk is
// a generic visitor because different operations (bulk download, dynamic
// snapshot, process) want different type/capability combinations.
func Apply(n Node, fn VisitFunc) {
	applyAt(n, fn, 0)
}

func applyAt(n Node, fn VisitFunc, depth int) {
	fn(n, depth)

	for _, child := range n.Children() {
		applyAt(child, fn, depth+1)
	}
}
