package dstree

import "fmt"

// Source is a named provider of datasets and/or nested sources. A root
// Source has no parent and resolves its path against the shared Context;
// nested sources resolve against their parent.
type Source struct {
	name        string
	segment     string
	description string
	ctx         *Context
	parent      *Source

	sources  []*Source
	datasets []*Dataset
}

// NewSource creates a detached Source bound to the run's Context. A Source
// left unattached is a root; AttachSource nests it under another Source.
func NewSource(name, description string, ctx *Context) *Source {
	return &Source{
		name:        name,
		segment:     name,
		description: description,
		ctx:         ctx,
	}
}

func (s *Source) Name() string        { return s.name }
func (s *Source) Segment() string     { return s.segment }
func (s *Source) Description() string { return s.description }

// Parent returns the enclosing Source, or nil for a root.
func (s *Source) Parent() Node {
	if s.parent == nil {
		return nil
	}

	return s.parent
}

// Path resolves against the parent Source, bottoming out at the Context
// root path.
func (s *Source) Path() string {
	if s.parent == nil {
		return childPath(contextNode{s.ctx}, s.segment)
	}

	return childPath(s.parent, s.segment)
}

// AttachSource wires a fully-built Source under s. Child names must be
// unique among sibling sources. Attach happens after the child subtree is
// complete so a malformed child is never left half-linked.
func (s *Source) AttachSource(child *Source) error {
	if s.findSource(child.name) != nil {
		return fmt.Errorf("source %q: duplicate child source %q", s.name, child.name)
	}

	child.parent = s
	child.ctx = s.ctx
	s.sources = append(s.sources, child)

	return nil
}

// AttachDataset wires a fully-built Dataset under s. Dataset names must be
// unique among sibling datasets.
func (s *Source) AttachDataset(d *Dataset) error {
	if s.findDataset(d.name) != nil {
		return fmt.Errorf("source %q: duplicate dataset %q", s.name, d.name)
	}

	d.parent = s
	s.datasets = append(s.datasets, d)

	return nil
}

// Children returns nested sources followed by datasets, in declaration
// order.
func (s *Source) Children() []Node {
	children := make([]Node, 0, len(s.sources)+len(s.datasets))
	for _, sub := range s.sources {
		children = append(children, sub)
	}

	for _, d := range s.datasets {
		children = append(children, d)
	}

	return children
}

// Traverse matches the next segment among nested sources first, then
// datasets. Sources win on a name collision.
func (s *Source) Traverse(segments []string, matchCase bool) (Node, error) {
	if len(segments) == 0 {
		return s, nil
	}

	target, rest := segments[0], segments[1:]

	for _, sub := range s.sources {
		if matchName(sub.name, target, matchCase) {
			return sub.Traverse(rest, matchCase)
		}
	}

	for _, d := range s.datasets {
		if matchName(d.name, target, matchCase) {
			return d.Traverse(rest, matchCase)
		}
	}

	return nil, fmt.Errorf("source %q has no child %q: %w", s.name, target, ErrNotFound)
}

func (s *Source) findSource(name string) *Source {
	for _, sub := range s.sources {
		if sub.name == name {
			return sub
		}
	}

	return nil
}

func (s *Source) findDataset(name string) *Dataset {
	for _, d := range s.datasets {
		if d.name == name {
			return d
		}
	}

	return nil
}

// contextNode adapts the run Context to the path-resolution recursion so
// root sources can join against the configured root path. It is never
// visible outside Path().
type contextNode struct {
	ctx *Context
}

func (c contextNode) Name() string     { return "" }
func (c contextNode) Segment() string  { return "" }
func (c contextNode) Parent() Node     { return nil }
func (c contextNode) Path() string     { return c.ctx.RootPath }
func (c contextNode) Children() []Node { return nil }
func (c contextNode) Traverse([]string, bool) (Node, error) {
	return nil, ErrNotFound
}

// NewDataset creates a detached Dataset; it is wired into the tree by
// Source.AttachDataset.
func NewDataset(name, description string) *Dataset {
	return &Dataset{
		name:        name,
		segment:     name,
		description: description,
	}
}

// Dataset is one logical dataset under a Source, organized by exactly one
// collection (its "org"). Traversal and path resolution flow through the
// org; a Dataset itself contributes a path segment but delegates everything
// below it.
type Dataset struct {
	name        string
	segment     string
	description string
	parent      *Source

	// org is the dataset's organizing collection: a *Collection or a
	// *RemoteCollection.
	org Node
}

func (d *Dataset) Name() string        { return d.name }
func (d *Dataset) Segment() string     { return d.segment }
func (d *Dataset) Description() string { return d.description }
func (d *Dataset) Parent() Node        { return d.parent }

func (d *Dataset) Path() string {
	return childPath(d.parent, d.segment)
}

// SetOrg attaches the dataset's organizing collection and wires its parent
// link. org must be a *Collection or *RemoteCollection.
func (d *Dataset) SetOrg(org Node) error {
	switch o := org.(type) {
	case *Collection:
		o.parent = d
	case *RemoteCollection:
		o.parent = d
	default:
		return fmt.Errorf("dataset %q: org must be a collection, got %T", d.name, org)
	}

	d.org = org

	return nil
}

// Org returns the organizing collection, or nil before SetOrg.
func (d *Dataset) Org() Node { return d.org }

// Children returns the single org collection.
func (d *Dataset) Children() []Node {
	if d.org == nil {
		return nil
	}

	return []Node{d.org}
}

// Traverse delegates entirely to the org collection: a qualifier ending at
// the dataset resolves to its org.
func (d *Dataset) Traverse(segments []string, matchCase bool) (Node, error) {
	if d.org == nil {
		return nil, fmt.Errorf("dataset %q has no org collection: %w", d.name, ErrNotFound)
	}

	return d.org.Traverse(segments, matchCase)
}
