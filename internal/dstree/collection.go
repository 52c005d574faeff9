package dstree

import "fmt"

// Collection is a local directory grouping nested collections and
// resources. Its parent is the Dataset it organizes or an enclosing
// Collection.
type Collection struct {
	name    string
	segment string
	create  CreateType
	parent  Node

	// collections holds nested *Collection and *RemoteCollection values
	// in declaration order.
	collections []Node
	resources   []Node
}

// NewCollection creates a detached Collection; it is wired into the tree by
// Dataset.SetOrg or Collection.AddCollection.
func NewCollection(name string, create CreateType) *Collection {
	return &Collection{
		name:    name,
		segment: name,
		create:  create,
	}
}

func (c *Collection) Name() string            { return c.name }
func (c *Collection) Segment() string         { return c.segment }
func (c *Collection) Parent() Node            { return c.parent }
func (c *Collection) CreateScope() CreateType { return c.create }

func (c *Collection) Path() string {
	return childPath(c.parent, c.segment)
}

// AddCollection attaches a nested collection. child must be a *Collection
// or *RemoteCollection, and its name must be unique among sibling
// collections.
func (c *Collection) AddCollection(child Node) error {
	if c.findCollection(child.Name()) != nil {
		return fmt.Errorf("collection %q: duplicate child collection %q", c.name, child.Name())
	}

	switch sub := child.(type) {
	case *Collection:
		sub.parent = c
	case *RemoteCollection:
		sub.parent = c
	default:
		return fmt.Errorf("collection %q: child must be a collection, got %T", c.name, child)
	}

	c.collections = append(c.collections, child)

	return nil
}

// AddResource attaches a leaf resource. r must be a *StaticResource or
// *DynamicResource, and its name must be unique among sibling resources.
func (c *Collection) AddResource(r Node) error {
	if c.findResource(r.Name()) != nil {
		return fmt.Errorf("collection %q: duplicate resource %q", c.name, r.Name())
	}

	switch res := r.(type) {
	case *StaticResource:
		res.parent = c
	case *DynamicResource:
		res.parent = c
	default:
		return fmt.Errorf("collection %q: child must be a resource, got %T", c.name, r)
	}

	c.resources = append(c.resources, r)

	return nil
}

// Children returns nested collections followed by resources, in declaration
// order.
func (c *Collection) Children() []Node {
	children := make([]Node, 0, len(c.collections)+len(c.resources))
	children = append(children, c.collections...)
	children = append(children, c.resources...)

	return children
}

// Traverse resolves resources before nested collections. A matched resource
// with segments remaining is a descent into a leaf and fails rather than
// guessing.
func (c *Collection) Traverse(segments []string, matchCase bool) (Node, error) {
	if len(segments) == 0 {
		return c, nil
	}

	target, rest := segments[0], segments[1:]

	for _, r := range c.resources {
		if !matchName(r.Name(), target, matchCase) {
			continue
		}

		if len(rest) > 0 {
			return nil, fmt.Errorf("resource %q is a leaf, cannot descend into %q: %w",
				r.Name(), rest[0], ErrNotFound)
		}

		return r, nil
	}

	for _, sub := range c.collections {
		if matchName(sub.Name(), target, matchCase) {
			return sub.Traverse(rest, matchCase)
		}
	}

	return nil, fmt.Errorf("collection %q has no child %q: %w", c.name, target, ErrNotFound)
}

func (c *Collection) findCollection(name string) Node {
	for _, sub := range c.collections {
		if sub.Name() == name {
			return sub
		}
	}

	return nil
}

func (c *Collection) findResource(name string) Node {
	for _, r := range c.resources {
		if r.Name() == name {
			return r
		}
	}

	return nil
}

// RemoteCollection is a directory whose entire contents are fetched in bulk
// from a remote listing (an FTP directory). It is opaque: qualifiers cannot
// reach inside it, and it is retrieved or skipped as a unit.
type RemoteCollection struct {
	name     string
	segment  string
	retrieve RetrieveType
	source   string
	parent   Node
}

// NewRemoteCollection creates a detached RemoteCollection.
func NewRemoteCollection(name string, retrieve RetrieveType, source string) *RemoteCollection {
	return &RemoteCollection{
		name:     name,
		segment:  name,
		retrieve: retrieve,
		source:   source,
	}
}

func (rc *RemoteCollection) Name() string           { return rc.name }
func (rc *RemoteCollection) Segment() string        { return rc.segment }
func (rc *RemoteCollection) Parent() Node           { return rc.parent }
func (rc *RemoteCollection) Retrieve() RetrieveType { return rc.retrieve }
func (rc *RemoteCollection) Source() string         { return rc.source }

func (rc *RemoteCollection) Path() string {
	return childPath(rc.parent, rc.segment)
}

// Children returns nil: a RemoteCollection is self-contained.
func (rc *RemoteCollection) Children() []Node { return nil }

// Traverse returns the collection itself only for an empty remainder; its
// contents are not addressable.
func (rc *RemoteCollection) Traverse(segments []string, _ bool) (Node, error) {
	if len(segments) == 0 {
		return rc, nil
	}

	return nil, fmt.Errorf("remote collection %q is opaque, cannot resolve %q: %w",
		rc.name, segments[0], ErrNotFound)
}

// CanDownload reports structural completeness: a source URL and a retrieval
// method. The destination path is always resolvable through the parent.
func (rc *RemoteCollection) CanDownload() bool {
	return rc.source != "" && rc.retrieve != ""
}
