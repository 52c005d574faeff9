// Package dstree implements the typed node hierarchy that describes a
// collection of datasources: sources, datasets, collections, and resources,
// linked into a tree with parent back-references. It provides qualifier-based
// lookup, pre-order traversal, filesystem path resolution, and the pure
// validation policy that decides whether an already-present file should be
// fetched again. The package performs no I/O and takes no logger; retrieval
// side effects live in internal/fetch.
package dstree

import (
	"path/filepath"
	"strings"
)

// RetrieveType identifies how a node's contents are obtained.
type RetrieveType string

// Recognized retrieval methods.
const (
	// RetrieveGET fetches a single file over HTTP; source is a URL.
	RetrieveGET RetrieveType = "GET"
	// RetrieveFTP fetches from an FTP server; source is an ftp:// URL.
	RetrieveFTP RetrieveType = "FTP"
	// RetrieveManual marks data populated by hand; never fetched.
	RetrieveManual RetrieveType = "MANUAL"
	// RetrieveNone marks hierarchy-only nodes that are created, not fetched.
	RetrieveNone RetrieveType = "NONE"
)

// CreateType is a collection's creation scope.
type CreateType string

// Recognized creation scopes.
const (
	// CreateStatic collections always exist and are filled by a static pull.
	CreateStatic CreateType = "STATIC"
	// CreateDynamic collections hold generated content (e.g. timestamped
	// snapshots) and are skipped by a static pull.
	CreateDynamic CreateType = "DYNAMIC"
)

// Context carries the one piece of run-wide configuration the tree needs:
// the root filesystem path under which every node's path is materialized.
// One immutable Context is shared by all root Sources of a run.
type Context struct {
	RootPath string
}

// Node is the capability surface shared by every tree node. Nodes are
// immutable in shape after construction; parent links exist only for path
// resolution and never close a cycle because children are created after
// their parents.
type Node interface {
	// Name is the node's declared name, the key it is addressed by.
	Name() string

	// Segment is the node's relative path component.
	Segment() string

	// Parent returns the owning parent, or nil for a root Source.
	Parent() Node

	// Path resolves the node's absolute filesystem path by walking parent
	// links up to the root Context.
	Path() string

	// Children returns the traversable children in declaration order.
	Children() []Node

	// Traverse resolves the remaining qualifier segments below this node.
	// An empty remainder returns the node itself (or, for a Dataset, its
	// org collection). Returns ErrNotFound when a segment is unmatched or
	// when segments remain below a leaf.
	Traverse(segments []string, matchCase bool) (Node, error)
}

// Downloadable is implemented by nodes that can be retrieved from a remote
// source. CanDownload is a predicate of structural completeness (source
// present, retrieval method set, destination resolvable), not of network
// reachability.
type Downloadable interface {
	Node
	CanDownload() bool
	Retrieve() RetrieveType
	Source() string
}

// Processable is implemented by nodes that support local post-processing
// after retrieval (e.g. unpacking an archive).
type Processable interface {
	Node
	CanProcess() bool
}

// matchName reports whether a declared name matches a qualifier segment.
// Matching is case-insensitive unless matchCase is set.
func matchName(declared, segment string, matchCase bool) bool {
	if matchCase {
		return declared == segment
	}

	return strings.EqualFold(declared, segment)
}

// childPath joins a parent's resolved path with a child's segment.
func childPath(parent Node, segment string) string {
	return filepath.Join(parent.Path(), segment)
}
