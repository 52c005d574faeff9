package dstree

import (
	"fmt"
	"time"
)

// snapshotTimeLayout is the timestamp component of generated snapshot names.
const snapshotTimeLayout = "2006_01_02_1504"

// StaticResourceConfig carries the declared attributes of a StaticResource.
type StaticResourceConfig struct {
	Format      FileFormat
	Retrieve    RetrieveType
	Source      string
	Description string

	// UnzipDir, when set on a ZIP resource, names the directory the archive
	// is extracted into during processing.
	UnzipDir string
}

// StaticResource is a leaf file with a fixed name known in advance.
type StaticResource struct {
	name        string
	segment     string
	format      FileFormat
	retrieve    RetrieveType
	source      string
	description string
	unzipDir    string
	parent      *Collection
}

// NewStaticResource creates a detached StaticResource whose filename is its
// declared name.
func NewStaticResource(name string, cfg StaticResourceConfig) *StaticResource {
	return &StaticResource{
		name:        name,
		segment:     name,
		format:      cfg.Format,
		retrieve:    cfg.Retrieve,
		source:      cfg.Source,
		description: cfg.Description,
		unzipDir:    cfg.UnzipDir,
	}
}

func (r *StaticResource) Name() string           { return r.name }
func (r *StaticResource) Segment() string        { return r.segment }
func (r *StaticResource) Parent() Node           { return r.parent }
func (r *StaticResource) Format() FileFormat     { return r.format }
func (r *StaticResource) Retrieve() RetrieveType { return r.retrieve }
func (r *StaticResource) Source() string         { return r.source }
func (r *StaticResource) Description() string    { return r.description }

// UnzipDir returns the declared extraction directory, or "" when none.
func (r *StaticResource) UnzipDir() string { return r.unzipDir }

func (r *StaticResource) Path() string {
	return childPath(r.parent, r.segment)
}

// Children returns nil: resources are leaves.
func (r *StaticResource) Children() []Node { return nil }

// Traverse returns the resource itself only for an empty remainder.
func (r *StaticResource) Traverse(segments []string, _ bool) (Node, error) {
	if len(segments) == 0 {
		return r, nil
	}

	return nil, fmt.Errorf("resource %q is a leaf, cannot resolve %q: %w",
		r.name, segments[0], ErrNotFound)
}

// CanDownload requires a source, a retrieval method, and a resolvable
// destination filename.
func (r *StaticResource) CanDownload() bool {
	return r.source != "" && r.retrieve != "" && r.segment != ""
}

// CanProcess reports whether a post-processor applies: only ZIP resources
// with a declared extraction directory have one.
func (r *StaticResource) CanProcess() bool {
	return r.format == FormatZIP && r.unzipDir != ""
}

// DynamicResourceConfig carries the declared attributes of a
// DynamicResource.
type DynamicResourceConfig struct {
	// NamePrefix is the fixed part of generated snapshot names. Defaults to
	// the resource's declared name.
	NamePrefix  string
	Format      FileFormat
	Retrieve    RetrieveType
	Source      string
	Description string
}

// DynamicResource is a leaf file whose concrete filename is generated from
// a timestamp at fetch time. It has no fixed path of its own; Path resolves
// to the directory snapshots land in.
type DynamicResource struct {
	name        string
	namePrefix  string
	extension   string
	format      FileFormat
	retrieve    RetrieveType
	source      string
	description string
	parent      *Collection
}

// NewDynamicResource creates a detached DynamicResource. The snapshot
// extension is derived from the declared format.
func NewDynamicResource(name string, cfg DynamicResourceConfig) *DynamicResource {
	prefix := cfg.NamePrefix
	if prefix == "" {
		prefix = name
	}

	return &DynamicResource{
		name:        name,
		namePrefix:  prefix,
		extension:   cfg.Format.Extension(),
		format:      cfg.Format,
		retrieve:    cfg.Retrieve,
		source:      cfg.Source,
		description: cfg.Description,
	}
}

func (r *DynamicResource) Name() string           { return r.name }
func (r *DynamicResource) NamePrefix() string     { return r.namePrefix }
func (r *DynamicResource) Extension() string      { return r.extension }
func (r *DynamicResource) Parent() Node           { return r.parent }
func (r *DynamicResource) Format() FileFormat     { return r.format }
func (r *DynamicResource) Retrieve() RetrieveType { return r.retrieve }
func (r *DynamicResource) Source() string         { return r.source }
func (r *DynamicResource) Description() string    { return r.description }

// Segment is empty: the filename exists only once a snapshot name is
// generated.
func (r *DynamicResource) Segment() string { return "" }

// Path resolves to the parent collection's directory, where generated
// snapshots are written.
func (r *DynamicResource) Path() string {
	return r.parent.Path()
}

// Children returns nil: resources are leaves.
func (r *DynamicResource) Children() []Node { return nil }

// Traverse returns the resource itself only for an empty remainder.
func (r *DynamicResource) Traverse(segments []string, _ bool) (Node, error) {
	if len(segments) == 0 {
		return r, nil
	}

	return nil, fmt.Errorf("resource %q is a leaf, cannot resolve %q: %w",
		r.name, segments[0], ErrNotFound)
}

// CanDownload requires a source and a retrieval method; the destination
// name is generated per snapshot, so no fixed path is needed.
func (r *DynamicResource) CanDownload() bool {
	return r.source != "" && r.retrieve != ""
}

// SnapshotName generates the concrete filename for a snapshot taken at the
// given instant: {prefix}.{YYYY_MM_DD_HHMM}.{extension}.
func (r *DynamicResource) SnapshotName(at time.Time) string {
	return fmt.Sprintf("%s.%s.%s", r.namePrefix, at.Format(snapshotTimeLayout), r.extension)
}
