// Package spec unmarshals datasource specification documents (YAML) into
// linked dstree hierarchies. A document maps top-level source names to
// nested datasets, collections, and resources. Construction is two-pass per
// node: allocate the node from its declared attributes, then attach children
// so parent links always point at an existing node.
//
// Malformed subtrees are contained: a bad dataset, collection, or resource
// is dropped with a logged cause and its siblings survive. Only a document
// that cannot be read or parsed at all fails the whole file.
package spec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

// ErrMalformed is returned when a document's structure does not match the
// expected datasource layout.
var ErrMalformed = errors.New("spec: malformed datasource spec")

// orgName is the path segment of every dataset's organizing collection.
const orgName = "data"

// Directory kind discriminator inside a subset spec.
const (
	dirLocal  = "LOCAL"
	dirRemote = "REMOTE"
)

// Parser reads datasource spec documents and builds trees bound to a run
// Context.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}

	return &Parser{logger: logger}
}

// ParseDir parses every *.yml and *.yaml file in dir and merges the results
// into one root collection, in filename order. Returns an error only when
// the directory itself is unreadable; unparseable files are logged and
// skipped.
func (p *Parser) ParseDir(dir string, ctx *dstree.Context) ([]*dstree.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("spec: reading directory %s: %w", dir, err)
	}

	var paths []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(paths)

	var roots []*dstree.Source

	for _, path := range paths {
		parsed, err := p.ParseFile(path, ctx)
		if err != nil {
			p.logger.Error("skipping unparseable spec file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			continue
		}

		roots = append(roots, parsed...)
	}

	return roots, nil
}

// ParseFile parses one spec document from disk.
func (p *Parser) ParseFile(path string, ctx *dstree.Context) ([]*dstree.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spec: opening %s: %w", path, err)
	}
	defer f.Close()

	roots, err := p.Parse(f, ctx)
	if err != nil {
		return nil, fmt.Errorf("spec: parsing %s: %w", path, err)
	}

	return roots, nil
}

// Parse reads one YAML document mapping source names to source specs.
// Malformed sources are dropped with a logged cause; the remaining sources
// are returned in declaration order.
func (p *Parser) Parse(r io.Reader, ctx *dstree.Context) ([]*dstree.Source, error) {
	var doc yaml.Node

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("spec: decoding YAML: %w", err)
	}

	root := unwrapDocument(&doc)

	pairs, err := mappingPairs(root)
	if err != nil {
		return nil, fmt.Errorf("spec: top level must map source names to specs: %w", err)
	}

	var roots []*dstree.Source

	for _, pr := range pairs {
		src, err := p.parseSource(pr.key, pr.val, ctx)
		if err != nil {
			p.logger.Error("dropping malformed source",
				slog.String("source", pr.key),
				slog.String("error", err.Error()),
			)

			continue
		}

		roots = append(roots, src)
	}

	return roots, nil
}

// parseSource builds a Source and recursively attaches its datasets and
// nested sources. The returned Source is detached; the caller attaches it
// (or keeps it as a root).
func (p *Parser) parseSource(name string, n *yaml.Node, ctx *dstree.Context) (*dstree.Source, error) {
	var attrs struct {
		Description string `yaml:"description"`
	}

	if err := n.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("source %q: %w: %w", name, ErrMalformed, err)
	}

	src := dstree.NewSource(name, attrs.Description, ctx)

	if sub := childByKey(n, "datasources"); sub != nil {
		pairs, err := mappingPairs(sub)
		if err != nil {
			return nil, fmt.Errorf("source %q: datasources: %w: %w", name, ErrMalformed, err)
		}

		for _, pr := range pairs {
			child, err := p.parseSource(pr.key, pr.val, ctx)
			if err == nil {
				err = src.AttachSource(child)
			}

			if err != nil {
				p.logger.Error("dropping malformed nested source",
					slog.String("source", name),
					slog.String("child", pr.key),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if ds := childByKey(n, "datasets"); ds != nil {
		pairs, err := mappingPairs(ds)
		if err != nil {
			return nil, fmt.Errorf("source %q: datasets: %w: %w", name, ErrMalformed, err)
		}

		for _, pr := range pairs {
			if err := p.parseDataset(pr.key, pr.val, src); err != nil {
				p.logger.Error("dropping malformed dataset",
					slog.String("source", name),
					slog.String("dataset", pr.key),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return src, nil
}

// parseDataset builds a Dataset and its organizing collection.
func (p *Parser) parseDataset(name string, n *yaml.Node, parent *dstree.Source) error {
	var attrs struct {
		Description string `yaml:"description"`
	}

	if err := n.Decode(&attrs); err != nil {
		return fmt.Errorf("dataset %q: %w: %w", name, ErrMalformed, err)
	}

	orgNode := childByKey(n, "org")
	if orgNode == nil {
		return fmt.Errorf("dataset %q: missing org collection: %w", name, ErrMalformed)
	}

	org, err := p.parseSubset(orgName, orgNode)
	if err != nil {
		return fmt.Errorf("dataset %q: %w", name, err)
	}

	ds := dstree.NewDataset(name, attrs.Description)
	if err := ds.SetOrg(org); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := parent.AttachDataset(ds); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return nil
}

// parseSubset builds a Collection or RemoteCollection from a subset spec,
// discriminated by its "type" key.
func (p *Parser) parseSubset(name string, n *yaml.Node) (dstree.Node, error) {
	var attrs struct {
		Type         string `yaml:"type"`
		CreateType   string `yaml:"create_type"`
		RetrieveType string `yaml:"retrieve_type"`
		Source       string `yaml:"source"`
	}

	if err := n.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("collection %q: %w: %w", name, ErrMalformed, err)
	}

	switch attrs.Type {
	case dirLocal:
		return p.parseLocalSubset(name, n, attrs.CreateType)
	case dirRemote:
		rt, err := parseRetrieveType(attrs.RetrieveType)
		if err != nil {
			return nil, fmt.Errorf("remote collection %q: %w: %w", name, ErrMalformed, err)
		}

		return dstree.NewRemoteCollection(name, rt, attrs.Source), nil
	default:
		return nil, fmt.Errorf("collection %q: type must be LOCAL or REMOTE, got %q: %w",
			name, attrs.Type, ErrMalformed)
	}
}

// parseLocalSubset builds a Collection and attaches its nested subsets and
// resources. Malformed children are dropped with a logged cause.
func (p *Parser) parseLocalSubset(name string, n *yaml.Node, createType string) (*dstree.Collection, error) {
	ct, err := parseCreateType(createType)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w: %w", name, ErrMalformed, err)
	}

	col := dstree.NewCollection(name, ct)

	if subs := childByKey(n, "subsets"); subs != nil {
		pairs, err := mappingPairs(subs)
		if err != nil {
			return nil, fmt.Errorf("collection %q: subsets: %w: %w", name, ErrMalformed, err)
		}

		for _, pr := range pairs {
			child, err := p.parseSubset(pr.key, pr.val)
			if err != nil {
				p.logger.Error("dropping malformed collection",
					slog.String("collection", name),
					slog.String("child", pr.key),
					slog.String("error", err.Error()),
				)

				continue
			}

			if err := col.AddCollection(child); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
		}
	}

	if res := childByKey(n, "resources"); res != nil {
		pairs, err := mappingPairs(res)
		if err != nil {
			return nil, fmt.Errorf("collection %q: resources: %w: %w", name, ErrMalformed, err)
		}

		for _, pr := range pairs {
			r, err := p.parseResource(pr.key, pr.val)
			if err != nil {
				p.logger.Error("dropping malformed resource",
					slog.String("collection", name),
					slog.String("resource", pr.key),
					slog.String("error", err.Error()),
				)

				continue
			}

			if err := col.AddResource(r); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
		}
	}

	return col, nil
}

// parseResource builds a StaticResource or DynamicResource, discriminated
// by create_type.
func (p *Parser) parseResource(name string, n *yaml.Node) (dstree.Node, error) {
	var attrs struct {
		FileType     string `yaml:"file_type"`
		RetrieveType string `yaml:"retrieve_type"`
		CreateType   string `yaml:"create_type"`
		Source       string `yaml:"source"`
		Description  string `yaml:"description"`
		Unzip        string `yaml:"unzip"`
		NamePrefix   string `yaml:"name_prefix"`
	}

	if err := n.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("resource %q: %w: %w", name, ErrMalformed, err)
	}

	format := dstree.FileFormat(attrs.FileType)
	if !format.Known() {
		return nil, fmt.Errorf("resource %q: unknown file_type %q: %w", name, attrs.FileType, ErrMalformed)
	}

	rt, err := parseRetrieveType(attrs.RetrieveType)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w: %w", name, ErrMalformed, err)
	}

	ct, err := parseCreateType(attrs.CreateType)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w: %w", name, ErrMalformed, err)
	}

	// A GET resource with a hopeless source URL is kept in the tree (it
	// still establishes structure) but flagged here so a run is auditable.
	if rt == dstree.RetrieveGET && !urlUsable(attrs.Source) {
		p.logger.Error("resource source URL missing or invalid",
			slog.String("resource", name),
			slog.String("source", attrs.Source),
		)
	}

	if ct == dstree.CreateDynamic {
		return dstree.NewDynamicResource(name, dstree.DynamicResourceConfig{
			NamePrefix:  attrs.NamePrefix,
			Format:      format,
			Retrieve:    rt,
			Source:      attrs.Source,
			Description: attrs.Description,
		}), nil
	}

	return dstree.NewStaticResource(name, dstree.StaticResourceConfig{
		Format:      format,
		Retrieve:    rt,
		Source:      attrs.Source,
		Description: attrs.Description,
		UnzipDir:    attrs.Unzip,
	}), nil
}

func parseRetrieveType(s string) (dstree.RetrieveType, error) {
	switch rt := dstree.RetrieveType(s); rt {
	case dstree.RetrieveGET, dstree.RetrieveFTP, dstree.RetrieveManual, dstree.RetrieveNone:
		return rt, nil
	default:
		return "", fmt.Errorf("unknown retrieve_type %q", s)
	}
}

func parseCreateType(s string) (dstree.CreateType, error) {
	switch ct := dstree.CreateType(s); ct {
	case dstree.CreateStatic, dstree.CreateDynamic:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown create_type %q", s)
	}
}

// urlUsable reports whether a source string parses into a URL with both a
// scheme and a host.
func urlUsable(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}

// pair is one key/value entry of a YAML mapping, in document order.
type pair struct {
	key string
	val *yaml.Node
}

// unwrapDocument returns the content node of a document node, or the node
// itself.
func unwrapDocument(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}

	return n
}

// mappingPairs returns the entries of a mapping node in declaration order.
// YAML maps decode into Go maps with randomized order, which would destroy
// the tree's sibling ordering; walking the node's Content preserves it.
func mappingPairs(n *yaml.Node) ([]pair, error) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got YAML kind %d", kindOf(n))
	}

	pairs := make([]pair, 0, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		pairs = append(pairs, pair{key: n.Content[i].Value, val: n.Content[i+1]})
	}

	return pairs, nil
}

// childByKey returns the value node for a key of a mapping node, or nil.
func childByKey(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}

	return nil
}

func kindOf(n *yaml.Node) yaml.Kind {
	if n == nil {
		return 0
	}

	return n.Kind
}
