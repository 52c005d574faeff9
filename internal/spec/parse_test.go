package spec

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

// discardLogger keeps parser noise out of test output.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const sampleDoc = `
NOAA:
  description: NOAA data
  datasets:
    buoys:
      description: buoy observations
      org:
        type: LOCAL
        create_type: STATIC
        subsets:
          realtime:
            type: LOCAL
            create_type: STATIC
            resources:
              stations:
                file_type: CSV
                retrieve_type: GET
                create_type: STATIC
                source: https://example.com/stations.csv
          archive:
            type: REMOTE
            retrieve_type: FTP
            source: ftp://ftp.example.com/archive
        resources:
          bundle:
            file_type: ZIP
            retrieve_type: GET
            create_type: STATIC
            source: https://example.com/bundle.zip
            unzip: bundle
          latest:
            file_type: CSV
            retrieve_type: GET
            create_type: DYNAMIC
            name_prefix: wx
            source: https://example.com/latest.csv
  datasources:
    charts:
      description: nautical charts
      datasets: {}
USCB:
  description: census data
  datasets: {}
`

func parseSample(t *testing.T, doc string) []*dstree.Source {
	t.Helper()

	p := NewParser(discardLogger())
	ctx := &dstree.Context{RootPath: t.TempDir()}

	roots, err := p.Parse(strings.NewReader(doc), ctx)
	require.NoError(t, err)

	return roots
}

func TestParse_FullDocument(t *testing.T) {
	roots := parseSample(t, sampleDoc)
	require.Len(t, roots, 2)

	// Declaration order preserved across top-level sources.
	assert.Equal(t, "NOAA", roots[0].Name())
	assert.Equal(t, "USCB", roots[1].Name())
	assert.Equal(t, "NOAA data", roots[0].Description())

	// Nested source attached.
	n, err := dstree.Resolve(roots, "noaa.charts", dstree.ResolveOptions{})
	require.NoError(t, err)
	assert.IsType(t, &dstree.Source{}, n)

	// Dataset resolves to its org collection.
	n, err = dstree.Resolve(roots, "noaa.buoys", dstree.ResolveOptions{})
	require.NoError(t, err)
	org, ok := n.(*dstree.Collection)
	require.True(t, ok)
	assert.Equal(t, "data", org.Name())
	assert.Equal(t, dstree.CreateStatic, org.CreateScope())
}

func TestParse_ResourceAttributes(t *testing.T) {
	roots := parseSample(t, sampleDoc)

	n, err := dstree.Resolve(roots, "noaa.buoys.realtime.stations", dstree.ResolveOptions{})
	require.NoError(t, err)

	res, ok := n.(*dstree.StaticResource)
	require.True(t, ok)
	assert.Equal(t, dstree.FormatCSV, res.Format())
	assert.Equal(t, dstree.RetrieveGET, res.Retrieve())
	assert.Equal(t, "https://example.com/stations.csv", res.Source())
	assert.True(t, res.CanDownload())
}

func TestParse_ZipResourceUnzipDir(t *testing.T) {
	roots := parseSample(t, sampleDoc)

	n, err := dstree.Resolve(roots, "noaa.buoys.bundle", dstree.ResolveOptions{})
	require.NoError(t, err)

	res, ok := n.(*dstree.StaticResource)
	require.True(t, ok)
	assert.Equal(t, "bundle", res.UnzipDir())
	assert.True(t, res.CanProcess())
}

func TestParse_DynamicResource(t *testing.T) {
	roots := parseSample(t, sampleDoc)

	n, err := dstree.Resolve(roots, "noaa.buoys.latest", dstree.ResolveOptions{})
	require.NoError(t, err)

	res, ok := n.(*dstree.DynamicResource)
	require.True(t, ok)
	assert.Equal(t, "wx", res.NamePrefix())
	assert.Equal(t, "csv", res.Extension())
}

func TestParse_RemoteCollection(t *testing.T) {
	roots := parseSample(t, sampleDoc)

	n, err := dstree.Resolve(roots, "noaa.buoys.archive", dstree.ResolveOptions{})
	require.NoError(t, err)

	rc, ok := n.(*dstree.RemoteCollection)
	require.True(t, ok)
	assert.Equal(t, dstree.RetrieveFTP, rc.Retrieve())
	assert.Equal(t, "ftp://ftp.example.com/archive", rc.Source())
}

func TestParse_MalformedDatasetDroppedSiblingsSurvive(t *testing.T) {
	doc := `
SRC:
  datasets:
    broken:
      description: no org collection here
    ok:
      org:
        type: LOCAL
        create_type: STATIC
`
	roots := parseSample(t, doc)
	require.Len(t, roots, 1)

	_, err := dstree.Resolve(roots, "src.broken", dstree.ResolveOptions{})
	assert.ErrorIs(t, err, dstree.ErrNotFound)

	_, err = dstree.Resolve(roots, "src.ok", dstree.ResolveOptions{})
	assert.NoError(t, err)
}

func TestParse_MalformedResourceDroppedSiblingsSurvive(t *testing.T) {
	doc := `
SRC:
  datasets:
    d:
      org:
        type: LOCAL
        create_type: STATIC
        resources:
          bad:
            file_type: CSV
            retrieve_type: CARRIER_PIGEON
            create_type: STATIC
            source: https://example.com/bad.csv
          good:
            file_type: CSV
            retrieve_type: GET
            create_type: STATIC
            source: https://example.com/good.csv
`
	roots := parseSample(t, doc)

	_, err := dstree.Resolve(roots, "src.d.bad", dstree.ResolveOptions{})
	assert.ErrorIs(t, err, dstree.ErrNotFound)

	_, err = dstree.Resolve(roots, "src.d.good", dstree.ResolveOptions{})
	assert.NoError(t, err)
}

func TestParse_UnknownSubsetTypeDropped(t *testing.T) {
	doc := `
SRC:
  datasets:
    d:
      org:
        type: LOCAL
        create_type: STATIC
        subsets:
          weird:
            type: SIDEWAYS
          fine:
            type: LOCAL
            create_type: STATIC
`
	roots := parseSample(t, doc)

	_, err := dstree.Resolve(roots, "src.d.weird", dstree.ResolveOptions{})
	assert.ErrorIs(t, err, dstree.ErrNotFound)

	_, err = dstree.Resolve(roots, "src.d.fine", dstree.ResolveOptions{})
	assert.NoError(t, err)
}

func TestParse_BadSourceURLKeptInTree(t *testing.T) {
	doc := `
SRC:
  datasets:
    d:
      org:
        type: LOCAL
        create_type: STATIC
        resources:
          hopeless:
            file_type: CSV
            retrieve_type: GET
            create_type: STATIC
            source: "not a url"
`
	roots := parseSample(t, doc)

	// Flagged in the log but kept: the node still establishes structure.
	n, err := dstree.Resolve(roots, "src.d.hopeless", dstree.ResolveOptions{})
	require.NoError(t, err)
	assert.IsType(t, &dstree.StaticResource{}, n)
}

func TestParse_TopLevelNotMapping(t *testing.T) {
	p := NewParser(discardLogger())

	_, err := p.Parse(strings.NewReader("- a\n- b\n"), &dstree.Context{RootPath: t.TempDir()})
	assert.Error(t, err)
}

func TestParse_InvalidYAML(t *testing.T) {
	p := NewParser(discardLogger())

	_, err := p.Parse(strings.NewReader(":\t:bad"), &dstree.Context{RootPath: t.TempDir()})
	assert.Error(t, err)
}

func TestParseDir_MergesFilesInNameOrder(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"),
		[]byte("BETA:\n  datasets: {}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"),
		[]byte("ALPHA:\n  datasets: {}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"),
		[]byte("not yaml"), 0o600))

	p := NewParser(discardLogger())

	roots, err := p.ParseDir(dir, &dstree.Context{RootPath: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "ALPHA", roots[0].Name())
	assert.Equal(t, "BETA", roots[1].Name())
}

func TestParseDir_SkipsUnparseableFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"),
		[]byte("- not\n-a mapping\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"),
		[]byte("GOOD:\n  datasets: {}\n"), 0o600))

	p := NewParser(discardLogger())

	roots, err := p.ParseDir(dir, &dstree.Context{RootPath: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "GOOD", roots[0].Name())
}

func TestParseFile_Missing(t *testing.T) {
	p := NewParser(discardLogger())

	_, err := p.ParseFile(filepath.Join(t.TempDir(), "nope.yml"), &dstree.Context{RootPath: t.TempDir()})
	assert.Error(t, err)
}
