package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

// resetFlags clears the global flag state between command invocations.
func resetFlags() {
	flagConfigPath = ""
	flagDataDir = ""
	flagSpecDir = ""
	flagSpecFile = ""
	flagVerbose = false
	flagQuiet = false
	flagValidateExisting = true
	flagReloadUnconfirmable = false
	resolvedCfg = nil
}

func smallTree(t *testing.T, rootDir string) *dstree.Source {
	t.Helper()

	ctx := &dstree.Context{RootPath: rootDir}
	src := dstree.NewSource("noaa", "", ctx)

	ds := dstree.NewDataset("buoys", "")
	require.NoError(t, src.AttachDataset(ds))

	col := dstree.NewCollection("data", dstree.CreateStatic)
	require.NoError(t, ds.SetOrg(col))

	res := dstree.NewStaticResource("stations", dstree.StaticResourceConfig{
		Format:   dstree.FormatCSV,
		Retrieve: dstree.RetrieveGET,
		Source:   "https://example.com/stations.csv",
	})
	require.NoError(t, col.AddResource(res))

	rc := dstree.NewRemoteCollection("archive", dstree.RetrieveFTP, "ftp://host/archive")
	require.NoError(t, col.AddCollection(rc))

	return src
}

func TestPrintTree(t *testing.T) {
	src := smallTree(t, t.TempDir())

	var buf bytes.Buffer

	printTree(&buf, src)

	want := "noaa\n" +
		"  buoys\n" +
		"    data\n" +
		"      archive [remote FTP]\n" +
		"      stations [GET]\n"
	assert.Equal(t, want, buf.String())
}

func TestResolveTargets_DefaultIsAllRoots(t *testing.T) {
	src := smallTree(t, t.TempDir())

	targets, err := resolveTargets([]*dstree.Source{src}, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "noaa", targets[0].Name())
}

func TestResolveTargets_Qualifier(t *testing.T) {
	src := smallTree(t, t.TempDir())

	targets, err := resolveTargets([]*dstree.Source{src}, []string{"noaa.buoys.archive"}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "archive", targets[0].Name())
}

func TestResolveTargets_UnknownQualifierSkipped(t *testing.T) {
	src := smallTree(t, t.TempDir())

	// A bad qualifier does not abort the rest of the invocation.
	targets, err := resolveTargets([]*dstree.Source{src},
		[]string{"noaa.nope", "noaa.buoys.archive"}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.ErrorContains(t, err, "1 of 2 qualifiers")
	require.Len(t, targets, 1)
	assert.Equal(t, "archive", targets[0].Name())
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"download", "snapshot", "process", "tree", "validate"} {
		assert.Contains(t, names, want)
	}
}

// writeTestSetup lays down a config file and a spec document pointing at
// srvURL, returning the config path and data directory.
func writeTestSetup(t *testing.T, srvURL string) (configPath, dataDir string) {
	t.Helper()

	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")

	specPath := filepath.Join(dir, "sources.yml")
	specDoc := fmt.Sprintf(`
noaa:
  datasets:
    buoys:
      org:
        type: LOCAL
        create_type: STATIC
        resources:
          stations:
            file_type: CSV
            retrieve_type: GET
            create_type: STATIC
            source: %s/stations
`, srvURL)
	require.NoError(t, os.WriteFile(specPath, []byte(specDoc), 0o600))

	configPath = filepath.Join(dir, "config.toml")
	configDoc := fmt.Sprintf("data_dir = %q\nspec_dir = %q\n", dataDir, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(configDoc), 0o600))

	return configPath, dataDir
}

func TestDownloadCommand_EndToEnd(t *testing.T) {
	resetFlags()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4")

		if r.Method == http.MethodGet {
			w.Write([]byte("a,b\n"))
		}
	}))
	t.Cleanup(srv.Close)

	configPath, dataDir := writeTestSetup(t, srv.URL)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"download", "--config", configPath, "--quiet"})

	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(filepath.Join(dataDir, "noaa", "buoys", "data", "stations"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))
}

func TestTreeCommand_EndToEnd(t *testing.T) {
	resetFlags()

	configPath, _ := writeTestSetup(t, "https://example.com")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"tree", "--config", configPath, "--quiet"})

	require.NoError(t, cmd.Execute())
}

func TestRootCmd_MissingDataDir(t *testing.T) {
	resetFlags()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tree", "--config", configPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
}
