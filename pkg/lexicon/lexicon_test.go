package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "WF-Name\tSL-Name\tL-Name\n" +
	"rosa\trosa@NN\trosa\n" +
	"amor\tamo@V\tamo\n" +
	"amor\tamor@NN\tamor\n" +
	"broken row without tabs\n" +
	"crescit\tcresco@V\tcresco\n" +
	"\tempty@NN\tempty\n" +
	"a\ta@AP\ta\n" +
	"too\tmany\tfields\there\n"

func writeTSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lexicon.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, sampleTSV)})
	require.NoError(t, err)

	assert.Equal(t, 4, tab.Len())
	assert.Equal(t, 3, tab.Skipped())
}

func TestLookup_FirstMatchWins(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, sampleTSV)})
	require.NoError(t, err)

	e, ok := tab.Lookup("amor")
	require.True(t, ok)
	assert.Equal(t, Entry{Superlemma: "amo@V", Lemma: "amo"}, e)
	assert.Len(t, tab.LookupAll("amor"), 2)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, sampleTSV)})
	require.NoError(t, err)

	e, ok := tab.Lookup("Rosa")
	require.True(t, ok)
	assert.Equal(t, "rosa@NN", e.Superlemma)

	_, ok = tab.Lookup("ROSA")
	assert.True(t, ok)
}

func TestLookup_Miss(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, sampleTSV)})
	require.NoError(t, err)

	_, ok := tab.Lookup("xylocopa")
	assert.False(t, ok)
}

func TestLoad_EmptyFile(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, "")})
	require.NoError(t, err)
	assert.Equal(t, 0, tab.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{Path: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("form\tSL-Name\tL-Name\n"), Options{})
	assert.ErrorIs(t, err, ErrNoColumn)
}

func TestRead_CustomColumns(t *testing.T) {
	tab, err := Read(strings.NewReader("lemma\tform\tsuper\nrosa\trosam\trosa@NN\n"), Options{
		Columns: Columns{WordForm: "form", Superlemma: "super", Lemma: "lemma"},
	})
	require.NoError(t, err)

	e, ok := tab.Lookup("rosam")
	require.True(t, ok)
	assert.Equal(t, Entry{Superlemma: "rosa@NN", Lemma: "rosa"}, e)
}

func TestRead_Latin1(t *testing.T) {
	// "cæli" in ISO-8859-1.
	data := []byte("WF-Name\tSL-Name\tL-Name\nc\xe6li\tcaelum@NN\tcaelum\n")
	tab, err := Read(strings.NewReader(string(data)), Options{Encoding: "iso-8859-1"})
	require.NoError(t, err)

	_, ok := tab.Lookup("cæli")
	assert.True(t, ok)
}

func TestCache_RoundTrip(t *testing.T) {
	tab, err := Load(Options{Path: writeTSV(t, sampleTSV)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "lexicon.gob.xz")
	require.NoError(t, tab.SaveCache(path))

	cached, err := LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, tab.Len(), cached.Len())
	assert.Equal(t, tab.Skipped(), cached.Skipped())

	e, ok := cached.Lookup("AMOR")
	require.True(t, ok)
	assert.Equal(t, "amo@V", e.Superlemma)
}

func TestOpen_PrefersFreshCache(t *testing.T) {
	src := writeTSV(t, sampleTSV)
	cache := filepath.Join(t.TempDir(), "lexicon.gob.xz")

	tab, err := Open(Options{Path: src, Cache: cache})
	require.NoError(t, err)
	require.FileExists(t, cache)
	assert.Equal(t, 4, tab.Len())

	// Source now disagrees with the cache but is older: the cache wins.
	require.NoError(t, os.WriteFile(src, []byte("WF-Name\tSL-Name\tL-Name\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))

	tab, err = Open(Options{Path: src, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Len())

	// A newer source invalidates the cache.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, future, future))
	tab, err = Open(Options{Path: src, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 0, tab.Len())
}

func TestLoadCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob.xz")
	require.NoError(t, os.WriteFile(path, []byte("not xz"), 0o644))
	_, err := LoadCache(path)
	assert.Error(t, err)
}
