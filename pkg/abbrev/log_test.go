package abbrev

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_LastWriteWins(t *testing.T) {
	l := NewLog()
	l.Record("dūs", "dominus")
	l.Record("dūs", "deus")

	got, ok := l.Get("dūs")
	require.True(t, ok)
	assert.Equal(t, "deus", got)
	assert.Equal(t, 1, l.Len())
}

func TestLog_SnapshotIsCopy(t *testing.T) {
	l := NewLog()
	l.Record("ꝑ", "per")
	snap := l.Snapshot()
	snap["ꝑ"] = "changed"

	got, _ := l.Get("ꝑ")
	assert.Equal(t, "per", got)
}

func TestLog_Merge(t *testing.T) {
	l := NewLog()
	l.Record("ꝑ", "per")
	l.Merge(map[string]string{"ꝑ": "pre", "ꝓ": "pro"})

	assert.Equal(t, map[string]string{"ꝑ": "pre", "ꝓ": "pro"}, l.Snapshot())
}

func TestLog_Concurrent(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, w := range []string{"a", "b", "c", "d"} {
				l.Record(w, w+w)
				l.Get(w)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, l.Len())
}

func TestLog_SaveFormat(t *testing.T) {
	l := NewLog()
	l.Record("ꝑ", "per")
	l.Record("dūs", "deus")
	l.Record("a&b", "<x>")

	path := filepath.Join(t.TempDir(), "out", "abbreviations_log.json")
	require.NoError(t, l.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "{\n" +
		"    \"a&b\": \"<x>\",\n" +
		"    \"dūs\": \"deus\",\n" +
		"    \"ꝑ\": \"per\"\n" +
		"}\n"
	assert.Equal(t, want, string(data))
}

func TestLog_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abbreviations_log.json")

	first := NewLog()
	first.Record("ꝑ", "per")
	require.NoError(t, first.Save(path))

	second := NewLog()
	second.Record("ꝓ", "pro")
	require.NoError(t, second.Save(path))

	loaded, err := LoadLog(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ꝓ": "pro"}, loaded.Snapshot())
}

func TestLoadLog_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadLog(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0o644))
	_, err = LoadLog(bad)
	assert.Error(t, err)
}

func TestLoadLog_Null(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))
	l, err := LoadLog(path)
	require.NoError(t, err)
	l.Record("x", "y")
	assert.Equal(t, 1, l.Len())
}
