package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/pagenorm/pkg/abbrev"
	"github.com/hazyhaar/pagenorm/pkg/morph"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.BeginRun(ctx, []string{"expanded", "normalized"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Equal(t, []string{"expanded", "normalized"}, runs[0].Stages)
	assert.Nil(t, runs[0].FinishedAt)

	require.NoError(t, s.FinishRun(ctx, id, 2, nil))
	runs, err = s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, runs[0].Status)
	assert.Equal(t, 2, runs[0].Documents)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[0].Error)
}

func TestFinishRun_Failed(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.BeginRun(ctx, []string{"expanded"})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, 0, errors.New("lexicon missing")))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
	assert.Equal(t, "lexicon missing", *runs[0].Error)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.FinishRun(context.Background(), "nope", 0, nil))
}

func TestRecordAbbreviations_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id, err := s.BeginRun(ctx, []string{"expanded"})
	require.NoError(t, err)

	require.NoError(t, s.RecordAbbreviations(ctx, id, []abbrev.Resolution{
		{Word: "ꝑ", Expansion: "per", Source: abbrev.SourceRules},
		{Word: "dūs", Expansion: "dominus", Source: abbrev.SourceDomain},
	}))
	require.NoError(t, s.RecordAbbreviations(ctx, id, []abbrev.Resolution{
		{Word: "dūs", Expansion: "deus", Source: abbrev.SourceGeneral},
	}))
	require.NoError(t, s.RecordAbbreviations(ctx, id, nil))

	got, err := s.Abbreviations(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []abbrev.Resolution{
		{Word: "dūs", Expansion: "deus", Source: abbrev.SourceGeneral},
		{Word: "ꝑ", Expansion: "per", Source: abbrev.SourceRules},
	}, got)
}

func TestRecordNormalizations(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id, err := s.BeginRun(ctx, []string{"normalized"})
	require.NoError(t, err)

	rec := morph.Record{
		Word: "celum", Superlemma: "caelum@NN", Lemma: "celum",
		SuperlemmaRoot: "cael", LemmaRoot: "cel",
		Class: morph.Other, ClassName: "other", Normalized: "caelum",
	}
	verb := morph.Record{
		Word: "facyt", Superlemma: "facio@V", Lemma: "facio",
		SuperlemmaRoot: "faci", LemmaRoot: "faci",
		Class: morph.Verb, ClassName: "verb", Normalized: "facit",
	}
	require.NoError(t, s.RecordNormalizations(ctx, id, []morph.Record{rec, verb}))

	got, err := s.Normalizations(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []morph.Record{rec, verb}, got)
}

func TestRecordDocument(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id, err := s.BeginRun(ctx, []string{"expanded"})
	require.NoError(t, err)

	d := Document{
		Path:       "data/base/page/0001.xml",
		Stage:      "expanded",
		OutputPath: "data/expanded/page/0001.xml",
		InputHash:  Hash([]byte("in")),
		OutputHash: Hash([]byte("out")),
		Words:      12,
		Replaced:   3,
	}
	require.NoError(t, s.RecordDocument(ctx, id, d))

	docs, err := s.Documents(ctx, id)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotZero(t, docs[0].ProcessedAt)
	d.ProcessedAt = docs[0].ProcessedAt
	assert.Equal(t, d, docs[0])
}

func TestHash(t *testing.T) {
	h := Hash([]byte("abc"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash([]byte("abc")))
	assert.NotEqual(t, h, Hash([]byte("abd")))
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, []string{"expanded"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
