package abbrev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/pagenorm/pkg/rules"
)

type mapLookup map[string]string

func (m mapLookup) Expansion(word string) (string, bool) {
	e, ok := m[word]
	return e, ok
}

func TestResolve_Priority(t *testing.T) {
	domain := mapLookup{"dūs": "dominus"}
	general := mapLookup{"dūs": "deus", "ꝑ": "per"}

	tests := []struct {
		name   string
		word   string
		want   string
		source Source
	}{
		{"domain wins", "dūs", "dominus", SourceDomain},
		{"general fallback", "ꝑ", "per", SourceGeneral},
		{"rules fallback", "ꝓmisit", "promisit", SourceRules},
		{"rules drop overline", "q\u0305", "q", SourceRules},
	}
	r := NewResolver(rules.Default(), domain, general, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := r.Resolve(tt.word)
			require.True(t, ok)
			assert.Equal(t, tt.word, res.Word)
			assert.Equal(t, tt.want, res.Expansion)
			assert.Equal(t, tt.source, res.Source)
		})
	}
}

func TestResolve_GeneralDictionary(t *testing.T) {
	r := NewResolver(rules.Default(), nil, mapLookup{"dūs": "deus"}, nil)
	res, ok := r.Resolve("dūs")
	require.True(t, ok)
	assert.Equal(t, "deus", res.Expansion)
}

func TestResolve_NotAbbreviated(t *testing.T) {
	log := NewLog()
	r := NewResolver(rules.Default(), mapLookup{"rosa": "rosae"}, nil, log)

	_, ok := r.Resolve("rosa")
	assert.False(t, ok)
	assert.Equal(t, 0, log.Len())
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(rules.Default(), nil, mapLookup{"dūs": "deus"}, nil)

	res, ok := r.Resolve("dūs")
	require.True(t, ok)
	_, ok = r.Resolve(res.Expansion)
	assert.False(t, ok, "an expansion must not be resolved again")
}

func TestResolve_RecordsLog(t *testing.T) {
	log := NewLog()
	r := NewResolver(rules.Default(), nil, mapLookup{"dūs": "deus"}, log)

	r.Resolve("dūs")
	r.Resolve("ꝑ")

	assert.Equal(t, map[string]string{"dūs": "deus", "ꝑ": "per"}, log.Snapshot())
}

func TestMapping(t *testing.T) {
	r := NewResolver(rules.Default(), nil, mapLookup{"dūs": "deus", "ꝗ": "ꝗ"}, nil)

	got := r.Mapping([]string{"dūs", "rosa", "ꝑtinet", "ꝗ"})
	assert.Equal(t, map[string]string{"dūs": "deus", "ꝑtinet": "pertinet"}, got)
}

func TestIsAbbreviated(t *testing.T) {
	r := NewResolver(rules.Default(), nil, nil, nil)
	assert.True(t, r.IsAbbreviated("dūs"))
	assert.True(t, r.IsAbbreviated("du\u0304s"))
	assert.False(t, r.IsAbbreviated("deus"))
}
