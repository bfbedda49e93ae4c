package morph

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/pagenorm/pkg/lexicon"
	"github.com/hazyhaar/pagenorm/pkg/rules"
)

type stubLexicon map[string]lexicon.Entry

func (s stubLexicon) Lookup(word string) (lexicon.Entry, bool) {
	e, ok := s[strings.ToLower(word)]
	return e, ok
}

var lex = stubLexicon{
	"nunciavit":  {Superlemma: "nuntio@V", Lemma: "nuncio"},
	"facyt":      {Superlemma: "facio@V", Lemma: "facio"},
	"concipiy":   {Superlemma: "concipio@V", Lemma: "concipio"},
	"crescit":    {Superlemma: "cresco@V", Lemma: "cresco"},
	"cognoscit":  {Superlemma: "cognosco@V", Lemma: "cognosco"},
	"pronunciat": {Superlemma: "pronuntio@V", Lemma: "pronuntio"},
	"sequntur":   {Superlemma: "sequor@V", Lemma: "sequnor"},
	"vestrum":    {Superlemma: "uester@PRO", Lemma: "vester"},
	"hyc":        {Superlemma: "hic@PRO", Lemma: "hyc"},
	"sepe":       {Superlemma: "saepe@ADV", Lemma: "sepe"},
	"celum":      {Superlemma: "caelum@NN", Lemma: "celum"},
	"celi":       {Superlemma: "caelum@NN", Lemma: "celum"},
	"rosam":      {Superlemma: "rosa@NN", Lemma: "rosa"},
	"ereum":      {Superlemma: "aereus@ADJ", Lemma: "ereus"},
	"a":          {Superlemma: "a@AP", Lemma: "a"},
	"alee":       {Superlemma: "alea@NN", Lemma: "alea"},
	"foo":        {Superlemma: "bar@NN", Lemma: "baz"},
	"o":          {Superlemma: "o@V", Lemma: "o"},
	"untagged":   {Superlemma: "nomen", Lemma: "nomen"},
}

func newNormalizer(t *testing.T) (*Normalizer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(rules.Default(), lex, logger), &buf
}

func TestNormalize(t *testing.T) {
	n, _ := newNormalizer(t)

	tests := []struct {
		name string
		word string
		want string
	}{
		{"verb drop one", "nunciavit", "nuntiavit"},
		{"verb ending on whole word when root absent", "facyt", "facit"},
		{"verb ending only after root", "concipiy", "concipii"},
		{"verb sco drops three", "crescit", "crescit"},
		{"verb sci ending kept", "cognoscit", "cognoscit"},
		{"verb nci ending on whole word", "pronunciat", "pronuntiat"},
		{"verb or drops two", "sequntur", "sequtur"},
		{"pronoun er drops two", "vestrum", "uestrum"},
		{"pronoun drops one", "hyc", "hic"},
		{"adverb whole lemma", "sepe", "saepe"},
		{"other suffix", "celum", "caelum"},
		{"capitalized", "Celi", "Caeli"},
		{"other unchanged", "rosam", "rosam"},
		{"unknown word", "xylocopa", "xylocopa"},
		{"stoplisted a", "a", "a"},
		{"stoplisted alea", "alee", "alee"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := n.Normalize(tt.word)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Record(t *testing.T) {
	n, _ := newNormalizer(t)

	got, rec := n.Normalize("Celi")
	require.NotNil(t, rec)
	assert.Equal(t, "Caeli", got)
	assert.Equal(t, Record{
		Word:           "Celi",
		Superlemma:     "caelum@NN",
		Lemma:          "celum",
		SuperlemmaRoot: "Cael",
		LemmaRoot:      "Cel",
		Class:          Other,
		ClassName:      "other",
		Normalized:     "Caeli",
	}, *rec)
}

func TestNormalize_SingleSuffix(t *testing.T) {
	n, _ := newNormalizer(t)

	got, rec := n.Normalize("ereum")
	require.NotNil(t, rec)
	assert.Equal(t, "aere", rec.SuperlemmaRoot)
	assert.Equal(t, "ere", rec.LemmaRoot)
	assert.Equal(t, "aereum", got)
}

func TestNormalize_NoRecordWhenSkipped(t *testing.T) {
	n, _ := newNormalizer(t)

	for _, w := range []string{"xylocopa", "a", "alee", "foo"} {
		_, rec := n.Normalize(w)
		assert.Nil(t, rec, w)
	}
}

func TestNormalize_MismatchWarns(t *testing.T) {
	n, buf := newNormalizer(t)

	got, rec := n.Normalize("foo")
	assert.Equal(t, "foo", got)
	assert.Nil(t, rec)
	assert.Contains(t, buf.String(), "lemma/superlemma mismatch")
	assert.Contains(t, buf.String(), "bar@NN")
}

func TestNormalize_EmptyLemmaRoot(t *testing.T) {
	n, _ := newNormalizer(t)

	got, rec := n.Normalize("o")
	require.NotNil(t, rec)
	assert.Equal(t, "", rec.LemmaRoot)
	assert.Equal(t, "o", got)
}

func TestNormalize_UntaggedIsOther(t *testing.T) {
	n, _ := newNormalizer(t)

	_, rec := n.Normalize("untagged")
	require.NotNil(t, rec)
	assert.Equal(t, Other, rec.Class)
}

func TestMapping(t *testing.T) {
	n, _ := newNormalizer(t)

	m, recs := n.Mapping([]string{"celum", "rosam", "xylocopa", "hyc", "a"})
	assert.Equal(t, map[string]string{"celum": "caelum", "hyc": "hic"}, m)
	assert.Len(t, recs, 3)
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		tag  string
		want Class
	}{
		{"V", Verb},
		{"ADV", Adverb},
		{"PRO", Pronoun},
		{"NN", Other},
		{"", Other},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassOf(tt.tag), tt.tag)
		assert.NotEmpty(t, tt.want.String())
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Cael", capitalize("cAEL"))
	assert.Equal(t, "Ætas", capitalize("ætas"))
	assert.Equal(t, "", capitalize(""))
}
