package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pagenorm/pkg/abbrev"
	"github.com/hazyhaar/pagenorm/pkg/dict"
	"github.com/hazyhaar/pagenorm/pkg/extract"
	"github.com/hazyhaar/pagenorm/pkg/kit"
	"github.com/hazyhaar/pagenorm/pkg/lexicon"
	"github.com/hazyhaar/pagenorm/pkg/morph"
	"github.com/hazyhaar/pagenorm/pkg/rules"
	"github.com/hazyhaar/pagenorm/pkg/substitute"
)

// ErrNoLexicon is returned by the normalization endpoints when the service
// was built without a lexicon.
var ErrNoLexicon = errors.New("no lexicon loaded")

// Lexicon is the read side of a lexicon.Table.
type Lexicon interface {
	Lookup(word string) (lexicon.Entry, bool)
	LookupAll(word string) []lexicon.Entry
}

// Service answers word-level requests against the loaded dictionaries,
// rule set and lexicon. Resolutions made here are not written to the
// abbreviation log.
type Service struct {
	reg        *dict.Registry
	lex        Lexicon
	resolver   *abbrev.Resolver
	normalizer *morph.Normalizer
	extractor  *extract.Extractor
	sub        *substitute.Substitutor
	logger     *slog.Logger
}

// NewService builds a Service. lex may be nil, in which case the
// normalization endpoints fail with ErrNoLexicon.
func NewService(reg *dict.Registry, rs *rules.RuleSet, lex Lexicon, logger *slog.Logger) *Service {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		reg:       reg,
		lex:       lex,
		resolver:  abbrev.NewResolver(rs, reg.Tier(dict.TierDomain), reg.Tier(dict.TierGeneral), nil).WithLogger(logger),
		extractor: extract.New(rs),
		sub:       substitute.New(rs),
		logger:    logger,
	}
	if lex != nil {
		s.normalizer = morph.New(rs, lex, logger)
	}
	return s
}

// Request/response types shared by the endpoints and their MCP decoders.

type wordReq struct {
	Word string
}

type textReq struct {
	Text      string
	Normalize bool
}

type expandResponse struct {
	Word        string        `json:"word"`
	Abbreviated bool          `json:"abbreviated"`
	Expansion   string        `json:"expansion"`
	Source      abbrev.Source `json:"source,omitempty"`
}

type normalizeResponse struct {
	Word       string        `json:"word"`
	Normalized string        `json:"normalized"`
	Record     *morph.Record `json:"record,omitempty"`
}

type textResponse struct {
	Text       string            `json:"text"`
	Expanded   map[string]string `json:"expanded"`
	Normalized map[string]string `json:"normalized,omitempty"`
}

type lexiconResponse struct {
	Word    string          `json:"word"`
	Entries []lexicon.Entry `json:"entries"`
}

type dictsResponse struct {
	Dictionaries []dict.DictInfo `json:"dictionaries"`
	Entries      int             `json:"entries"`
}

func (s *Service) expandWordEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*wordReq)
		if req.Word == "" {
			return nil, fmt.Errorf("word is empty")
		}
		res, ok := s.resolver.Resolve(req.Word)
		if !ok {
			return expandResponse{Word: req.Word, Expansion: req.Word}, nil
		}
		return expandResponse{Word: req.Word, Abbreviated: true, Expansion: res.Expansion, Source: res.Source}, nil
	}
}

func (s *Service) normalizeWordEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*wordReq)
		if s.normalizer == nil {
			return nil, ErrNoLexicon
		}
		if req.Word == "" {
			return nil, fmt.Errorf("word is empty")
		}
		out, rec := s.normalizer.Normalize(req.Word)
		return normalizeResponse{Word: req.Word, Normalized: out, Record: rec}, nil
	}
}

// normalizeTextEndpoint runs expansion, then optionally normalization, over
// a free-standing line of text with the same token rules as documents.
func (s *Service) normalizeTextEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*textReq)
		if req.Normalize && s.normalizer == nil {
			return nil, ErrNoLexicon
		}
		words := s.extractor.Words([]string{req.Text})
		resp := textResponse{Expanded: s.resolver.Mapping(words)}
		text := s.sub.ApplyString(req.Text, resp.Expanded)

		if req.Normalize {
			var candidates []string
			for _, w := range s.extractor.Words([]string{text}) {
				if !s.resolver.IsAbbreviated(w) {
					candidates = append(candidates, w)
				}
			}
			resp.Normalized, _ = s.normalizer.Mapping(candidates)
			text = s.sub.ApplyString(text, resp.Normalized)
		}
		resp.Text = text
		return resp, nil
	}
}

func (s *Service) lookupLexiconEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*wordReq)
		if s.lex == nil {
			return nil, ErrNoLexicon
		}
		entries := s.lex.LookupAll(req.Word)
		if entries == nil {
			entries = []lexicon.Entry{}
		}
		return lexiconResponse{Word: req.Word, Entries: entries}, nil
	}
}

func (s *Service) listDictsEndpoint() kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return dictsResponse{Dictionaries: s.reg.ListDicts(), Entries: s.reg.TotalEntries()}, nil
	}
}
