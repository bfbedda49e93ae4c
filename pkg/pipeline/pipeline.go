// Package pipeline runs the expansion and normalization stages over
// directories of PAGE-XML documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/pagenorm/pkg/abbrev"
	"github.com/hazyhaar/pagenorm/pkg/audit"
	"github.com/hazyhaar/pagenorm/pkg/extract"
	"github.com/hazyhaar/pagenorm/pkg/morph"
	"github.com/hazyhaar/pagenorm/pkg/pagexml"
	"github.com/hazyhaar/pagenorm/pkg/rules"
	"github.com/hazyhaar/pagenorm/pkg/substitute"
)

// ErrNoStageSegment is returned when a document path has no directory
// named after the input stage.
var ErrNoStageSegment = errors.New("path has no stage segment")

// Stage is a processing step. Its value names the output directory segment.
type Stage string

const (
	StageExpand    Stage = "expanded"
	StageNormalize Stage = "normalized"
)

// ParseStage maps a stage name to a Stage.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageExpand, StageNormalize:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Options wires a Runner. Domain, General, Lexicon, Log, Audit and Logger
// may be nil.
type Options struct {
	InputStage string
	Rules      *rules.RuleSet
	Domain     abbrev.Lookuper
	General    abbrev.Lookuper
	Lexicon    morph.Lookuper
	Log        *abbrev.Log
	LogPath    string
	Audit      *audit.Store
	Logger     *slog.Logger
}

// Report summarizes a run.
type Report struct {
	RunID      string `json:"run_id,omitempty"`
	Documents  int    `json:"documents"`
	Words      int    `json:"words"`
	Expanded   int    `json:"expanded"`
	Normalized int    `json:"normalized"`
	Skipped    int    `json:"skipped"`
}

// Runner processes documents one at a time. The rule set, dictionaries and
// lexicon are shared read-only; only the abbreviation log is mutated.
type Runner struct {
	opts       Options
	extractor  *extract.Extractor
	resolver   *abbrev.Resolver
	normalizer *morph.Normalizer
	sub        *substitute.Substitutor
	logger     *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Rules == nil {
		opts.Rules = rules.Default()
	}
	if opts.InputStage == "" {
		opts.InputStage = "base"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		opts:      opts,
		extractor: extract.New(opts.Rules),
		resolver:  abbrev.NewResolver(opts.Rules, opts.Domain, opts.General, opts.Log).WithLogger(logger),
		sub:       substitute.New(opts.Rules),
		logger:    logger,
	}
	if opts.Lexicon != nil {
		r.normalizer = morph.New(opts.Rules, opts.Lexicon, logger)
	}
	return r
}

// Run processes every regular file of every dir through stages, in order.
// A missing directory or unreadable document aborts the run.
func (r *Runner) Run(ctx context.Context, dirs []string, stages ...Stage) (*Report, error) {
	if len(stages) == 0 {
		return nil, errors.New("no stages requested")
	}
	for _, st := range stages {
		if _, err := ParseStage(string(st)); err != nil {
			return nil, err
		}
		if string(st) == r.opts.InputStage {
			return nil, fmt.Errorf("stage %q would overwrite its input", st)
		}
		if st == StageNormalize && r.normalizer == nil {
			return nil, errors.New("normalize stage requires a lexicon")
		}
	}

	rep := &Report{}
	if r.opts.Audit != nil {
		names := make([]string, len(stages))
		for i, st := range stages {
			names[i] = string(st)
		}
		id, err := r.opts.Audit.BeginRun(ctx, names)
		if err != nil {
			return nil, err
		}
		rep.RunID = id
	}

	err := r.run(ctx, dirs, stages, rep)

	if r.opts.Log != nil && r.opts.LogPath != "" && hasStage(stages, StageExpand) {
		if serr := r.opts.Log.Save(r.opts.LogPath); serr != nil {
			err = errors.Join(err, fmt.Errorf("save abbreviation log: %w", serr))
		} else {
			r.logger.Info("abbreviation log saved", "path", r.opts.LogPath, "entries", r.opts.Log.Len())
		}
	}
	if r.opts.Audit != nil {
		if ferr := r.opts.Audit.FinishRun(context.WithoutCancel(ctx), rep.RunID, rep.Documents, err); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	if err != nil {
		return rep, err
	}
	r.logger.Info("run complete",
		"documents", rep.Documents, "words", rep.Words,
		"expanded", rep.Expanded, "normalized", rep.Normalized, "skipped", rep.Skipped)
	return rep, nil
}

func (r *Runner) run(ctx context.Context, dirs []string, stages []Stage, rep *Report) error {
	for _, dir := range dirs {
		paths, err := Discover(dir)
		if err != nil {
			return err
		}
		r.logger.Info("processing directory", "dir", dir, "documents", len(paths))
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.processFile(ctx, path, stages, rep); err != nil {
				return err
			}
			rep.Documents++
		}
	}
	return nil
}

// Discover lists the regular files of dir sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func (r *Runner) processFile(ctx context.Context, path string, stages []Stage, rep *Report) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := pagexml.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	inHash := ""
	if r.opts.Audit != nil {
		inHash = audit.Hash(data)
	}
	for i, st := range stages {
		words, replaced, err := r.apply(ctx, st, doc, rep)
		if err != nil {
			return fmt.Errorf("%s %s: %w", st, path, err)
		}
		if i == 0 {
			rep.Words += words
		}

		out, err := StagePath(path, r.opts.InputStage, string(st))
		if err != nil {
			return err
		}
		rendered := doc.Render()
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, rendered, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		r.logger.Debug("document written", "stage", st, "path", out, "words", words, "replaced", replaced)

		if r.opts.Audit != nil {
			if err := r.opts.Audit.RecordDocument(ctx, rep.RunID, audit.Document{
				Path:       path,
				Stage:      string(st),
				OutputPath: out,
				InputHash:  inHash,
				OutputHash: audit.Hash(rendered),
				Words:      words,
				Replaced:   replaced,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply runs one stage over doc and returns the number of distinct words
// extracted and the number of tokens replaced.
func (r *Runner) apply(ctx context.Context, st Stage, doc *pagexml.Document, rep *Report) (int, int, error) {
	words := r.extractor.FromDocument(doc)

	switch st {
	case StageExpand:
		mapping := make(map[string]string)
		var resolved []abbrev.Resolution
		for _, w := range words {
			res, ok := r.resolver.Resolve(w)
			if !ok {
				continue
			}
			resolved = append(resolved, res)
			if res.Expansion != w {
				mapping[w] = res.Expansion
			}
		}
		n := r.sub.Apply(doc, mapping)
		rep.Expanded += n
		if r.opts.Audit != nil {
			if err := r.opts.Audit.RecordAbbreviations(ctx, rep.RunID, resolved); err != nil {
				return 0, 0, err
			}
		}
		return len(words), n, nil

	case StageNormalize:
		candidates := words[:0:0]
		for _, w := range words {
			if !r.opts.Rules.IsAbbreviated(w) {
				candidates = append(candidates, w)
			}
		}
		mapping, recs := r.normalizer.Mapping(candidates)
		n := r.sub.Apply(doc, mapping)
		rep.Normalized += n
		rep.Skipped += len(candidates) - len(recs)
		if r.opts.Audit != nil {
			if err := r.opts.Audit.RecordNormalizations(ctx, rep.RunID, recs); err != nil {
				return 0, 0, err
			}
		}
		return len(words), n, nil
	}
	return 0, 0, fmt.Errorf("unknown stage %q", st)
}

// StagePath maps a document path to its output path for stage to by
// replacing the last directory segment equal to from.
func StagePath(path, from, to string) (string, error) {
	sep := string(filepath.Separator)
	parts := strings.Split(filepath.Clean(path), sep)
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == from {
			parts[i] = to
			return strings.Join(parts, sep), nil
		}
	}
	return "", fmt.Errorf("%s: %w %q", path, ErrNoStageSegment, from)
}

// StageDir maps an input directory to the directory of stage to.
func StageDir(dir, from, to string) (string, error) {
	out, err := StagePath(filepath.Join(dir, "_"), from, to)
	if err != nil {
		return "", fmt.Errorf("%s: %w %q", dir, ErrNoStageSegment, from)
	}
	return filepath.Dir(out), nil
}

func hasStage(stages []Stage, st Stage) bool {
	for _, s := range stages {
		if s == st {
			return true
		}
	}
	return false
}
