// Package main provides the pagenorm CLI: abbreviation expansion and
// spelling normalization for PAGE-XML transcriptions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pagenorm/pkg/abbrev"
	"github.com/hazyhaar/pagenorm/pkg/api"
	"github.com/hazyhaar/pagenorm/pkg/audit"
	"github.com/hazyhaar/pagenorm/pkg/config"
	"github.com/hazyhaar/pagenorm/pkg/dict"
	"github.com/hazyhaar/pagenorm/pkg/extract"
	"github.com/hazyhaar/pagenorm/pkg/lexicon"
	"github.com/hazyhaar/pagenorm/pkg/mcpio"
	"github.com/hazyhaar/pagenorm/pkg/pagexml"
	"github.com/hazyhaar/pagenorm/pkg/pipeline"
	"github.com/hazyhaar/pagenorm/pkg/rules"
)

var version = "dev"

// CLI defines the command-line interface using Kong
var CLI struct {
	Config  string `name:"config" short:"c" default:"config.yaml" help:"Config file (.yaml or .toml)" type:"path"`
	Verbose bool   `name:"verbose" short:"v" help:"Debug logging"`

	Run       RunCmd       `cmd:"" help:"Expand abbreviations, then normalize spelling"`
	Expand    ExpandCmd    `cmd:"" help:"Expand abbreviations only"`
	Normalize NormalizeCmd `cmd:"" help:"Normalize the spelling of already expanded documents"`
	Inspect   InspectCmd   `cmd:"" help:"Show the region/line outline and candidate words of a document"`
	Lexicon   LexiconCmd   `cmd:"" help:"Lexicon maintenance"`
	Dict      DictCmd      `cmd:"" help:"Dictionary maintenance"`
	MCP       MCPCmd       `cmd:"" name:"mcp" help:"Serve word-level tools over MCP on stdin/stdout"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// app carries what every command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pagenorm"),
		kong.Description("Abbreviation expansion and spelling normalization for PAGE-XML transcriptions."),
		kong.UsageOnError(),
	)

	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load(CLI.Config, bootstrap)
	ctx.FatalIfErrorf(err)

	logger, err := newLogger(cfg.Log, CLI.Verbose)
	ctx.FatalIfErrorf(err)
	slog.SetDefault(logger)

	ctx.FatalIfErrorf(ctx.Run(&app{cfg: cfg, logger: logger}))
}

func newLogger(c config.Log, verbose bool) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// RunCmd runs both stages.
type RunCmd struct {
	Dirs []string `arg:"" optional:"" help:"Input directories (default: inputs from config)" type:"path"`
}

func (c *RunCmd) Run(a *app) error {
	return a.process(c.Dirs, a.cfg.InputStage, pipeline.StageExpand, pipeline.StageNormalize)
}

// ExpandCmd runs the expansion stage.
type ExpandCmd struct {
	Dirs []string `arg:"" optional:"" help:"Input directories (default: inputs from config)" type:"path"`
}

func (c *ExpandCmd) Run(a *app) error {
	return a.process(c.Dirs, a.cfg.InputStage, pipeline.StageExpand)
}

// NormalizeCmd runs the normalization stage over the output of a previous
// expansion: each input directory is mapped to its expanded sibling.
type NormalizeCmd struct {
	Dirs []string `arg:"" optional:"" help:"Input directories (default: inputs from config)" type:"path"`
}

func (c *NormalizeCmd) Run(a *app) error {
	dirs := c.Dirs
	if len(dirs) == 0 {
		dirs = a.cfg.Inputs
	}
	mapped := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out, err := pipeline.StageDir(d, a.cfg.InputStage, string(pipeline.StageExpand))
		if err != nil {
			return err
		}
		mapped = append(mapped, out)
	}
	return a.process(mapped, string(pipeline.StageExpand), pipeline.StageNormalize)
}

func (a *app) process(dirs []string, inputStage string, stages ...pipeline.Stage) error {
	if len(dirs) == 0 {
		dirs = a.cfg.Inputs
	}
	if len(dirs) == 0 {
		return errors.New("no input directories: pass them as arguments or set inputs in the config")
	}

	rs, err := a.rules()
	if err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		InputStage: inputStage,
		Rules:      rs,
		Domain:     reg.Tier(dict.TierDomain),
		General:    reg.Tier(dict.TierGeneral),
		Logger:     a.logger,
	}
	for _, st := range stages {
		switch st {
		case pipeline.StageExpand:
			opts.Log = abbrev.NewLog()
			opts.LogPath = a.cfg.AbbreviationLog
		case pipeline.StageNormalize:
			lex, err := a.lexicon()
			if err != nil {
				return err
			}
			opts.Lexicon = lex
		}
	}
	if a.cfg.AuditDB != "" {
		store, err := audit.Open(a.cfg.AuditDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Audit = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rep, err := pipeline.New(opts).Run(ctx, dirs, stages...)
	if err != nil {
		return err
	}
	fmt.Printf("%d documents, %d words: %d expanded, %d normalized, %d without lexicon entry (%s)\n",
		rep.Documents, rep.Words, rep.Expanded, rep.Normalized, rep.Skipped, time.Since(start).Round(time.Millisecond))
	if rep.RunID != "" {
		fmt.Printf("run %s recorded in %s\n", rep.RunID, a.cfg.AuditDB)
	}
	return nil
}

func (a *app) rules() (*rules.RuleSet, error) {
	if a.cfg.Rules == "" {
		return rules.Default(), nil
	}
	return rules.Load(a.cfg.Rules)
}

// registry loads the dictionaries directory, when present, plus the
// single-file domain and general dictionaries named in the config.
func (a *app) registry() (*dict.Registry, error) {
	dir := a.cfg.DictsDir
	if dir != "" {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("no dictionaries directory", "path", dir)
			dir = ""
		}
	}
	reg := dict.NewRegistry(dir)
	if p := a.cfg.DomainDictionary; p != "" {
		reg.AddFile(p, dict.TierDomain)
	}
	if p := a.cfg.GeneralDictionary; p != "" {
		reg.AddFile(p, dict.TierGeneral)
	}
	if err := reg.Load(); err != nil {
		return nil, err
	}
	a.logger.Info("dictionaries loaded", "count", reg.DictCount(), "entries", reg.TotalEntries())
	return reg, nil
}

func (a *app) lexiconOptions() lexicon.Options {
	l := a.cfg.Lexicon
	return lexicon.Options{
		Path:     l.Path,
		Cache:    l.Cache,
		Encoding: l.Encoding,
		Columns: lexicon.Columns{
			WordForm:   l.Columns.WordForm,
			Superlemma: l.Columns.Superlemma,
			Lemma:      l.Columns.Lemma,
		},
		Logger: a.logger,
	}
}

func (a *app) lexicon() (*lexicon.Table, error) {
	t, err := lexicon.Open(a.lexiconOptions())
	if err != nil {
		return nil, err
	}
	a.logger.Info("lexicon loaded", "forms", t.Len(), "skipped", t.Skipped())
	return t, nil
}

// InspectCmd prints a document outline.
type InspectCmd struct {
	File string `arg:"" help:"PAGE-XML document" type:"existingfile"`
}

type inspectOutput struct {
	*pagexml.Outline
	Lines       int      `json:"lines"`
	Words       []string `json:"words"`
	Abbreviated []string `json:"abbreviated"`
}

func (c *InspectCmd) Run(a *app) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	outline, err := pagexml.ReadOutline(data)
	if err != nil {
		return err
	}
	doc, err := pagexml.Parse(data)
	if err != nil {
		return err
	}
	rs, err := a.rules()
	if err != nil {
		return err
	}

	out := inspectOutput{Outline: outline, Lines: outline.LineCount(), Abbreviated: []string{}}
	out.Words = extract.New(rs).FromDocument(doc)
	for _, w := range out.Words {
		if rs.IsAbbreviated(w) {
			out.Abbreviated = append(out.Abbreviated, w)
		}
	}
	return writeJSON(out)
}

// LexiconCmd groups lexicon subcommands.
type LexiconCmd struct {
	Cache LexiconCacheCmd `cmd:"" help:"Build the compressed lexicon cache"`
}

// LexiconCacheCmd always rebuilds from the source table.
type LexiconCacheCmd struct {
	Out string `name:"out" short:"o" help:"Cache path (default: lexicon.cache from config)" type:"path"`
}

func (c *LexiconCacheCmd) Run(a *app) error {
	out := c.Out
	if out == "" {
		out = a.cfg.Lexicon.Cache
	}
	if out == "" {
		return errors.New("no cache path: pass --out or set lexicon.cache in the config")
	}
	t, err := lexicon.Load(a.lexiconOptions())
	if err != nil {
		return err
	}
	if err := t.SaveCache(out); err != nil {
		return err
	}
	fmt.Printf("%d word-forms written to %s (%d rows skipped)\n", t.Len(), out, t.Skipped())
	return nil
}

// DictCmd groups dictionary subcommands.
type DictCmd struct {
	List   DictListCmd   `cmd:"" help:"List loaded dictionaries"`
	Import DictImportCmd `cmd:"" help:"Turn a saved abbreviation log into a dictionary"`
}

type DictListCmd struct{}

func (c *DictListCmd) Run(a *app) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}
	dicts := reg.ListDicts()
	if len(dicts) == 0 {
		fmt.Println("No dictionaries loaded.")
		return nil
	}
	for _, d := range dicts {
		fmt.Printf("  %-25s  %-8s  %8d entries  %s\n", d.ID, d.Tier, d.Entries, d.Source)
	}
	return nil
}

// DictImportCmd feeds the expansions of a previous run back in as a
// dictionary directory (manifest.yaml + data.gob).
type DictImportCmd struct {
	From   string `name:"from" help:"Abbreviation log (default: abbreviation_log from config)" type:"path"`
	ID     string `name:"id" required:"" help:"Dictionary id"`
	Tier   string `name:"tier" default:"domain" enum:"domain,general" help:"Lookup tier"`
	Out    string `name:"out" help:"Output directory (default: <dicts_dir>/<id>)" type:"path"`
	Source string `name:"source" default:"abbreviation log" help:"Provenance recorded in the manifest"`
}

func (c *DictImportCmd) Run(a *app) error {
	from := c.From
	if from == "" {
		from = a.cfg.AbbreviationLog
	}
	log, err := abbrev.LoadLog(from)
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		if a.cfg.DictsDir == "" {
			return errors.New("no output directory: pass --out or set dicts_dir in the config")
		}
		out = filepath.Join(a.cfg.DictsDir, c.ID)
	}

	m := &dict.Manifest{
		ID:       c.ID,
		Version:  time.Now().UTC().Format("2006-01-02"),
		Tier:     c.Tier,
		Source:   c.Source,
		Format:   dict.FormatSpec{Normalize: "nfc"},
		DataFile: "data.gob",
	}
	d := dict.New(m, log.Snapshot())
	if err := dict.Build(out, d); err != nil {
		return err
	}
	a.logger.Info("dictionary built", "id", c.ID, "tier", c.Tier, "entries", len(d.Entries), "dir", out)
	fmt.Printf("%d entries written to %s\n", len(d.Entries), out)
	return nil
}

// MCPCmd serves the word-level tools on stdin/stdout until stdin closes.
// SIGHUP reloads the dictionaries.
type MCPCmd struct {
	NoLexicon bool `name:"no-lexicon" help:"Start without the lexicon (normalization tools disabled)"`
}

func (c *MCPCmd) Run(a *app) error {
	rs, err := a.rules()
	if err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}
	var lex api.Lexicon
	if !c.NoLexicon {
		t, err := a.lexicon()
		if err != nil {
			return err
		}
		lex = t
	}

	srv := server.NewMCPServer("pagenorm", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, api.NewService(reg, rs, lex, a.logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go reloadOnSignal(ctx, sighup, reg, a.logger)

	err = mcpio.Serve(ctx, srv, os.Stdin, os.Stdout, "mcp_stdio", a.logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reloadOnSignal reloads reg on every value received from sig until ctx
// is done.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, reg *dict.Registry, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			logger.Info("SIGHUP received, reloading dictionaries")
			if err := reg.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			logger.Info("dictionaries reloaded", "count", reg.DictCount(), "entries", reg.TotalEntries())
		}
	}
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("pagenorm %s\n", version)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
