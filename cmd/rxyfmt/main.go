// =============================================================================
// rxyfmt - Main Entry Point
// =============================================================================
//
// rxyfmt reformats the RemoteXY descriptor embedded in Arduino sources: the
// uint8_t configuration array the RemoteXY editor generates and the struct
// that holds its values.
//
// THE PIPELINE:
//   1. Tree-sitter finds comments, a small lexer finds struct/array regions
//   2. Decoder validates the array header and decodes every element
//   3. Correlator binds each array to the struct whose fields match it
//   4. OPA evaluates advisory policies over the decoded model
//   5. Formatter renders both blocks and rewrites field references
//
// A unit that has nothing to format is passed through unchanged.
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/rxyfmt/internal/cache"
	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
	"github.com/robert-at-pretension-io/rxyfmt/internal/formatter"
	"github.com/robert-at-pretension-io/rxyfmt/internal/loader"
	"github.com/robert-at-pretension-io/rxyfmt/internal/pipeline"
)

type options struct {
	configPath string
	verbose    bool
	write      bool
	diff       bool
	list       bool
	dump       string
	parallel   int
	timing     bool
	timingFile string
	title      string
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			runInit(os.Args[2:])
			return
		case "watch":
			os.Exit(runWatch(os.Args[2:]))
		case "help":
			printUsage()
			return
		}
	}
	os.Exit(runFormat(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: rxyfmt [options] [path ...]
       rxyfmt init [-format json|yaml|toml]
       rxyfmt watch [options] <dir>

Paths may be source files, directories or zip archives. Without a path
rxyfmt reads standard input and writes the result to standard output.

Options:
  -c <file>         Use this config file instead of searching for one
  -v                Verbose output (decoder and correlator detail)
  -w                Write results back to their source files
  -d                Print a unified diff instead of the formatted text
  -l                List units whose formatting differs
  -dump json|yaml   Print the decoded model, advisories and log
  -j <n>            Units processed in parallel (default: number of CPUs)
  -timing           Record stage timings to rxyfmt-timing.jsonl
  -timing-file <f>  Record stage timings to f
  -title <name>     Title of text read from standard input

Configuration:
  rxyfmt looks for configuration in:
    1. ./rxyfmt.{json,yaml,yml,toml} or ./.rxyfmt.{json,yaml,yml,toml}
    2. the same names in the first path argument, if it is a directory
    3. ~/.config/rxyfmt/config.{json,yaml,toml}

  Run 'rxyfmt init' to create a default configuration file.`)
}

func newFlagSet(name string, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = printUsage
	fs.StringVar(&opts.configPath, "c", "", "config file")
	fs.BoolVar(&opts.verbose, "v", false, "verbose output")
	fs.IntVar(&opts.parallel, "j", 0, "units processed in parallel")
	fs.BoolVar(&opts.timing, "timing", false, "record stage timings")
	fs.StringVar(&opts.timingFile, "timing-file", "", "timing JSONL path")
	return fs
}

func loadConfig(opts *options, root string) (*config.Config, error) {
	if opts.configPath != "" {
		cfg, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", opts.configPath, err)
		}
		return cfg, nil
	}
	return config.Load(root)
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	format := fs.String("format", "json", "config format: json, yaml or toml")
	_ = fs.Parse(args)

	var configPath string
	switch *format {
	case "json", "toml":
		configPath = "rxyfmt." + *format
	case "yaml", "yml":
		configPath = "rxyfmt.yaml"
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config format %q\n", *format)
		os.Exit(1)
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Indentation, braces and line endings")
	fmt.Println("  - Array layout and element comments")
	fmt.Println("  - Struct field typing and pin renaming")
}

// outcome is the result of one unit, printed in input order
type outcome struct {
	unit   loader.Unit
	doc    *pipeline.Document
	result *formatter.Result
	err    error
	// cached units were skipped as already formatted
	cached bool
}

func (o *outcome) changed() bool {
	return o.result != nil && o.result.Text != o.unit.Text
}

// output is the text the unit formats to; units with nothing to format
// pass through unchanged
func (o *outcome) output() string {
	if o.result == nil {
		return o.unit.Text
	}
	return o.result.Text
}

func runFormat(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &options{}
	fs := newFlagSet("rxyfmt", opts)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.write, "w", false, "write results to source files")
	fs.BoolVar(&opts.diff, "d", false, "print diffs")
	fs.BoolVar(&opts.list, "l", false, "list changed units")
	fs.StringVar(&opts.dump, "dump", "", "dump format: json or yaml")
	fs.StringVar(&opts.title, "title", "", "title of standard input (default: \""+loader.TitlePasted+"\" on a terminal, \""+loader.TitleDropped+"\" otherwise)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.dump != "" && opts.dump != "json" && opts.dump != "yaml" {
		fmt.Fprintf(stderr, "Error: unknown dump format %q\n", opts.dump)
		return 2
	}

	start := time.Now()
	log := diag.New(stderr, opts.verbose)
	paths := fs.Args()

	root := "."
	if len(paths) > 0 {
		root = paths[0]
	}
	cfg, err := loadConfig(opts, root)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	timing := pipeline.NewTiming(start, pipeline.ResolveTimingPath(opts.timingFile, opts.timing))
	defer timing.Close()
	if err := timing.Err(); err != nil {
		log.Warnf(diag.CatIO, "timing disabled: %v", err)
	}

	p, err := pipeline.NewFromConfig(cfg, log, timing)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	code := 0
	units, err := collectUnits(ctx, cfg, paths, opts, stdin, log)
	if errors.Is(err, loader.ErrSkipped) {
		code = 1
	} else if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(units) == 0 {
		log.Warnf(diag.CatIO, "no source files found")
		return code
	}

	fc := openCache(cfg, root, opts, log)

	outcomes := make([]*outcome, len(units))
	g, gctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}
	for i, u := range units {
		g.Go(func() error {
			if fc != nil && u.Writable() && fc.Formatted(u.Path, u.Text) {
				outcomes[i] = &outcome{unit: u, cached: true}
				return nil
			}
			doc, res, err := p.Process(gctx, u.Title, u.Text, cfg)
			outcomes[i] = &outcome{unit: u, doc: doc, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	cached := 0
	for _, o := range outcomes {
		if o.cached {
			cached++
		}
		if o.err != nil && !skippable(o.err) {
			log.Errorf(diag.CatIO, "%s: %v", o.unit.Title, o.err)
			code = 1
			continue
		}
		if err := report(o, opts, stdout); err != nil {
			log.Errorf(diag.CatIO, "%s: %v", o.unit.Title, err)
			code = 1
			continue
		}
		if fc != nil && o.unit.Writable() && !o.cached {
			if !o.changed() {
				fc.Put(o.unit.Path, o.unit.Text)
			} else if opts.write {
				fc.Put(o.unit.Path, o.result.Text)
			}
		}
	}
	if fc != nil {
		log.Infof(diag.CatIO, "%d of %d unit(s) already formatted", cached, len(outcomes))
		if err := fc.Save(); err != nil {
			log.Warnf(diag.CatIO, "cache not saved: %v", err)
		}
	}

	timing.Finish(code != 0)
	for _, sum := range timing.Sums() {
		log.Infof(diag.CatIO, "timing: %-9s %d unit(s), %d failed, %s", sum.Stage, sum.Units, sum.Failed, sum.Duration)
	}
	return code
}

// openCache returns the formatted-file cache, or nil when it is disabled
// or the run only inspects units
func openCache(cfg *config.Config, root string, opts *options, log *diag.Logger) *cache.Cache {
	if !cfg.Cache.Enabled || opts.dump != "" {
		return nil
	}
	fc, err := cache.New(cfg.ResolveCacheDir(root), cfg)
	if err != nil {
		log.Warnf(diag.CatIO, "cache disabled: %v", err)
		return nil
	}
	if err := fc.Load(); err != nil {
		log.Warnf(diag.CatIO, "cache reset: %v", err)
	}
	return fc
}

// skippable reports whether err only means there was nothing to format
func skippable(err error) bool {
	return errors.Is(err, pipeline.ErrNoStructFound) ||
		errors.Is(err, pipeline.ErrNoArrayFound) ||
		errors.Is(err, pipeline.ErrNoBoundPair)
}

// collectUnits expands the path arguments into text units
func collectUnits(ctx context.Context, cfg *config.Config, paths []string, opts *options, stdin io.Reader, log *diag.Logger) ([]loader.Unit, error) {
	if len(paths) == 0 {
		u, err := loader.LoadReader(opts.title, stdin)
		if err != nil {
			return nil, err
		}
		return []loader.Unit{u}, nil
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := cfg.ResolveInputs(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return loader.LoadAll(ctx, files, opts.parallel, log)
}

// report prints or writes one outcome according to the output flags
func report(o *outcome, opts *options, stdout io.Writer) error {
	if opts.dump != "" {
		if o.doc == nil {
			return nil
		}
		return writeDump(stdout, pipeline.NewDump(o.doc), opts.dump)
	}

	if opts.list && o.changed() {
		fmt.Fprintln(stdout, o.unit.Title)
	}
	if opts.diff && o.changed() {
		d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(o.unit.Text),
			B:        difflib.SplitLines(o.result.Text),
			FromFile: o.unit.Title + ".orig",
			ToFile:   o.unit.Title,
			Context:  3,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, d)
	}
	if opts.write {
		if !o.changed() {
			return nil
		}
		if !o.unit.Writable() {
			return fmt.Errorf("cannot write back to %s", o.unit.Title)
		}
		return writeFile(o.unit.Path, o.result.Text)
	}
	if !opts.list && !opts.diff {
		fmt.Fprint(stdout, o.output())
	}
	return nil
}

func writeDump(w io.Writer, d *pipeline.Dump, format string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(d)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// writeFile replaces path's content, keeping its permissions
func writeFile(path, text string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".rxyfmt-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
