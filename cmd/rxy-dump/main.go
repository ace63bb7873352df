package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
	"github.com/robert-at-pretension-io/rxyfmt/internal/loader"
	"github.com/robert-at-pretension-io/rxyfmt/internal/pipeline"
)

func main() {
	output := flag.String("output", "", "write the dump to file (default: stdout)")
	flag.StringVar(output, "o", "", "write the dump to file (shorthand)")
	format := flag.String("format", "json", "dump format: json or yaml")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rxy-dump [--output file] [--format json|yaml] <file|archive.zip|-> ...")
		os.Exit(1)
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", *format)
		os.Exit(1)
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := diag.New(os.Stderr, *verbose)
	p, err := pipeline.NewFromConfig(cfg, log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var units []loader.Unit
	for _, arg := range args {
		if arg == "-" {
			u, err := loader.LoadReader("", os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			units = append(units, u)
			continue
		}
		loaded, err := loader.LoadFile(arg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		units = append(units, loaded...)
	}

	dumps := make([]*pipeline.Dump, 0, len(units))
	for _, u := range units {
		doc, err := p.Parse(context.Background(), u.Title, u.Text)
		if doc == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err != nil && !errors.Is(err, pipeline.ErrNoStructFound) &&
			!errors.Is(err, pipeline.ErrNoArrayFound) && !errors.Is(err, pipeline.ErrNoBoundPair) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		d := pipeline.NewDump(doc)
		if err := d.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", u.Title, err)
			os.Exit(1)
		}
		dumps = append(dumps, d)
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing dump: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := write(out, dumps, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding dump: %v\n", err)
		os.Exit(1)
	}
}

func write(w io.Writer, dumps []*pipeline.Dump, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(dumps)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dumps)
}
