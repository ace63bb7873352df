// Package pipeline runs one text unit through every stage: scan, decode,
// correlate, advise and format. Stages are timed and log to a per-unit
// child of the run's logger.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/correlator"
	"github.com/robert-at-pretension-io/rxyfmt/internal/decoder"
	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
	"github.com/robert-at-pretension-io/rxyfmt/internal/extractor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/formatter"
	"github.com/robert-at-pretension-io/rxyfmt/internal/policy"
	"github.com/robert-at-pretension-io/rxyfmt/internal/validator"
)

var (
	// ErrNoStructFound means the unit holds no struct-shaped region
	ErrNoStructFound = errors.New("no struct found")
	// ErrNoArrayFound means no array region passed decoding
	ErrNoArrayFound = errors.New("no valid descriptor array found")
	// ErrNoBoundPair means arrays and structs exist but none could be paired
	ErrNoBoundPair = errors.New("no array matches a struct")
)

// Document is one parsed text unit
type Document struct {
	Title      string
	Text       string
	Model      *descriptor.Model
	Advisories []policy.Advisory
	// Log holds only this unit's entries
	Log *diag.Logger
}

// Pipeline holds the stage implementations shared by every unit. It is
// safe for concurrent use.
type Pipeline struct {
	Extractor *extractor.Extractor
	// Policy is optional; nil disables advisories
	Policy *policy.Engine
	Log    *diag.Logger
	Timing *Timing
}

// New creates a pipeline with the Tree-sitter extractor and no policies
func New(log *diag.Logger) *Pipeline {
	if log == nil {
		log = diag.Discard()
	}
	return &Pipeline{Extractor: extractor.New(), Log: log}
}

// NewFromConfig creates a pipeline and loads the policy engine when cfg
// enables it
func NewFromConfig(cfg *config.Config, log *diag.Logger, timing *Timing) (*Pipeline, error) {
	p := New(log)
	p.Timing = timing
	if cfg != nil && cfg.Policy.Enabled {
		engine, err := policy.New(cfg.Policy.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading policies: %w", err)
		}
		p.Policy = engine
	}
	return p, nil
}

// Parse scans, decodes and correlates text. When nothing can be formatted
// the document is still returned, together with one of ErrNoStructFound,
// ErrNoArrayFound or ErrNoBoundPair, so its log can be reported.
func (p *Pipeline) Parse(ctx context.Context, title, text string) (*Document, error) {
	doc := &Document{
		Title: title,
		Text:  text,
		Model: &descriptor.Model{},
		Log:   p.Log.Child(),
	}
	log := doc.Log

	done := p.Timing.Begin(StageScan, title, len(text))
	scan, err := p.Extractor.Scan(ctx, []byte(text))
	done(err)
	if err != nil {
		log.Errorf(diag.CatScan, "%s: %v", title, err)
		return nil, fmt.Errorf("scanning %s: %w", title, err)
	}
	log.Infof(diag.CatScan, "%s: %d struct(s), %d array(s), %d comment(s)",
		title, len(scan.Structs), len(scan.Arrays), len(scan.Comments))

	done = p.Timing.Begin(StageDecode, title, len(text))
	err = p.decode(doc, scan)
	done(err)
	if err != nil {
		return doc, err
	}

	done = p.Timing.Begin(StageCorrelate, title, len(text))
	pairErr := p.correlate(doc)
	done(pairErr)

	// Advisories explain failed pairings too
	if p.Policy != nil {
		done = p.Timing.Begin(StageAdvise, title, len(text))
		err = p.advise(ctx, doc)
		done(err)
		if err != nil {
			return nil, err
		}
	}
	return doc, pairErr
}

func (p *Pipeline) decode(doc *Document, scan *extractor.Scan) error {
	log := doc.Log
	m := doc.Model

	for _, r := range scan.Structs {
		s := extractor.BuildStruct(r)
		if s.Opaque {
			log.Debugf(diag.CatDecode, "%s is opaque and will not be bound", s.Label())
		}
		m.Structs = append(m.Structs, s)
	}
	if len(m.Structs) == 0 {
		log.Warnf(diag.CatScan, "%s: %v", doc.Title, ErrNoStructFound)
		return ErrNoStructFound
	}

	for _, r := range scan.Arrays {
		a, err := decoder.Decode(r)
		if err != nil {
			log.Debugf(diag.CatDecode, "array %s rejected: %v", r.Name, err)
			continue
		}
		log.Debugf(diag.CatDecode, "array %s: %d element(s), %d input and %d output byte(s)",
			a.Name, len(a.Elements), a.Header.TotalInputBytes, a.Header.TotalOutputBytes)
		m.Arrays = append(m.Arrays, a)
	}
	if len(m.Arrays) == 0 {
		log.Warnf(diag.CatDecode, "%s: %v", doc.Title, ErrNoArrayFound)
		return ErrNoArrayFound
	}
	return nil
}

func (p *Pipeline) correlate(doc *Document) error {
	log := doc.Log
	m := doc.Model

	res := correlator.Correlate(m.Structs, m.Arrays)
	for _, f := range res.Failed {
		log.Debugf(diag.CatCorrelate, "%s with %s: %v", m.Arrays[f.Array].Name, m.Structs[f.Struct].Label(), f.Err)
	}
	for _, i := range res.Unbound {
		a := m.Arrays[i]
		log.Warnf(diag.CatCorrelate, "no struct matches %s (%d bytes needed)", a.Name, a.Header.PairSize())
	}
	for _, pr := range res.Pairs {
		log.Infof(diag.CatCorrelate, "%s bound to %s", pr.Array.Name, pr.Struct.Label())
	}
	m.Pairs = res.Pairs
	if len(m.Pairs) == 0 {
		log.Warnf(diag.CatCorrelate, "%s: %v", doc.Title, ErrNoBoundPair)
		return ErrNoBoundPair
	}
	return nil
}

func (p *Pipeline) advise(ctx context.Context, doc *Document) error {
	advisories, err := p.Policy.Evaluate(ctx, doc.Model)
	if err != nil {
		doc.Log.Errorf(diag.CatPolicy, "%s: %v", doc.Title, err)
		return fmt.Errorf("advising %s: %w", doc.Title, err)
	}
	for _, a := range advisories {
		if a.Severity == "warning" {
			doc.Log.Warnf(diag.CatPolicy, "%s: %s", a.Rule, a.Message)
		} else {
			doc.Log.Infof(diag.CatPolicy, "%s: %s", a.Rule, a.Message)
		}
	}
	doc.Advisories = advisories
	return nil
}

// Format renders a parsed document under cfg
func (p *Pipeline) Format(doc *Document, cfg *config.Config) (*formatter.Result, error) {
	if doc == nil || doc.Model == nil || len(doc.Model.Pairs) == 0 {
		return nil, ErrNoBoundPair
	}
	done := p.Timing.Begin(StageFormat, doc.Title, len(doc.Text))
	res := formatter.New(cfg, doc.Log).Format(doc.Text, doc.Model)
	done(nil)
	doc.Log.Infof(diag.CatFormat, "%s: %d pair(s) formatted", doc.Title, res.Pairs)
	return res, nil
}

// Process parses and formats one unit
func (p *Pipeline) Process(ctx context.Context, title, text string, cfg *config.Config) (*Document, *formatter.Result, error) {
	doc, err := p.Parse(ctx, title, text)
	if err != nil {
		return doc, nil, err
	}
	res, err := p.Format(doc, cfg)
	return doc, res, err
}

// Dump is the diagnostic view of one document
type Dump struct {
	Title      string                  `json:"title" yaml:"title"`
	Pairs      []*descriptor.BoundPair `json:"pairs" yaml:"pairs"`
	Advisories []policy.Advisory       `json:"advisories" yaml:"advisories"`
	Log        []diag.Entry            `json:"log" yaml:"log"`
}

// NewDump snapshots a document. doc may come from a failed Parse.
func NewDump(doc *Document) *Dump {
	d := &Dump{
		Title:      doc.Title,
		Pairs:      []*descriptor.BoundPair{},
		Advisories: []policy.Advisory{},
		Log:        []diag.Entry{},
	}
	if m := doc.Model.Clone(); m != nil && m.Pairs != nil {
		d.Pairs = m.Pairs
	}
	if doc.Advisories != nil {
		d.Advisories = doc.Advisories
	}
	if doc.Log != nil {
		d.Log = append(d.Log, doc.Log.Entries()...)
	}
	return d
}

// Validate checks the dump against the dump schema
func (d *Dump) Validate() error {
	v, err := validator.NewDumpValidator()
	if err != nil {
		return err
	}
	return v.Validate(d)
}
