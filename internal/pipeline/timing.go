package pipeline

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// Stage names a timed step of a run
type Stage string

const (
	StageScan      Stage = "scan"
	StageDecode    Stage = "decode"
	StageCorrelate Stage = "correlate"
	StageAdvise    Stage = "advise"
	StageFormat    Stage = "format"
	StageTotal     Stage = "total"
)

// Span is one JSONL record. Unit is the text unit's title; it is empty
// for StageTotal, which covers the whole run.
type Span struct {
	Stage      Stage   `json:"stage"`
	Unit       string  `json:"unit,omitempty"`
	Bytes      int     `json:"bytes,omitempty"`
	Status     string  `json:"status"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
}

// StageSum totals the unit spans of one stage
type StageSum struct {
	Stage    Stage
	Units    int
	Failed   int
	Duration time.Duration
}

// Timing writes spans as JSON lines. A nil recorder, or one whose file
// could not be created, ignores every call.
type Timing struct {
	origin time.Time
	mu     sync.Mutex
	spans  []Span
	file   *os.File
	enc    *json.Encoder
	err    error
}

// NewTiming creates a recorder writing to path, measuring offsets from
// origin. An empty path returns nil.
func NewTiming(origin time.Time, path string) *Timing {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return &Timing{err: err}
	}
	return &Timing{origin: origin, file: f, enc: json.NewEncoder(f)}
}

func (tr *Timing) Enabled() bool {
	return tr != nil && tr.file != nil
}

func (tr *Timing) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *Timing) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

// Begin starts a span of stage over a unit of size bytes. Calling the
// returned func ends it; a non-nil error marks the span failed.
func (tr *Timing) Begin(stage Stage, unit string, size int) func(error) {
	if !tr.Enabled() {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		tr.add(Span{
			Stage:      stage,
			Unit:       unit,
			Bytes:      size,
			Status:     status(err),
			StartMS:    millis(start.Sub(tr.origin)),
			DurationMS: millis(time.Since(start)),
		})
	}
}

// Finish records StageTotal from origin until now
func (tr *Timing) Finish(failed bool) {
	if !tr.Enabled() {
		return
	}
	s := Span{Stage: StageTotal, Status: "ok", DurationMS: millis(time.Since(tr.origin))}
	if failed {
		s.Status = "error"
	}
	tr.add(s)
}

func (tr *Timing) add(s Span) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.spans = append(tr.spans, s)
	_ = tr.enc.Encode(s)
}

// Spans returns a copy of everything recorded so far
func (tr *Timing) Spans() []Span {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]Span(nil), tr.spans...)
}

// Sums totals the unit spans per stage, in pipeline order
func (tr *Timing) Sums() []StageSum {
	order := []Stage{StageScan, StageDecode, StageCorrelate, StageAdvise, StageFormat}
	byStage := map[Stage]*StageSum{}
	for _, s := range tr.Spans() {
		if s.Unit == "" {
			continue
		}
		sum := byStage[s.Stage]
		if sum == nil {
			sum = &StageSum{Stage: s.Stage}
			byStage[s.Stage] = sum
		}
		sum.Units++
		if s.Status != "ok" {
			sum.Failed++
		}
		sum.Duration += time.Duration(s.DurationMS * float64(time.Millisecond))
	}
	var out []StageSum
	for _, st := range order {
		if sum := byStage[st]; sum != nil {
			out = append(out, *sum)
		}
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// ResolveTimingPath picks the JSONL destination. RXY_TIMING_JSONL wins,
// then the explicit path, then RXY_TIMING (or enabled) falls back to
// rxyfmt-timing.jsonl in the working directory.
func ResolveTimingPath(path string, enabled bool) string {
	if envPath := os.Getenv("RXY_TIMING_JSONL"); envPath != "" {
		return envPath
	}
	if path != "" {
		return path
	}
	if enabled || envBool("RXY_TIMING") {
		return "rxyfmt-timing.jsonl"
	}
	return ""
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
