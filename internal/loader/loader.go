// Package loader turns files, zip archives and piped text into text units.
// Every unit is held in memory; files larger than MaxSize are refused.
package loader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
)

// MaxSize is the largest file or archive entry accepted, in bytes
const MaxSize = 100_000_000

var limit int64 = MaxSize

// Titles given to text that has no file name: typed into a terminal, or
// redirected from elsewhere
const (
	TitlePasted  = "Pasted text"
	TitleDropped = "Dropped text"
)

var (
	ErrTooLarge      = errors.New("file is too big")
	ErrHTML          = errors.New("text is an HTML page")
	ErrNoValidFile   = errors.New("no valid file found")
	ErrNotSourceFile = errors.New("not a source file")
	ErrSkipped       = errors.New("files skipped")
)

// Unit is one text to decode
type Unit struct {
	Title string
	// Path is the file the unit can be written back to. It is empty for
	// archive entries and piped text.
	Path string
	Text string
}

// Writable reports whether the unit came from a plain file
func (u Unit) Writable() bool {
	return u.Path != ""
}

// LoadFile loads a source file, or every source entry of a zip archive.
// Skipped archive entries are logged to log, which may be nil.
func LoadFile(name string, log *diag.Logger) ([]Unit, error) {
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return LoadZip(name, log)
	}
	if !config.IsSourceFile(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotSourceFile)
	}

	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	u, err := newUnit(name, string(data))
	if err != nil {
		return nil, err
	}
	u.Path = name
	return []Unit{u}, nil
}

// LoadZip loads every source entry of a zip archive. Directories, nested
// archives and other file types are skipped. Entries that are too big,
// unreadable or HTML are logged and skipped. Entries are titled
// "<archive>/<entry>".
func LoadZip(name string, log *diag.Logger) ([]Unit, error) {
	if log == nil {
		log = diag.Discard()
	}
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}

	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer zr.Close()

	base := filepath.Base(name)
	var units []Unit
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.EqualFold(path.Ext(f.Name), ".zip") || !config.IsSourceFile(f.Name) {
			continue
		}
		title := base + "/" + f.Name
		if f.UncompressedSize64 > uint64(limit) {
			log.Warnf(diag.CatIO, "%s: %v, skipped", title, ErrTooLarge)
			continue
		}
		text, err := readEntry(f)
		if err != nil {
			log.Warnf(diag.CatIO, "%s: %v, skipped", title, err)
			continue
		}
		u, err := newUnit(title, text)
		if err != nil {
			log.Infof(diag.CatIO, "%v, skipped", err)
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoValidFile)
	}
	return units, nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	return string(data), nil
}

// LoadReader reads a unit from r, typically standard input
func LoadReader(title string, r io.Reader) (Unit, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Unit{}, err
	}
	if int64(len(data)) > limit {
		return Unit{}, fmt.Errorf("%s: %w", title, ErrTooLarge)
	}
	if title == "" {
		title = StdinTitle(r)
	}
	return newUnit(title, string(data))
}

func newUnit(title, text string) (Unit, error) {
	if strings.HasPrefix(text, "<html>") {
		return Unit{}, fmt.Errorf("%s: %w", title, ErrHTML)
	}
	return Unit{Title: title, Text: text}, nil
}

// StdinTitle names text read from r: TitlePasted when r is a terminal,
// TitleDropped otherwise
func StdinTitle(r io.Reader) string {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return TitlePasted
	}
	return TitleDropped
}

// LoadAll loads files concurrently and returns their units in argument
// order. A file that fails to load is logged and skipped; the returned
// error then wraps ErrSkipped and the units of the other files are still
// returned.
func LoadAll(ctx context.Context, names []string, parallel int, log *diag.Logger) ([]Unit, error) {
	if log == nil {
		log = diag.Discard()
	}
	results := make([][]Unit, len(names))
	failed := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units, err := LoadFile(name, log)
			if err != nil {
				log.Errorf(diag.CatIO, "%v", err)
				failed[i] = true
				return nil
			}
			results[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Unit
	skipped := 0
	for i, units := range results {
		if failed[i] {
			skipped++
		}
		all = append(all, units...)
	}
	if skipped > 0 {
		return all, fmt.Errorf("%w: %d of %d", ErrSkipped, skipped, len(names))
	}
	return all, nil
}
