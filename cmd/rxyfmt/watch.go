package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
	"github.com/robert-at-pretension-io/rxyfmt/internal/loader"
	"github.com/robert-at-pretension-io/rxyfmt/internal/pipeline"
)

// settle is how long a file must stay quiet before it is reformatted
const settle = 200 * time.Millisecond

// watcher reformats source files in place as they are saved. Formatting
// is idempotent, so its own writes settle without a second change.
type watcher struct {
	opts *options
	root string
	log  *diag.Logger

	mu  sync.Mutex
	cfg *config.Config
	p   *pipeline.Pipeline

	pending map[string]*time.Timer
	// docs holds the last parse of every watched file
	docs map[string]*pipeline.Document
}

func runWatch(args []string) int {
	opts := &options{}
	flags := newFlagSet("watch", opts)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		printUsage()
		return 2
	}

	w := &watcher{
		opts:    opts,
		root:    flags.Arg(0),
		log:     diag.New(os.Stderr, opts.verbose),
		pending: map[string]*time.Timer{},
		docs:    map[string]*pipeline.Document{},
	}
	if err := w.reload(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := w.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// reload reads the configuration and rebuilds the pipeline
func (w *watcher) reload() error {
	cfg, err := loadConfig(w.opts, w.root)
	if err != nil {
		return err
	}
	p, err := pipeline.NewFromConfig(cfg, w.log, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.cfg, w.p = cfg, p
	w.mu.Unlock()
	return nil
}

func (w *watcher) run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil {
		return err
	}
	w.prime(ctx)
	w.log.Infof(diag.CatIO, "watching %s", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Errorf(diag.CatIO, "watch: %v", err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev)
		}
	}
}

func (w *watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = fw.Add(ev.Name)
			return
		}
	}
	if isConfigFile(ev.Name) {
		if err := w.reload(); err != nil {
			w.log.Errorf(diag.CatConfig, "%v (keeping previous config)", err)
			return
		}
		w.log.Infof(diag.CatConfig, "reloaded %s", ev.Name)
		w.reformat()
		return
	}
	if !config.IsSourceFile(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[ev.Name]; ok {
		t.Stop()
	}
	name := ev.Name
	w.pending[name] = time.AfterFunc(settle, func() {
		w.mu.Lock()
		delete(w.pending, name)
		cfg, p := w.cfg, w.p
		w.mu.Unlock()
		w.format(ctx, p, cfg, name)
	})
}

func (w *watcher) format(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, name string) {
	units, err := loader.LoadFile(name, w.log)
	if err != nil {
		w.log.Errorf(diag.CatIO, "%v", err)
		return
	}
	for _, u := range units {
		doc, err := p.Parse(ctx, u.Title, u.Text)
		if err != nil {
			if !skippable(err) {
				w.log.Errorf(diag.CatIO, "%s: %v", u.Title, err)
			}
			w.forget(u.Path)
			continue
		}
		w.mu.Lock()
		w.docs[u.Path] = doc
		w.mu.Unlock()
		w.write(p, cfg, doc, u.Path, u.Text)
	}
}

// prime parses every input file so a configuration change can reformat
// files that have not been saved since the watch started
func (w *watcher) prime(ctx context.Context) {
	w.mu.Lock()
	cfg, p := w.cfg, w.p
	w.mu.Unlock()

	files, err := cfg.ResolveInputs(w.root)
	if err != nil {
		w.log.Warnf(diag.CatIO, "%v", err)
		return
	}
	for _, name := range files {
		units, err := loader.LoadFile(name, w.log)
		if err != nil {
			w.log.Warnf(diag.CatIO, "%v", err)
			continue
		}
		for _, u := range units {
			if doc, err := p.Parse(ctx, u.Title, u.Text); err == nil {
				w.mu.Lock()
				w.docs[u.Path] = doc
				w.mu.Unlock()
			}
		}
	}
}

// reformat renders every stored parse under the current configuration
// without reading the files again
func (w *watcher) reformat() {
	w.mu.Lock()
	cfg, p := w.cfg, w.p
	docs := make(map[string]*pipeline.Document, len(w.docs))
	for path, doc := range w.docs {
		docs[path] = doc
	}
	w.mu.Unlock()

	for path, doc := range docs {
		current, err := os.ReadFile(path)
		if err != nil {
			w.forget(path)
			continue
		}
		w.write(p, cfg, doc, path, string(current))
	}
}

// write formats doc and replaces the file when the result differs from
// its current content
func (w *watcher) write(p *pipeline.Pipeline, cfg *config.Config, doc *pipeline.Document, path, current string) {
	res, err := p.Format(doc, cfg)
	if err != nil {
		w.log.Errorf(diag.CatFormat, "%s: %v", doc.Title, err)
		return
	}
	if res.Text == current {
		return
	}
	if err := writeFile(path, res.Text); err != nil {
		w.log.Errorf(diag.CatIO, "%s: %v", doc.Title, err)
		return
	}
	fmt.Println(doc.Title)
}

func (w *watcher) forget(path string) {
	w.mu.Lock()
	delete(w.docs, path)
	w.mu.Unlock()
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, n := range config.FileNames {
		if base == n {
			return true
		}
	}
	return false
}
