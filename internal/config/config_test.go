package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadFileFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"rxyfmt.json", `{"indent": {"char": "space", "size": 2}, "array": {"commentPosition": "beside", "showCategories": false}}`},
		{"rxyfmt.yaml", "indent:\n  char: space\n  size: 2\narray:\n  commentPosition: beside\n  showCategories: false\n"},
		{"rxyfmt.toml", "[indent]\nchar = \"space\"\nsize = 2\n\n[array]\ncommentPosition = \"beside\"\nshowCategories = false\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if cfg.Indent.Char != IndentSpace || cfg.Indent.Size != 2 {
				t.Fatalf("indent = %+v", cfg.Indent)
			}
			if cfg.Array.CommentPosition != CommentBeside || cfg.Array.ShowCategories {
				t.Fatalf("array = %+v", cfg.Array)
			}
			// Untouched options keep their defaults
			if !cfg.Array.ShowCharacters || cfg.Array.MaxValuesPerLine != 20 || cfg.Braces != BracesOwnLine {
				t.Fatalf("defaults lost: %+v", cfg)
			}
			if cfg.IndentUnit() != "  " {
				t.Fatalf("IndentUnit = %q", cfg.IndentUnit())
			}
		})
	}
}

func TestLoadFileRejectsUnknownOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rxyfmt.json")
	if err := os.WriteFile(path, []byte(`{"array": {"showCategory": true}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestLoadFileRejectsBadSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rxyfmt.toml")
	if err := os.WriteFile(path, []byte("[indent\nsize = "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Braces = BracesSameLine
			cfg.Source.PinStyle = PinConst
			cfg.Inputs.Exclude = []string{"build/**"}

			path := filepath.Join(t.TempDir(), name)
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if !reflect.DeepEqual(got, cfg) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
			}
		})
	}
}

func TestLoadSearchesRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".rxyfmt.yaml"), []byte("braces: same-line\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Braces != BracesSameLine {
		t.Fatalf("expected the root config to be found, braces = %q", cfg.Braces)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	d := DefaultConfig()
	if cfg.Indent.Char != d.Indent.Char || cfg.LineEnding != d.LineEnding || cfg.Source.PinStyle != d.Source.PinStyle {
		t.Fatalf("applyDefaults left empty options: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Inputs.Files, d.Inputs.Files) {
		t.Fatalf("inputs = %v", cfg.Inputs.Files)
	}
}

func TestResolveCacheDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.ino")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := DefaultConfig()

	if got := cfg.ResolveCacheDir(dir); got != filepath.Join(dir, DefaultCacheDir) {
		t.Fatalf("dir root resolved to %s", got)
	}
	if got := cfg.ResolveCacheDir(file); got != filepath.Join(dir, DefaultCacheDir) {
		t.Fatalf("file root resolved to %s", got)
	}
	cfg.Cache.Dir = "/var/cache/rxyfmt"
	if got := cfg.ResolveCacheDir(dir); got != "/var/cache/rxyfmt" {
		t.Fatalf("absolute dir resolved to %s", got)
	}
}
