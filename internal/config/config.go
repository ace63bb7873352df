package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/rxyfmt/internal/validator"
)

// Config is the top-level formatting configuration for rxyfmt
type Config struct {
	// Indent controls the leading whitespace of generated lines
	Indent IndentConfig `json:"indent" yaml:"indent" toml:"indent"`

	// Braces is "own-line" (opening brace on its own line) or "same-line"
	Braces string `json:"braces" yaml:"braces" toml:"braces"`

	// LineEnding is "auto" (keep the input's majority), "lf" or "crlf"
	LineEnding string `json:"lineEnding" yaml:"lineEnding" toml:"lineEnding"`

	// Array controls how the descriptor array is laid out
	Array ArrayConfig `json:"array" yaml:"array" toml:"array"`

	// Struct controls how the paired struct is laid out
	Struct StructConfig `json:"struct" yaml:"struct" toml:"struct"`

	// Source controls rewrites applied to the rest of the file
	Source SourceConfig `json:"source" yaml:"source" toml:"source"`

	// Inputs lists the files formatted when no path is given
	Inputs InputsConfig `json:"inputs" yaml:"inputs" toml:"inputs"`

	// Policy controls the advisory rules run over the decoded model
	Policy PolicyConfig `json:"policy" yaml:"policy" toml:"policy"`

	// Cache remembers files that are already formatted
	Cache CacheConfig `json:"cache" yaml:"cache" toml:"cache"`
}

// IndentConfig is the indentation unit
type IndentConfig struct {
	// Char is "tab" or "space"
	Char string `json:"char" yaml:"char" toml:"char"`
	// Size is how many Chars make one indent (0..10)
	Size int `json:"size" yaml:"size" toml:"size"`
}

// ArrayConfig contains array layout options
type ArrayConfig struct {
	// CommentPosition is "above" or "beside"
	CommentPosition string `json:"commentPosition" yaml:"commentPosition" toml:"commentPosition"`

	// ShowCategories prefixes element comments with Input/Output/Decoration
	ShowCategories bool `json:"showCategories" yaml:"showCategories" toml:"showCategories"`

	// MaxValuesPerLine wraps long elements
	MaxValuesPerLine int `json:"maxValuesPerLine" yaml:"maxValuesPerLine" toml:"maxValuesPerLine"`

	// ValuePadding left-pads every value to ValuePadding+1 columns (0..5)
	ValuePadding int `json:"valuePadding" yaml:"valuePadding" toml:"valuePadding"`

	// BlankLineBetween separates elements with an empty line
	BlankLineBetween bool `json:"blankLineBetween" yaml:"blankLineBetween" toml:"blankLineBetween"`

	// FixNegativeValues writes negative literals as their byte value
	FixNegativeValues bool `json:"fixNegativeValues" yaml:"fixNegativeValues" toml:"fixNegativeValues"`

	// ShowCharacters writes caption bytes as char literals
	ShowCharacters bool `json:"showCharacters" yaml:"showCharacters" toml:"showCharacters"`

	// ShowNullTerminator writes caption terminators as '\0' instead of 0
	ShowNullTerminator bool `json:"showNullTerminator" yaml:"showNullTerminator" toml:"showNullTerminator"`
}

// StructConfig contains struct layout options
type StructConfig struct {
	// BoolFields types button, switch and the marker field as bool
	BoolFields bool `json:"boolFields" yaml:"boolFields" toml:"boolFields"`

	// CollapseArrays renders multi-value bindings as one array field
	CollapseArrays bool `json:"collapseArrays" yaml:"collapseArrays" toml:"collapseArrays"`

	// AlignTypes pads field types to a common column
	AlignTypes bool `json:"alignTypes" yaml:"alignTypes" toml:"alignTypes"`
}

// SourceConfig contains rewrites applied outside the descriptor
type SourceConfig struct {
	// RemoveBoilerplate deletes the generator's stock comments and
	// normalises its call sites
	RemoveBoilerplate bool `json:"removeBoilerplate" yaml:"removeBoilerplate" toml:"removeBoilerplate"`

	// PinStyle is "keep", "macro" (#define PIN_X v) or "const" (const uint8_t pin_x = v;)
	PinStyle string `json:"pinStyle" yaml:"pinStyle" toml:"pinStyle"`
}

// InputsConfig lists input globs
type InputsConfig struct {
	// Files is a list of glob patterns, ** matches any depth
	Files []string `json:"files" yaml:"files" toml:"files"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude" yaml:"exclude" toml:"exclude"`
}

// PolicyConfig controls advisory evaluation
type PolicyConfig struct {
	// Enabled turns the advisory rules on
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Dir holds extra .rego files (relative to the working directory if not absolute)
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
}

// CacheConfig controls the formatted-file cache
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Dir is relative to the formatted directory if not absolute
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
}

// DefaultCacheDir is the cache directory used when none is configured
const DefaultCacheDir = ".rxyfmt_cache"

// Option values
const (
	IndentTab   = "tab"
	IndentSpace = "space"

	BracesOwnLine  = "own-line"
	BracesSameLine = "same-line"

	LineEndingAuto = "auto"
	LineEndingLF   = "lf"
	LineEndingCRLF = "crlf"

	CommentAbove  = "above"
	CommentBeside = "beside"

	PinKeep  = "keep"
	PinMacro = "macro"
	PinConst = "const"
)

var defaultInputs = []string{"*.ino", "*.pde", "*.cpp", "*.h", "**/*.ino", "**/*.pde", "**/*.cpp", "**/*.h"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Indent:     IndentConfig{Char: IndentTab, Size: 1},
		Braces:     BracesOwnLine,
		LineEnding: LineEndingAuto,
		Array: ArrayConfig{
			CommentPosition:    CommentAbove,
			ShowCategories:     true,
			MaxValuesPerLine:   20,
			ValuePadding:       3,
			BlankLineBetween:   true,
			FixNegativeValues:  true,
			ShowCharacters:     true,
			ShowNullTerminator: true,
		},
		Struct: StructConfig{
			BoolFields:     true,
			CollapseArrays: true,
			AlignTypes:     true,
		},
		Source: SourceConfig{
			RemoveBoilerplate: false,
			PinStyle:          PinKeep,
		},
		Inputs: InputsConfig{
			Files:   append([]string(nil), defaultInputs...),
			Exclude: []string{},
		},
		Policy: PolicyConfig{Enabled: true},
		Cache:  CacheConfig{Enabled: false, Dir: DefaultCacheDir},
	}
}

// ResolveCacheDir returns the cache directory for a run over rootPath,
// which may be a directory or a single file
func (c *Config) ResolveCacheDir(rootPath string) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := c.Cache.Dir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

// FileNames are the configuration file names looked up in a directory, in
// order of preference
var FileNames = []string{
	"rxyfmt.json", ".rxyfmt.json",
	"rxyfmt.yaml", ".rxyfmt.yaml",
	"rxyfmt.yml", ".rxyfmt.yml",
	"rxyfmt.toml", ".rxyfmt.toml",
}

// Load finds and loads the configuration file
// Search order:
//  1. FileNames in the current working directory
//  2. FileNames in <rootPath> (if it is a directory other than cwd)
//  3. ~/.config/rxyfmt/config.{json,yaml,toml}
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	path := Find(rootPath)
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// Find returns the first configuration file on the search path, or ""
func Find(rootPath string) string {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range FileNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range FileNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "rxyfmt")
		searchPaths = append(searchPaths,
			filepath.Join(dir, "config.json"),
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFile loads configuration from a specific file. The format follows
// the extension: .json, .yaml/.yml or .toml. The document is checked
// against the configuration schema before it is applied.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, formatOf(path))
}

// Parse decodes a configuration document of the given format ("json",
// "yaml" or "toml") on top of DefaultConfig
func Parse(data []byte, format string) (*Config, error) {
	raw := map[string]any{}
	if err := decode(data, format, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	v, err := validator.NewConfigValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(data, format, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing fields
	cfg.applyDefaults()

	return cfg, nil
}

func decode(data []byte, format string, out any) error {
	switch format {
	case "yaml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, out)
	case "toml":
		return toml.Unmarshal(data, out)
	case "json":
		return json.Unmarshal(data, out)
	}
	return fmt.Errorf("unsupported config format %q", format)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return "json"
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Indent.Char == "" {
		c.Indent.Char = d.Indent.Char
	}
	if c.Braces == "" {
		c.Braces = d.Braces
	}
	if c.LineEnding == "" {
		c.LineEnding = d.LineEnding
	}
	if c.Array.CommentPosition == "" {
		c.Array.CommentPosition = d.Array.CommentPosition
	}
	if c.Array.MaxValuesPerLine <= 0 {
		c.Array.MaxValuesPerLine = d.Array.MaxValuesPerLine
	}
	if c.Source.PinStyle == "" {
		c.Source.PinStyle = d.Source.PinStyle
	}
	if len(c.Inputs.Files) == 0 {
		c.Inputs.Files = d.Inputs.Files
	}
	if c.Inputs.Exclude == nil {
		c.Inputs.Exclude = []string{}
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = d.Cache.Dir
	}
}

// Save writes the configuration to a file in the format its extension names
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case "yaml":
		data, err = yaml.Marshal(c)
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// IndentUnit returns the string that makes one indent level
func (c *Config) IndentUnit() string {
	if c.Indent.Char == IndentSpace {
		return strings.Repeat(" ", c.Indent.Size)
	}
	return strings.Repeat("\t", c.Indent.Size)
}
