// Package config loads rbcheck.toml.
//
// The file is optional. It is found by walking up from the working
// directory; every key left out keeps its default, and command-line flags
// override whatever the file says.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"rbcheck/internal/source"
	"rbcheck/internal/trace"
)

// FileName is the name searched for by Find.
const FileName = "rbcheck.toml"

// Check is the [check] section.
type Check struct {
	Jobs           int      `toml:"jobs"`
	MaxDiagnostics int      `toml:"max_diagnostics"`
	Strictness     string   `toml:"strictness"`
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
	SimplifyCFG    bool     `toml:"simplify_cfg"`
}

// Trace is the [trace] section.
type Trace struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
	Format string `toml:"format"`
}

// Cache is the [cache] section.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Config is a decoded rbcheck.toml.
type Config struct {
	Check Check `toml:"check"`
	Trace Trace `toml:"trace"`
	Cache Cache `toml:"cache"`

	// Path is the file the config came from, empty for defaults.
	Path string `toml:"-"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Check: Check{
			MaxDiagnostics: 200,
			Strictness:     "",
			Include:        []string{"**.tree.json"},
		},
		Trace: Trace{Level: "off", Mode: "ring", Output: "-", Format: "auto"},
		Cache: Cache{Enabled: true},
	}
}

// Find walks up from startDir to locate rbcheck.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load decodes path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	// пустой список include означает "всё", а не "ничего"
	if meta.IsDefined("check", "include") && len(cfg.Check.Include) == 0 {
		cfg.Check.Include = Default().Check.Include
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest rbcheck.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks every value that is parsed later.
func (c Config) Validate() error {
	var errs []error
	if c.Check.Jobs < 0 {
		errs = append(errs, fmt.Errorf("check.jobs must not be negative, got %d", c.Check.Jobs))
	}
	if c.Check.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("check.max_diagnostics must not be negative, got %d", c.Check.MaxDiagnostics))
	}
	if _, err := c.Strictness(); err != nil {
		errs = append(errs, fmt.Errorf("check.strictness: %w", err))
	}
	if _, err := c.Matcher(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TraceConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Strictness is the configured override, StrictNone when unset.
func (c Config) Strictness() (source.StrictLevel, error) {
	if c.Check.Strictness == "" {
		return source.StrictNone, nil
	}
	return source.ParseStrictLevel(c.Check.Strictness)
}

// TraceConfig converts [trace] for trace.New.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, fmt.Errorf("trace.level: %w", err)
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, fmt.Errorf("trace.mode: %w", err)
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, fmt.Errorf("trace.format: %w", err)
	}
	return trace.Config{Level: level, Mode: mode, Format: format, OutputPath: c.Trace.Output}, nil
}

// Matcher selects input documents by slash-separated relative path.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

// Matcher compiles the include and exclude patterns. "*" stays within one
// path segment, "**" crosses segments.
func (c Config) Matcher() (*Matcher, error) {
	include, err := compile("check.include", c.Check.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compile("check.exclude", c.Check.Exclude)
	if err != nil {
		return nil, err
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

func compile(key string, patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%s: invalid pattern %q: %w", key, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether rel is included and not excluded.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range m.exclude {
		if g.Match(rel) {
			return false
		}
	}
	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
