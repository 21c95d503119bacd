// Package config loads and validates the configuration block handed to the
// pipeline by the build system.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
)

// IncludeGuardPragmaOnce selects #pragma once preambles.
const IncludeGuardPragmaOnce = "pragma_once"

// raw mirrors the YAML surface.
type raw struct {
	SourceCrate             string              `yaml:"source_crate"`
	TargetCratesIncludePaths map[string][]string `yaml:"target_crates_include_paths"`
	TargetCrateFeatures     map[string][]string `yaml:"target_crate_features"`
	CrateRenames            map[string]string   `yaml:"crate_renames"`
	CrubitSupportPathFormat string              `yaml:"crubit_support_path_format"`
	DebugPathFormat         string              `yaml:"debug_path_format"`
	NoThunkNameMangling     bool                `yaml:"no_thunk_name_mangling"`
	IncludeGuard            string              `yaml:"include_guard"`
	DefaultFeatures         []string            `yaml:"default_features"`
}

// Config is the validated configuration block.
type Config struct {
	// SourceCrate identifies the crate/library being bound.
	SourceCrate string

	// IncludePaths maps crate-name patterns (doublestar globs) to the header
	// includes that must be emitted when that crate's types appear.
	IncludePaths map[string][]string

	// CrateFeatures maps crate name to its enabled feature set.
	CrateFeatures map[string]feature.Set

	// CrateRenames maps a source crate name to its binding alias.
	CrateRenames map[string]string

	// SupportPathFormat locates runtime-support headers; "{header}" is
	// substituted.
	SupportPathFormat string

	// DebugPathFormat formats source locations in generated comments;
	// "{file}" and "{line}" are substituted.
	DebugPathFormat string

	// NoThunkNameMangling substitutes plain source names for mangled thunk
	// names. Test-only; production thunk names must be unique per
	// translation unit.
	NoThunkNameMangling bool

	// IncludeGuard is either IncludeGuardPragmaOnce or an explicit guard
	// symbol.
	IncludeGuard string

	// DefaultFeatures applies to crates not listed in CrateFeatures.
	DefaultFeatures feature.Set
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf(errors.CFG001, nil, "reading configuration: %v", err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration block.
func Parse(data []byte) (*Config, error) {
	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Newf(errors.CFG001, nil, "parsing configuration: %v", err)
	}
	cfg := &Config{
		SourceCrate:       r.SourceCrate,
		IncludePaths:      r.TargetCratesIncludePaths,
		CrateRenames:      r.CrateRenames,
		SupportPathFormat: r.CrubitSupportPathFormat,
		DebugPathFormat:   r.DebugPathFormat,
		NoThunkNameMangling: r.NoThunkNameMangling,
		IncludeGuard:      r.IncludeGuard,
		CrateFeatures:     map[string]feature.Set{},
	}
	if cfg.IncludePaths == nil {
		cfg.IncludePaths = map[string][]string{}
	}
	if cfg.CrateRenames == nil {
		cfg.CrateRenames = map[string]string{}
	}
	if cfg.SupportPathFormat == "" {
		cfg.SupportPathFormat = "support/{header}"
	}
	if cfg.DebugPathFormat == "" {
		cfg.DebugPathFormat = "{file};l={line}"
	}
	if cfg.IncludeGuard == "" {
		cfg.IncludeGuard = IncludeGuardPragmaOnce
	}
	if strings.ContainsAny(strings.TrimPrefix(cfg.IncludeGuard, IncludeGuardPragmaOnce), " \t") {
		return nil, errors.Newf(errors.CFG003, nil, "include_guard %q contains whitespace", cfg.IncludeGuard)
	}
	for crate, parts := range r.TargetCrateFeatures {
		set, err := feature.ParseSet(parts)
		if err != nil {
			return nil, errors.Newf(errors.CFG002, nil, "target_crate_features[%s]: %v", crate, err)
		}
		cfg.CrateFeatures[crate] = set
	}
	def, err := feature.ParseSet(r.DefaultFeatures)
	if err != nil {
		return nil, errors.Newf(errors.CFG002, nil, "default_features: %v", err)
	}
	cfg.DefaultFeatures = def
	return cfg, nil
}

// Default returns a permissive configuration for tests and tooling.
func Default(sourceCrate string) *Config {
	return &Config{
		SourceCrate:       sourceCrate,
		IncludePaths:      map[string][]string{},
		CrateFeatures:     map[string]feature.Set{},
		CrateRenames:      map[string]string{},
		SupportPathFormat: "support/{header}",
		DebugPathFormat:   "{file};l={line}",
		IncludeGuard:      IncludeGuardPragmaOnce,
		DefaultFeatures:   feature.Of(feature.Experimental).Normalize(),
	}
}

// FeaturesFor returns the feature set enabled for a crate, falling back to
// the default feature set.
func (c *Config) FeaturesFor(crate string) feature.Set {
	if set, ok := c.CrateFeatures[crate]; ok {
		return set
	}
	return c.DefaultFeatures
}

// IncludesFor returns the headers to emit when a crate's types appear.
// Keys are matched as doublestar patterns over the crate name; literal keys
// match themselves. Matching keys are applied in sorted order so the result
// is deterministic.
func (c *Config) IncludesFor(crate string) []string {
	keys := make([]string, 0, len(c.IncludePaths))
	for k := range c.IncludePaths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	seen := map[string]bool{}
	for _, k := range keys {
		matched, err := doublestar.Match(k, crate)
		if err != nil || !matched {
			continue
		}
		for _, inc := range c.IncludePaths[k] {
			if !seen[inc] {
				seen[inc] = true
				out = append(out, inc)
			}
		}
	}
	return out
}

// RenameFor returns the binding alias of a crate, or the crate name itself.
func (c *Config) RenameFor(crate string) string {
	if alias, ok := c.CrateRenames[crate]; ok {
		return alias
	}
	return crate
}

// SupportHeader resolves a runtime-support header through
// crubit_support_path_format.
func (c *Config) SupportHeader(header string) string {
	return strings.ReplaceAll(c.SupportPathFormat, "{header}", header)
}

// DebugPath formats a source location for generated comments.
func (c *Config) DebugPath(span ir.Span) string {
	out := strings.ReplaceAll(c.DebugPathFormat, "{file}", span.File)
	out = strings.ReplaceAll(out, "{line}", fmt.Sprintf("%d", span.Line))
	return out
}
