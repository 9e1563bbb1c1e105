// Package config loads exclusion policies from YAML files and merges them
// with command-line settings.
//
// A policy file looks like:
//
//	exclude_offsets: ["0x44", 288]
//	exclude_idata: true
//	save_excluded: excluded.lib
//	compress: zstd
//
// Unknown keys are rejected so that a misspelt option is never silently
// ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"winlib/pkg/core"
	"winlib/pkg/fileio"
)

// EnvLogLevel names the environment variable holding the default log
// level: debug, info, warn or error.
const EnvLogLevel = "WINLIB_LOG_LEVEL"

// Settings is a complete archive rewrite request, from a policy file,
// from flags, or both merged.
type Settings struct {
	ExcludeOffsets []uint32
	ExcludeIdata   bool
	SaveExcluded   string
	Compress       string
}

// file is the on-disk form of Settings.
type file struct {
	ExcludeOffsets []Offset `yaml:"exclude_offsets"`
	ExcludeIdata   bool     `yaml:"exclude_idata"`
	SaveExcluded   string   `yaml:"save_excluded"`
	Compress       string   `yaml:"compress"`
}

// Offset is a member offset written either as a "0x" hex string or as a
// decimal number.
type Offset uint32

// UnmarshalYAML accepts integer and string scalars.
func (o *Offset) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: offset must be a scalar", node.Line)
	}
	v, err := ParseOffset(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*o = Offset(v)
	return nil
}

// ParseOffset parses a member offset. A "0x" or "0X" prefix selects hex,
// anything else is decimal. Offsets must fit in 32 bits.
func ParseOffset(text string) (uint32, error) {
	text = strings.TrimSpace(text)
	base := 10
	digits := text
	if len(text) > 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		base = 16
		digits = text[2:]
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("offset %q does not fit in 32 bits", text)
		}
		return 0, fmt.Errorf("invalid offset %q: want 0x-prefixed hex or decimal", text)
	}
	return uint32(v), nil
}

// LoadFile reads a policy file.
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a policy document. An empty document is an empty policy.
func Parse(data []byte) (*Settings, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if _, err := fileio.ParseCompression(f.Compress); err != nil {
		return nil, err
	}

	s := &Settings{
		ExcludeIdata: f.ExcludeIdata,
		SaveExcluded: f.SaveExcluded,
		Compress:     f.Compress,
	}
	for _, o := range f.ExcludeOffsets {
		s.ExcludeOffsets = append(s.ExcludeOffsets, uint32(o))
	}
	return s, nil
}

// Merge combines file settings s with flag settings. Offsets are unioned
// with the flag offsets first, booleans are OR-ed and non-empty flag
// strings win.
func (s Settings) Merge(flags Settings) Settings {
	merged := Settings{
		ExcludeIdata: s.ExcludeIdata || flags.ExcludeIdata,
		SaveExcluded: s.SaveExcluded,
		Compress:     s.Compress,
	}
	if flags.SaveExcluded != "" {
		merged.SaveExcluded = flags.SaveExcluded
	}
	if flags.Compress != "" {
		merged.Compress = flags.Compress
	}

	seen := make(map[uint32]bool)
	for _, list := range [][]uint32{flags.ExcludeOffsets, s.ExcludeOffsets} {
		for _, offset := range list {
			if seen[offset] {
				continue
			}
			seen[offset] = true
			merged.ExcludeOffsets = append(merged.ExcludeOffsets, offset)
		}
	}
	return merged
}

// Policy returns the partition policy described by s. Excluded members are
// captured when they are to be saved.
func (s Settings) Policy() core.Policy {
	return core.Policy{
		ExcludeOffsets:       s.ExcludeOffsets,
		ExcludeImportMembers: s.ExcludeIdata,
		CaptureExcluded:      s.SaveExcluded != "",
	}
}

// LogLevel returns the level named by EnvLogLevel, or def when the
// variable is unset.
func LogLevel(def slog.Level) (slog.Level, error) {
	value := os.Getenv(EnvLogLevel)
	if value == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return def, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	return level, nil
}
