package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		text    string
		want    uint32
		wantErr string
	}{
		{"0x44", 0x44, ""},
		{"0X1aF", 0x1AF, ""},
		{"288", 288, ""},
		{" 0x120 ", 0x120, ""},
		{"0", 0, ""},
		{"0xFFFFFFFF", 0xFFFFFFFF, ""},
		{"0x100000000", 0, "does not fit in 32 bits"},
		{"4294967296", 0, "does not fit in 32 bits"},
		{"0x", 0, "invalid offset"},
		{"44h", 0, "invalid offset"},
		{"-1", 0, "invalid offset"},
		{"", 0, "invalid offset"},
	}
	for _, tt := range tests {
		got, err := ParseOffset(tt.text)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseOffset(%q) error = %v, want %q", tt.text, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOffset(%q) failed: %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOffset(%q) = %#x, want %#x", tt.text, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
exclude_offsets: ["0x44", 288]
exclude_idata: true
save_excluded: excluded.lib
compress: zstd
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !slices.Equal(s.ExcludeOffsets, []uint32{0x44, 288}) {
		t.Errorf("ExcludeOffsets = %#x", s.ExcludeOffsets)
	}
	if !s.ExcludeIdata || s.SaveExcluded != "excluded.lib" || s.Compress != "zstd" {
		t.Errorf("settings = %+v", s)
	}
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(s.ExcludeOffsets) != 0 || s.ExcludeIdata || s.SaveExcluded != "" {
		t.Errorf("settings = %+v", s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "exclude_idat: true\n", "exclude_idat"},
		{"bad offset", "exclude_offsets: [\"0xZZ\"]\n", "invalid offset"},
		{"nested offset", "exclude_offsets: [[1]]\n", "scalar"},
		{"bad compression", "compress: gzip\n", "unknown compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("exclude_offsets: [0x10]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !slices.Equal(s.ExcludeOffsets, []uint32{0x10}) {
		t.Errorf("ExcludeOffsets = %#x", s.ExcludeOffsets)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile succeeded on a missing file")
	}
}

func TestMerge(t *testing.T) {
	file := Settings{
		ExcludeOffsets: []uint32{0x200, 0x44},
		ExcludeIdata:   true,
		SaveExcluded:   "from-file.lib",
		Compress:       "lz4",
	}
	flags := Settings{
		ExcludeOffsets: []uint32{0x44, 0x120},
		SaveExcluded:   "from-flag.lib",
	}
	merged := file.Merge(flags)

	if want := []uint32{0x44, 0x120, 0x200}; !slices.Equal(merged.ExcludeOffsets, want) {
		t.Errorf("ExcludeOffsets = %#x, want %#x", merged.ExcludeOffsets, want)
	}
	if !merged.ExcludeIdata {
		t.Error("ExcludeIdata from the file was lost")
	}
	if merged.SaveExcluded != "from-flag.lib" {
		t.Errorf("SaveExcluded = %q, want the flag value", merged.SaveExcluded)
	}
	if merged.Compress != "lz4" {
		t.Errorf("Compress = %q, want the file value", merged.Compress)
	}
}

func TestPolicy(t *testing.T) {
	p := Settings{ExcludeOffsets: []uint32{1}, ExcludeIdata: true, SaveExcluded: "x.lib"}.Policy()
	if !p.ExcludeImportMembers || !p.CaptureExcluded || !slices.Equal(p.ExcludeOffsets, []uint32{1}) {
		t.Errorf("Policy = %+v", p)
	}
	if (Settings{}).Policy().CaptureExcluded {
		t.Error("CaptureExcluded set without a save path")
	}
}

func TestLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	if level, err := LogLevel(slog.LevelInfo); err != nil || level != slog.LevelInfo {
		t.Errorf("LogLevel = %v, %v; want the default", level, err)
	}

	t.Setenv(EnvLogLevel, "debug")
	if level, err := LogLevel(slog.LevelInfo); err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel = %v, %v; want debug", level, err)
	}

	t.Setenv(EnvLogLevel, "loud")
	if _, err := LogLevel(slog.LevelInfo); err == nil {
		t.Error("LogLevel accepted an unknown level")
	}
}
