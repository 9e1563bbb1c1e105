// Package fileio reads and writes library files. Libraries may be stored
// as LZ4 or zstd frames; compressed input is detected by its frame magic.
package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"winlib/pkg/progress"
)

// Compression selects how an output library is stored.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1 // LZ4 frame
	CompressionZstd Compression = 2 // zstd frame
)

// Frame signatures, as they appear at the start of a file.
var (
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// FileMode is the permission of written libraries.
const FileMode = 0o644

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", name)
	}
}

// Detect reports the compression of data from its leading bytes.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, lz4Magic):
		return CompressionLZ4
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// ReadLibrary reads the file at path, decompressing it when it holds an
// LZ4 or zstd frame.
func ReadLibrary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out, err := Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return out, nil
}

// Decompress returns data unchanged unless it starts with a known frame
// magic.
func Decompress(data []byte) ([]byte, error) {
	switch Detect(data) {
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// Output is one library to write.
type Output struct {
	Path        string
	Data        []byte
	Compression Compression
}

// rename moves a finished temporary file onto its destination.
var rename = os.Rename

// WriteLibraries writes every output to a temporary file next to its
// destination and renames them into place once all writes succeeded.
// Existing destinations are set aside until every rename succeeded and are
// restored otherwise, so a failure leaves every destination untouched.
// Bytes written to disk are reported to tracker, which may be nil.
func WriteLibraries(tracker *progress.Tracker, outputs ...Output) error {
	seen := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		abs, err := filepath.Abs(out.Path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", out.Path, err)
		}
		if seen[abs] {
			return fmt.Errorf("output %s given more than once", out.Path)
		}
		seen[abs] = true

		info, err := os.Lstat(out.Path)
		switch {
		case err == nil && info.IsDir():
			return fmt.Errorf("output %s is a directory", out.Path)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("stat %s: %w", out.Path, err)
		}
	}

	temps := make([]string, 0, len(outputs))
	for _, out := range outputs {
		tmp, err := writeTemp(out, tracker)
		if err != nil {
			removeAll(temps)
			return err
		}
		temps = append(temps, tmp)
	}
	return install(outputs, temps)
}

// installed is one output moved onto its destination.
type installed struct {
	path   string
	backup string // previous destination; empty when there was none
}

// install renames temps[i] onto outputs[i].Path in order. On failure the
// outputs already installed are undone in reverse order and the previous
// destinations are restored.
func install(outputs []Output, temps []string) error {
	done := make([]installed, 0, len(outputs))
	undo := func(pending []string) {
		for i := len(done) - 1; i >= 0; i-- {
			restore(done[i])
		}
		removeAll(pending)
	}

	for i, out := range outputs {
		backup, err := setAside(out.Path)
		if err != nil {
			undo(temps[i:])
			return err
		}
		if err := rename(temps[i], out.Path); err != nil {
			if backup != "" {
				os.Rename(backup, out.Path)
			}
			undo(temps[i:])
			return fmt.Errorf("rename %s: %w", out.Path, err)
		}
		done = append(done, installed{path: out.Path, backup: backup})
	}

	for _, d := range done {
		if d.backup != "" {
			os.Remove(d.backup)
		}
	}
	return nil
}

// setAside moves an existing file at path to a backup next to it and
// returns the backup path, or "" when path does not exist.
func setAside(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".bak-*")
	if err != nil {
		return "", fmt.Errorf("create backup for %s: %w", path, err)
	}
	backup := f.Name()
	f.Close()
	if err := os.Rename(path, backup); err != nil {
		os.Remove(backup)
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return backup, nil
}

// restore puts back the destination that existed before d was installed.
func restore(d installed) {
	if d.backup == "" {
		os.Remove(d.path)
		return
	}
	os.Rename(d.backup, d.path)
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

// writeTemp writes one output to a temporary file in its destination
// directory and returns the temporary path.
func writeTemp(out Output, tracker *progress.Tracker) (string, error) {
	dir, base := filepath.Split(out.Path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", out.Path, err)
	}
	tmp := f.Name()

	if err := writeCompressed(&progress.Writer{W: f, Tracker: tracker}, out); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Chmod(FileMode); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	return tmp, nil
}

// writeCompressed streams out.Data to w through the selected compressor.
func writeCompressed(w io.Writer, out Output) error {
	switch out.Compression {
	case CompressionNone:
		if _, err := w.Write(out.Data); err != nil {
			return fmt.Errorf("write %s: %w", out.Path, err)
		}
		return nil

	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(out.Data); err != nil {
			return fmt.Errorf("write compressed %s: %w", out.Path, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close LZ4 writer %s: %w", out.Path, err)
		}
		return nil

	case CompressionZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd writer %s: %w", out.Path, err)
		}
		if _, err := zw.Write(out.Data); err != nil {
			zw.Close()
			return fmt.Errorf("write compressed %s: %w", out.Path, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zstd writer %s: %w", out.Path, err)
		}
		return nil

	default:
		return fmt.Errorf("write %s: unsupported compression %s", out.Path, out.Compression)
	}
}
