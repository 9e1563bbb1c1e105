package core

import (
	"golang.org/x/text/encoding/unicode"
)

// Constants for the COFF archive container
const (
	Magic      = "!<arch>\n" // Signature at offset 0 of every archive
	HeaderSize = 60          // Fixed size of a member header
	HeaderEnd  = "`\n"       // Terminator of every member header
	PadByte    = '\n'        // Alignment byte after odd-sized payloads

	// DefaultMode is written when a member carries no mode of its own.
	DefaultMode = 0o644
)

// Header field widths, in header order.
const (
	nameWidth  = 16
	mtimeWidth = 12
	uidWidth   = 6
	gidWidth   = 6
	modeWidth  = 8
	sizeWidth  = 10
)

// Field is a numeric header field. Archives written by lib.exe leave some
// fields blank, so a field may be unset.
type Field struct {
	Value uint64
	Set   bool
}

// Or returns the field value, or def when the field is unset.
func (f Field) Or(def uint64) uint64 {
	if !f.Set {
		return def
	}
	return f.Value
}

// Value returns a set field holding v.
func Value(v uint64) Field {
	return Field{Value: v, Set: true}
}

// Member is one ordinary entry of an archive.
type Member struct {
	Name         []byte // Exact name bytes, long-name references resolved
	Offset       int64  // Start of the member data in the source buffer
	HeaderOffset int64  // Start of the member header in the source buffer
	Size         int64  // Payload length
	Payload      []byte // View into the source buffer

	ModTime Field
	UID     Field
	GID     Field
	Mode    Field
}

// DisplayName returns the member name for display. Invalid UTF-8 is
// replaced with U+FFFD.
func (m Member) DisplayName() string {
	return DisplayName(m.Name)
}

// DisplayName decodes raw name bytes lossily.
func DisplayName(name []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(name)
	if err != nil {
		return string(name)
	}
	return string(out)
}

// Kind distinguishes the two member shapes found in import libraries
type Kind byte

const (
	KindRegularObject    Kind = 0 // Compiled COFF object
	KindImportDescriptor Kind = 1 // Short import-library record
)

func (k Kind) String() string {
	switch k {
	case KindRegularObject:
		return "object"
	case KindImportDescriptor:
		return "import"
	default:
		return "unknown"
	}
}

// Format records which parser accepted a member payload.
type Format byte

const (
	FormatCOFF   Format = 0 // Regular IMAGE_FILE_HEADER object
	FormatBigObj Format = 1 // /bigobj anonymous-header object
	FormatImport Format = 2 // IMPORT_OBJECT_HEADER record
)

func (f Format) String() string {
	switch f {
	case FormatCOFF:
		return "coff"
	case FormatBigObj:
		return "bigobj"
	case FormatImport:
		return "import"
	default:
		return "unknown"
	}
}

// Classification is the result of inspecting one member payload.
// HasImportSection is only meaningful for KindRegularObject.
type Classification struct {
	Kind             Kind
	Format           Format
	HasImportSection bool
}

// ContributesImports reports whether the member takes part in the PE import
// directory, either as an import descriptor or through an .idata$ section.
func (c Classification) ContributesImports() bool {
	if c.Kind == KindImportDescriptor {
		return true
	}
	return c.Kind == KindRegularObject && c.HasImportSection
}

// Classified pairs a member with its classification.
type Classified struct {
	Member         Member
	Classification Classification
}

// Entry is one row of an archive listing
type Entry struct {
	Offset  int64
	Size    int64
	Name    []byte
	Payload []byte // View into the source buffer
}
