package core

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// nameTable is a blob of names addressed by byte offset. Archives keep one
// in the "//" member, COFF objects keep one after the symbol table.
type nameTable struct {
	data []byte
	// terminators ends an entry. The first byte found wins.
	terminators []byte
	// trimSlash strips one trailing '/' from an entry ended by a newline.
	trimSlash bool
}

// archiveNames wraps the data of a "//" member. lib.exe ends entries with
// NUL, GNU ar with "/\n".
func archiveNames(data []byte) nameTable {
	return nameTable{data: data, terminators: []byte{0, '\n'}, trimSlash: true}
}

// coffStrings wraps a COFF string table, including its 4-byte length prefix.
func coffStrings(data []byte) nameTable {
	return nameTable{data: data, terminators: []byte{0}}
}

var errNoNameTable = errors.New("name table is missing")

// resolve parses ref (the text after a leading '/') as a decimal offset
// and returns the entry stored there.
func (t nameTable) resolve(ref []byte) ([]byte, error) {
	ref = bytes.TrimRight(ref, " \x00")
	if len(ref) == 0 {
		return nil, fmt.Errorf("empty name reference")
	}
	offset, err := strconv.ParseUint(string(ref), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse name reference %q: %w", ref, err)
	}
	return t.at(offset)
}

// at returns the entry starting at offset.
func (t nameTable) at(offset uint64) ([]byte, error) {
	if t.data == nil {
		return nil, errNoNameTable
	}
	if offset >= uint64(len(t.data)) {
		return nil, fmt.Errorf("name offset %d outside table of %d bytes", offset, len(t.data))
	}
	entry := t.data[offset:]
	end := bytes.IndexAny(entry, string(t.terminators))
	if end < 0 {
		return nil, fmt.Errorf("name at offset %d is not terminated", offset)
	}
	terminator := entry[end]
	entry = entry[:end]
	if t.trimSlash && terminator == '\n' {
		entry = bytes.TrimSuffix(entry, []byte{'/'})
	}
	return entry, nil
}

// nameTableBuilder accumulates names for a fresh "//" member.
type nameTableBuilder struct {
	buf     bytes.Buffer
	offsets map[string]int
}

// add appends name and returns its offset. Repeated names share one entry.
func (b *nameTableBuilder) add(name []byte) int {
	if b.offsets == nil {
		b.offsets = make(map[string]int)
	}
	if offset, ok := b.offsets[string(name)]; ok {
		return offset
	}
	offset := b.buf.Len()
	b.buf.Write(name)
	b.buf.WriteByte(0)
	b.offsets[string(name)] = offset
	return offset
}

func (b *nameTableBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// fitsInline reports whether name can be written as "name/" in the header.
// An empty name would read back as the linker member name "/".
func fitsInline(name []byte) bool {
	return len(name) > 0 && len(name) < nameWidth && bytes.IndexByte(name, '/') < 0
}

// fitsTable reports whether name survives a round trip through the "//"
// member, whose entries end at the first NUL or newline.
func fitsTable(name []byte) bool {
	return bytes.IndexAny(name, "\x00\n") < 0
}
