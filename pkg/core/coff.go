package core

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
)

// Object layout constants.
const (
	fileHeaderSize    = 20 // IMAGE_FILE_HEADER
	bigObjHeaderSize  = 56 // ANON_OBJECT_HEADER_BIGOBJ
	importHeaderSize  = 20 // IMPORT_OBJECT_HEADER
	sectionHeaderSize = 40 // IMAGE_SECTION_HEADER
	symbolSize        = 18 // IMAGE_SYMBOL
	bigObjSymbolSize  = 20 // IMAGE_SYMBOL_EX
	sectionNameSize   = 8

	anonSig2         = 0xFFFF // Sig2 of anonymous and import headers
	minBigObjVersion = 2
)

// Machine types missing from debug/pe.
const (
	machineARM64EC = 0xa641
	machineARM64X  = 0xa64e
	machineCHPEX86 = 0x3a64
)

// bigObjClassID is {D1BAA1C7-BAEE-4ba9-AF20-FAF66AA4DCB8} in on-disk order.
var bigObjClassID = [16]byte{
	0xC7, 0xA1, 0xBA, 0xD1, 0xEE, 0xBA, 0xA9, 0x4B,
	0xAF, 0x20, 0xFA, 0xF6, 0x6A, 0xA4, 0xDC, 0xB8,
}

var knownMachines = map[uint16]bool{
	pe.IMAGE_FILE_MACHINE_UNKNOWN:     true,
	pe.IMAGE_FILE_MACHINE_AM33:        true,
	pe.IMAGE_FILE_MACHINE_AMD64:       true,
	pe.IMAGE_FILE_MACHINE_ARM:         true,
	pe.IMAGE_FILE_MACHINE_ARMNT:       true,
	pe.IMAGE_FILE_MACHINE_ARM64:       true,
	pe.IMAGE_FILE_MACHINE_EBC:         true,
	pe.IMAGE_FILE_MACHINE_I386:        true,
	pe.IMAGE_FILE_MACHINE_IA64:        true,
	pe.IMAGE_FILE_MACHINE_LOONGARCH32: true,
	pe.IMAGE_FILE_MACHINE_LOONGARCH64: true,
	pe.IMAGE_FILE_MACHINE_M32R:        true,
	pe.IMAGE_FILE_MACHINE_MIPS16:      true,
	pe.IMAGE_FILE_MACHINE_MIPSFPU:     true,
	pe.IMAGE_FILE_MACHINE_MIPSFPU16:   true,
	pe.IMAGE_FILE_MACHINE_POWERPC:     true,
	pe.IMAGE_FILE_MACHINE_POWERPCFP:   true,
	pe.IMAGE_FILE_MACHINE_R4000:       true,
	pe.IMAGE_FILE_MACHINE_RISCV32:     true,
	pe.IMAGE_FILE_MACHINE_RISCV64:     true,
	pe.IMAGE_FILE_MACHINE_RISCV128:    true,
	pe.IMAGE_FILE_MACHINE_SH3:         true,
	pe.IMAGE_FILE_MACHINE_SH3DSP:      true,
	pe.IMAGE_FILE_MACHINE_SH4:         true,
	pe.IMAGE_FILE_MACHINE_SH5:         true,
	pe.IMAGE_FILE_MACHINE_THUMB:       true,
	pe.IMAGE_FILE_MACHINE_WCEMIPSV2:   true,
	machineARM64EC:                    true,
	machineARM64X:                     true,
	machineCHPEX86:                    true,
}

var le = binary.LittleEndian

// object is the part of a COFF object needed to read section names.
type object struct {
	format   Format
	sections []byte // Raw section table
	strings  nameTable
}

var errNotBigObj = errors.New("not a bigobj header")

// parseCOFF reads a regular object: IMAGE_FILE_HEADER, section table and
// string table.
func parseCOFF(payload []byte) (object, error) {
	if len(payload) < fileHeaderSize {
		return object{}, fmt.Errorf("object header: %d bytes, need %d", len(payload), fileHeaderSize)
	}
	machine := le.Uint16(payload[0:])
	if !knownMachines[machine] {
		return object{}, fmt.Errorf("unknown machine type %#04x", machine)
	}
	numSections := uint64(le.Uint16(payload[2:]))
	symbolTable := uint64(le.Uint32(payload[8:]))
	numSymbols := uint64(le.Uint32(payload[12:]))
	optionalHeader := uint64(le.Uint16(payload[16:]))

	sections, err := sectionTable(payload, fileHeaderSize+optionalHeader, numSections)
	if err != nil {
		return object{}, err
	}
	strings, err := stringTable(payload, symbolTable, numSymbols, symbolSize)
	if err != nil {
		return object{}, err
	}
	return object{format: FormatCOFF, sections: sections, strings: strings}, nil
}

// parseBigObj reads an object compiled with /bigobj. It returns
// errNotBigObj when the anonymous header does not carry the bigobj class id.
func parseBigObj(payload []byte) (object, error) {
	if len(payload) < bigObjHeaderSize ||
		le.Uint16(payload[0:]) != pe.IMAGE_FILE_MACHINE_UNKNOWN ||
		le.Uint16(payload[2:]) != anonSig2 ||
		le.Uint16(payload[4:]) < minBigObjVersion ||
		!bytes.Equal(payload[12:28], bigObjClassID[:]) {
		return object{}, errNotBigObj
	}
	machine := le.Uint16(payload[6:])
	if !knownMachines[machine] {
		return object{}, fmt.Errorf("bigobj: unknown machine type %#04x", machine)
	}
	numSections := uint64(le.Uint32(payload[44:]))
	symbolTable := uint64(le.Uint32(payload[48:]))
	numSymbols := uint64(le.Uint32(payload[52:]))

	sections, err := sectionTable(payload, bigObjHeaderSize, numSections)
	if err != nil {
		return object{}, fmt.Errorf("bigobj: %w", err)
	}
	strings, err := stringTable(payload, symbolTable, numSymbols, bigObjSymbolSize)
	if err != nil {
		return object{}, fmt.Errorf("bigobj: %w", err)
	}
	return object{format: FormatBigObj, sections: sections, strings: strings}, nil
}

// sectionTable bounds-checks and slices count section headers at offset.
func sectionTable(payload []byte, offset, count uint64) ([]byte, error) {
	end := offset + count*sectionHeaderSize
	if end > uint64(len(payload)) {
		return nil, fmt.Errorf("section table of %d entries at %#x runs past end of object (%d bytes)",
			count, offset, len(payload))
	}
	return payload[offset:end], nil
}

// stringTable locates the string table that follows the symbol table. An
// object without a symbol table has no string table.
func stringTable(payload []byte, symbolTable, numSymbols, entrySize uint64) (nameTable, error) {
	if symbolTable == 0 {
		return coffStrings(nil), nil
	}
	offset := symbolTable + numSymbols*entrySize
	if offset > uint64(len(payload)) {
		return nameTable{}, fmt.Errorf("symbol table of %d entries at %#x runs past end of object (%d bytes)",
			numSymbols, symbolTable, len(payload))
	}
	if offset == uint64(len(payload)) {
		return coffStrings([]byte{}), nil
	}
	if offset+4 > uint64(len(payload)) {
		return nameTable{}, fmt.Errorf("string table length at %#x is truncated", offset)
	}
	length := uint64(le.Uint32(payload[offset:]))
	if length < 4 || offset+length > uint64(len(payload)) {
		return nameTable{}, fmt.Errorf("string table of %d bytes at %#x runs past end of object (%d bytes)",
			length, offset, len(payload))
	}
	return coffStrings(payload[offset : offset+length]), nil
}

// sectionName resolves the name of the section header at index.
func (o object) sectionName(index int) ([]byte, error) {
	raw := o.sections[index*sectionHeaderSize : index*sectionHeaderSize+sectionNameSize]
	if n := bytes.IndexByte(raw, 0); n >= 0 {
		raw = raw[:n]
	}
	if len(raw) < 2 || raw[0] != '/' {
		return raw, nil
	}
	if raw[1] == '/' {
		offset, err := decodeBase64Offset(raw[2:])
		if err != nil {
			return nil, err
		}
		return o.strings.at(offset)
	}
	return o.strings.resolve(raw[1:])
}

// numSections returns the number of section headers.
func (o object) numSections() int {
	return len(o.sections) / sectionHeaderSize
}

// base64Digits is the alphabet of "//" section name offsets, used when the
// offset does not fit in seven decimal digits.
const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func decodeBase64Offset(text []byte) (uint64, error) {
	if len(text) == 0 {
		return 0, fmt.Errorf("empty base64 name reference")
	}
	var offset uint64
	for _, c := range text {
		digit := bytes.IndexByte([]byte(base64Digits), c)
		if digit < 0 {
			return 0, fmt.Errorf("invalid base64 name reference %q", text)
		}
		offset = offset<<6 | uint64(digit)
	}
	return offset, nil
}

// Import object types and name types.
const (
	importCode  = 0
	importData  = 1
	importConst = 2

	importNameExportAs = 4
)

// parseImport validates a short import descriptor: IMPORT_OBJECT_HEADER
// followed by the NUL-terminated symbol and DLL names.
func parseImport(payload []byte) error {
	if len(payload) < importHeaderSize {
		return fmt.Errorf("import header: %d bytes, need %d", len(payload), importHeaderSize)
	}
	if le.Uint16(payload[0:]) != pe.IMAGE_FILE_MACHINE_UNKNOWN || le.Uint16(payload[2:]) != anonSig2 {
		return fmt.Errorf("invalid import header signature")
	}
	if version := le.Uint16(payload[4:]); version != 0 {
		return fmt.Errorf("unknown import header version %d", version)
	}
	sizeOfData := uint64(le.Uint32(payload[12:]))
	if importHeaderSize+sizeOfData > uint64(len(payload)) {
		return fmt.Errorf("import data of %d bytes runs past end of member (%d bytes)", sizeOfData, len(payload))
	}
	typeInfo := le.Uint16(payload[18:])
	importType := typeInfo & 0x3
	nameType := (typeInfo >> 2) & 0x7
	switch importType {
	case importCode, importData, importConst:
	default:
		return fmt.Errorf("unknown import type %d", importType)
	}
	if nameType > importNameExportAs {
		return fmt.Errorf("unknown import name type %d", nameType)
	}

	strs := payload[importHeaderSize : importHeaderSize+sizeOfData]
	names := []string{"symbol", "dll"}
	if nameType == importNameExportAs {
		names = append(names, "export")
	}
	for _, what := range names {
		end := bytes.IndexByte(strs, 0)
		if end < 0 {
			return fmt.Errorf("import %s name is not terminated", what)
		}
		strs = strs[end+1:]
	}
	return nil
}
