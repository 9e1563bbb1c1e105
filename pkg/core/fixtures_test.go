package core

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"testing"
)

// buildObject builds a minimal COFF object with the given section names.
// Names longer than eight bytes are stored in the string table and
// referenced as "/<decimal>".
func buildObject(machine uint16, sections ...string) []byte {
	return buildObjectFormat(false, machine, sections...)
}

// buildBigObj builds a minimal /bigobj object with the given section names.
func buildBigObj(machine uint16, sections ...string) []byte {
	return buildObjectFormat(true, machine, sections...)
}

func buildObjectFormat(big bool, machine uint16, sections ...string) []byte {
	var buf bytes.Buffer
	headerSize := fileHeaderSize
	if big {
		headerSize = bigObjHeaderSize
	}
	symbolTable := uint32(headerSize + len(sections)*sectionHeaderSize)

	if big {
		binary.Write(&buf, binary.LittleEndian, uint16(pe.IMAGE_FILE_MACHINE_UNKNOWN))
		binary.Write(&buf, binary.LittleEndian, uint16(anonSig2))
		binary.Write(&buf, binary.LittleEndian, uint16(minBigObjVersion))
		binary.Write(&buf, binary.LittleEndian, machine)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // TimeDateStamp
		buf.Write(bigObjClassID[:])
		buf.Write(make([]byte, 16)) // SizeOfData, Flags, MetaDataSize, MetaDataOffset
		binary.Write(&buf, binary.LittleEndian, uint32(len(sections)))
		binary.Write(&buf, binary.LittleEndian, symbolTable)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // NumberOfSymbols
	} else {
		binary.Write(&buf, binary.LittleEndian, machine)
		binary.Write(&buf, binary.LittleEndian, uint16(len(sections)))
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // TimeDateStamp
		binary.Write(&buf, binary.LittleEndian, symbolTable)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // NumberOfSymbols
		binary.Write(&buf, binary.LittleEndian, uint16(0)) // SizeOfOptionalHeader
		binary.Write(&buf, binary.LittleEndian, uint16(0)) // Characteristics
	}

	var strtab bytes.Buffer
	for _, name := range sections {
		field := make([]byte, sectionHeaderSize)
		if len(name) <= sectionNameSize {
			copy(field, name)
		} else {
			copy(field, fmt.Sprintf("/%d", 4+strtab.Len()))
			strtab.WriteString(name)
			strtab.WriteByte(0)
		}
		buf.Write(field)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(4+strtab.Len()))
	buf.Write(strtab.Bytes())
	return buf.Bytes()
}

// buildImport builds a short import descriptor for symbol in dll.
func buildImport(symbol, dll string) []byte {
	return buildImportType(symbol, dll, importCode, 1)
}

func buildImportType(symbol, dll string, importType, nameType uint16, extra ...string) []byte {
	var strs bytes.Buffer
	for _, s := range append([]string{symbol, dll}, extra...) {
		strs.WriteString(s)
		strs.WriteByte(0)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(pe.IMAGE_FILE_MACHINE_UNKNOWN))
	binary.Write(&buf, binary.LittleEndian, uint16(anonSig2))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // Version
	binary.Write(&buf, binary.LittleEndian, uint16(pe.IMAGE_FILE_MACHINE_AMD64))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // TimeDateStamp
	binary.Write(&buf, binary.LittleEndian, uint32(strs.Len()))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // OrdinalHint
	binary.Write(&buf, binary.LittleEndian, importType|nameType<<2)
	buf.Write(strs.Bytes())
	return buf.Bytes()
}

// padTo extends payload with zero bytes to size.
func padTo(t testing.TB, payload []byte, size int) []byte {
	t.Helper()
	if len(payload) > size {
		t.Fatalf("payload of %d bytes does not fit in %d", len(payload), size)
	}
	return append(payload, make([]byte, size-len(payload))...)
}

// rawMember is a member written byte for byte by rawArchive.
type rawMember struct {
	name    string // Header name field, written as is
	mtime   string
	uid     string
	gid     string
	mode    string
	payload []byte
}

// rawHeader formats a 60-byte member header.
func rawHeader(name, mtime, uid, gid, mode string, size int) string {
	return fmt.Sprintf("%-16s%-12s%-6s%-6s%-8s%-10d`\n", name, mtime, uid, gid, mode, size)
}

// rawArchive writes an archive without going through Encode.
func rawArchive(members ...rawMember) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	for _, m := range members {
		buf.WriteString(rawHeader(m.name, m.mtime, m.uid, m.gid, m.mode, len(m.payload)))
		buf.Write(m.payload)
		if len(m.payload)%2 == 1 {
			buf.WriteByte(PadByte)
		}
	}
	return buf.Bytes()
}

// scenarioArchive holds an object at 0x44, an object with an .idata$3
// section at 0x120 and an import descriptor at 0x200.
func scenarioArchive(t testing.TB) []byte {
	t.Helper()
	return rawArchive(
		rawMember{name: "main.obj/", mtime: "0", uid: "0", gid: "0", mode: "100644",
			payload: padTo(t, buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text", ".data"), 160)},
		rawMember{name: "kernel32.dll/", mtime: "0", uid: "0", gid: "0", mode: "100644",
			payload: padTo(t, buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text", ".idata$3"), 164)},
		rawMember{name: "kernel32.dll/", mtime: "0", uid: "0", gid: "0", mode: "100644",
			payload: buildImport("ExitProcess", "KERNEL32.dll")},
	)
}

// offsetsOf returns the data offsets of members.
func offsetsOf(members []Member) []int64 {
	offsets := make([]int64, len(members))
	for i, m := range members {
		offsets[i] = m.Offset
	}
	return offsets
}
