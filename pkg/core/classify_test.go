package core

import (
	"debug/pe"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Classification
	}{
		{
			"plain object",
			buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text", ".data", ".bss"),
			Classification{Kind: KindRegularObject, Format: FormatCOFF},
		},
		{
			"object with import section",
			buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text", ".idata$2", ".idata$6"),
			Classification{Kind: KindRegularObject, Format: FormatCOFF, HasImportSection: true},
		},
		{
			"import section behind string table",
			buildObject(pe.IMAGE_FILE_MACHINE_ARM64, ".text", ".idata$5_long_suffix"),
			Classification{Kind: KindRegularObject, Format: FormatCOFF, HasImportSection: true},
		},
		{
			"long section name without idata",
			buildObject(pe.IMAGE_FILE_MACHINE_I386, ".debug$S_with_long_name"),
			Classification{Kind: KindRegularObject, Format: FormatCOFF},
		},
		{
			"object without sections",
			buildObject(pe.IMAGE_FILE_MACHINE_AMD64),
			Classification{Kind: KindRegularObject, Format: FormatCOFF},
		},
		{
			"arm64ec object",
			buildObject(machineARM64EC, ".idata$4"),
			Classification{Kind: KindRegularObject, Format: FormatCOFF, HasImportSection: true},
		},
		{
			"bigobj",
			buildBigObj(pe.IMAGE_FILE_MACHINE_AMD64, ".text"),
			Classification{Kind: KindRegularObject, Format: FormatBigObj},
		},
		{
			"bigobj with import section",
			buildBigObj(pe.IMAGE_FILE_MACHINE_AMD64, ".text", ".idata$7"),
			Classification{Kind: KindRegularObject, Format: FormatBigObj, HasImportSection: true},
		},
		{
			"import descriptor",
			buildImport("ExitProcess", "KERNEL32.dll"),
			Classification{Kind: KindImportDescriptor, Format: FormatImport},
		},
		{
			"data import by ordinal",
			buildImportType("_imp_value", "VALUES.dll", importData, 0),
			Classification{Kind: KindImportDescriptor, Format: FormatImport},
		},
		{
			"export-as import",
			buildImportType("Renamed", "user32.dll", importCode, importNameExportAs, "Original"),
			Classification{Kind: KindImportDescriptor, Format: FormatImport},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.payload)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyStopsAtFirstImportSection(t *testing.T) {
	payload := buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".idata$2", "/9999")
	// The second section name points outside the string table; the scan
	// must not reach it.
	got, err := Classify(payload)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !got.HasImportSection {
		t.Fatalf("Classify = %+v, want an import section", got)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	badSectionName := buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text", "/9999")

	truncatedStrings := buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text")
	binary.LittleEndian.PutUint32(truncatedStrings[len(truncatedStrings)-4:], 1000)

	unknownMachine := buildObject(pe.IMAGE_FILE_MACHINE_AMD64, ".text")
	binary.LittleEndian.PutUint16(unknownMachine, 0x1234)

	badImportVersion := buildImport("f", "a.dll")
	binary.LittleEndian.PutUint16(badImportVersion[4:], 1)

	unterminatedImport := buildImport("f", "a.dll")
	unterminatedImport = unterminatedImport[:len(unterminatedImport)-1]
	binary.LittleEndian.PutUint32(unterminatedImport[12:], uint32(len(unterminatedImport)-importHeaderSize))

	tests := []struct {
		name      string
		payload   []byte
		wantCause string
	}{
		{"empty", nil, "object header"},
		{"text", []byte(strings.Repeat("not an object ", 4)), "unknown machine type"},
		{"unresolvable section name", badSectionName, "unable to retrieve name of section 2"},
		{"string table past end", truncatedStrings, "string table"},
		{"unknown machine", unknownMachine, "unknown machine type 0x1234"},
		{"import with bad version", badImportVersion, ""},
		{"unterminated import names", unterminatedImport, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.payload)
			var unrecognized *UnrecognizedMemberError
			if !errors.As(err, &unrecognized) {
				t.Fatalf("Classify error = %v, want *UnrecognizedMemberError", err)
			}
			if unrecognized.Cause == nil {
				t.Fatal("UnrecognizedMemberError has no cause")
			}
			if !strings.Contains(unrecognized.Cause.Error(), tt.wantCause) {
				t.Errorf("cause = %q, want it to mention %q", unrecognized.Cause, tt.wantCause)
			}
		})
	}
}

func TestSectionNameBase64(t *testing.T) {
	strtab := make([]byte, 4)
	strtab = append(strtab, ".idata$2"...)
	strtab = append(strtab, 0)
	binary.LittleEndian.PutUint32(strtab, uint32(len(strtab)))

	section := make([]byte, sectionHeaderSize)
	copy(section, "//AAAAAE") // Offset 4
	obj := object{sections: section, strings: coffStrings(strtab)}

	name, err := obj.sectionName(0)
	if err != nil {
		t.Fatalf("sectionName failed: %v", err)
	}
	if string(name) != ".idata$2" {
		t.Fatalf("sectionName = %q, want .idata$2", name)
	}
}

func TestDecodeBase64Offset(t *testing.T) {
	tests := []struct {
		text    string
		want    uint64
		wantErr bool
	}{
		{"A", 0, false},
		{"E", 4, false},
		{"BA", 64, false},
		{"AAAAAE", 4, false},
		{"", 0, true},
		{"A=", 0, true},
	}
	for _, tt := range tests {
		got, err := decodeBase64Offset([]byte(tt.text))
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeBase64Offset(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("decodeBase64Offset(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestContributesImports(t *testing.T) {
	tests := []struct {
		c    Classification
		want bool
	}{
		{Classification{Kind: KindRegularObject}, false},
		{Classification{Kind: KindRegularObject, HasImportSection: true}, true},
		{Classification{Kind: KindImportDescriptor, Format: FormatImport}, true},
	}
	for _, tt := range tests {
		if got := tt.c.ContributesImports(); got != tt.want {
			t.Errorf("%+v.ContributesImports() = %v, want %v", tt.c, got, tt.want)
		}
	}
}
