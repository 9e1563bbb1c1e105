package core

import (
	"bytes"
	"errors"
	"fmt"
)

// importSectionPrefix marks sections that contribute to the import table.
var importSectionPrefix = []byte(".idata$")

// Classify inspects a member payload. The payload is parsed as a regular
// COFF object first, then as a /bigobj object, and only then as a short
// import descriptor: import records are shaped so that the object header
// check rejects them. A payload that is none of these yields an
// *UnrecognizedMemberError whose Cause is the object parse failure.
func Classify(payload []byte) (Classification, error) {
	c, err := classify(payload)
	if err != nil {
		return Classification{}, &UnrecognizedMemberError{Offset: -1, Cause: err}
	}
	return c, nil
}

// classify returns the object parse error when nothing matches.
func classify(payload []byte) (Classification, error) {
	obj, objErr := parseCOFF(payload)
	if objErr != nil {
		var bigErr error
		obj, bigErr = parseBigObj(payload)
		switch {
		case bigErr == nil:
			objErr = nil
		case !errors.Is(bigErr, errNotBigObj):
			objErr = bigErr
		}
	}
	if objErr == nil {
		found, err := obj.hasImportSection()
		if err == nil {
			return Classification{Kind: KindRegularObject, Format: obj.format, HasImportSection: found}, nil
		}
		objErr = err
	}

	if err := parseImport(payload); err == nil {
		return Classification{Kind: KindImportDescriptor, Format: FormatImport}, nil
	}
	return Classification{}, objErr
}

// hasImportSection scans the section table in order and stops at the first
// section whose name starts with ".idata$".
func (o object) hasImportSection() (bool, error) {
	for i := 0; i < o.numSections(); i++ {
		name, err := o.sectionName(i)
		if err != nil {
			return false, fmt.Errorf("unable to retrieve name of section %d: %w", i+1, err)
		}
		if bytes.HasPrefix(name, importSectionPrefix) {
			return true, nil
		}
	}
	return false, nil
}
