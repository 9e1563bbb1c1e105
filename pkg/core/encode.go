package core

import (
	"bytes"
	"strconv"
)

// headerField is one fixed-width text field of a member header.
type headerField struct {
	name  string
	text  string
	width int
}

// Encode writes members into a new archive, in order. Names that do not fit
// the 16-byte name field go into a freshly built long-name table, which is
// only written when needed. No linker members are written. Unset metadata
// fields are written as 0, except the mode which defaults to DefaultMode.
func Encode(members []Member) ([]byte, error) {
	var names nameTableBuilder
	nameFields := make([]string, len(members))
	for i, m := range members {
		if fitsInline(m.Name) {
			nameFields[i] = string(m.Name) + "/"
			continue
		}
		if !fitsTable(m.Name) {
			return nil, &FieldOverflowError{Field: "name", MemberIndex: i, Value: strconv.Quote(DisplayName(m.Name))}
		}
		nameFields[i] = "/" + strconv.Itoa(names.add(m.Name))
	}

	size := len(Magic)
	for _, m := range members {
		size += HeaderSize + len(m.Payload) + len(m.Payload)%2
	}
	table := names.bytes()
	if len(table) > 0 {
		size += HeaderSize + len(table) + len(table)%2
	}

	var buf bytes.Buffer
	buf.Grow(size)
	buf.WriteString(Magic)

	if len(table) > 0 {
		fields := []headerField{
			{"name", longNamesMemberName, nameWidth},
			{"mtime", "", mtimeWidth},
			{"uid", "", uidWidth},
			{"gid", "", gidWidth},
			{"mode", "", modeWidth},
			{"size", strconv.Itoa(len(table)), sizeWidth},
		}
		if err := writeHeader(&buf, -1, fields); err != nil {
			return nil, err
		}
		writePayload(&buf, table)
	}

	for i, m := range members {
		fields := []headerField{
			{"name", nameFields[i], nameWidth},
			{"mtime", strconv.FormatUint(m.ModTime.Or(0), 10), mtimeWidth},
			{"uid", strconv.FormatUint(m.UID.Or(0), 10), uidWidth},
			{"gid", strconv.FormatUint(m.GID.Or(0), 10), gidWidth},
			{"mode", strconv.FormatUint(m.Mode.Or(DefaultMode), 8), modeWidth},
			{"size", strconv.Itoa(len(m.Payload)), sizeWidth},
		}
		if err := writeHeader(&buf, i, fields); err != nil {
			return nil, err
		}
		writePayload(&buf, m.Payload)
	}
	return buf.Bytes(), nil
}

// writeHeader writes fields left-justified and space-padded, followed by
// the header terminator.
func writeHeader(buf *bytes.Buffer, index int, fields []headerField) error {
	for _, f := range fields {
		if len(f.text) > f.width {
			return &FieldOverflowError{Field: f.name, MemberIndex: index, Value: f.text}
		}
	}
	for _, f := range fields {
		buf.WriteString(f.text)
		for n := len(f.text); n < f.width; n++ {
			buf.WriteByte(' ')
		}
	}
	buf.WriteString(HeaderEnd)
	return nil
}

// writePayload writes data and the alignment pad for odd lengths.
func writePayload(buf *bytes.Buffer, data []byte) {
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(PadByte)
	}
}
