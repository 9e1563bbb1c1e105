package core

import (
	"bytes"
	"fmt"
	"strconv"
)

// Names of the pseudo-members that may precede the ordinary members.
const (
	linkerMemberName    = "/"             // First and second linker members
	longNamesMemberName = "//"            // Long-name table
	sym64MemberName     = "/SYM64/"       // 64-bit GNU symbol table
	ecSymbolsMemberName = "/<ECSYMBOLS>/" // ARM64EC symbol map
)

// header is a member header split into its raw text fields.
type header struct {
	name  []byte
	mtime []byte
	uid   []byte
	gid   []byte
	mode  []byte
	size  []byte
	end   []byte
}

// splitHeader slices the 60-byte header starting at offset.
func splitHeader(data []byte, offset int64) (header, error) {
	if int64(len(data))-offset < HeaderSize {
		return header{}, &CorruptMemberError{
			Offset: offset,
			Reason: fmt.Sprintf("truncated header: %d of %d bytes", int64(len(data))-offset, HeaderSize),
		}
	}
	raw := data[offset : offset+HeaderSize]
	next := func(n int) []byte {
		field := raw[:n:n]
		raw = raw[n:]
		return field
	}
	h := header{
		name:  next(nameWidth),
		mtime: next(mtimeWidth),
		uid:   next(uidWidth),
		gid:   next(gidWidth),
		mode:  next(modeWidth),
		size:  next(sizeWidth),
		end:   next(len(HeaderEnd)),
	}
	if string(h.end) != HeaderEnd {
		return header{}, &CorruptMemberError{
			Offset: offset,
			Reason: fmt.Sprintf("invalid header terminator %q, want %q", h.end, HeaderEnd),
		}
	}
	return h, nil
}

// parseField parses a left-justified numeric field. A blank field is unset.
func parseField(raw []byte, base int) (Field, error) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return Field{}, nil
	}
	v, err := strconv.ParseUint(string(text), base, 64)
	if err != nil {
		return Field{}, err
	}
	return Value(v), nil
}

// metadata parses the mtime, uid, gid and mode fields into m.
func (h header) metadata(offset int64, m *Member) error {
	fields := []struct {
		name string
		raw  []byte
		base int
		dst  *Field
	}{
		{"mtime", h.mtime, 10, &m.ModTime},
		{"uid", h.uid, 10, &m.UID},
		{"gid", h.gid, 10, &m.GID},
		{"mode", h.mode, 8, &m.Mode},
	}
	for _, f := range fields {
		v, err := parseField(f.raw, f.base)
		if err != nil {
			return &CorruptMemberError{Offset: offset, Reason: "read " + f.name, Err: err}
		}
		*f.dst = v
	}
	return nil
}

// payloadSize parses the mandatory size field.
func (h header) payloadSize(offset int64) (int64, error) {
	size, err := parseField(h.size, 10)
	if err != nil {
		return 0, &CorruptMemberError{Offset: offset, Reason: "read size", Err: err}
	}
	if !size.Set {
		return 0, &CorruptMemberError{Offset: offset, Reason: "size field is blank"}
	}
	if size.Value > 1<<62 {
		return 0, &CorruptMemberError{Offset: offset, Reason: fmt.Sprintf("size %d out of range", size.Value)}
	}
	return int64(size.Value), nil
}

// trimmedName returns the name field without its space padding.
func (h header) trimmedName() []byte {
	return bytes.TrimRight(h.name, " ")
}

// resolveName turns the name field into the member name, following a
// "/<offset>" reference into the long-name table.
func (h header) resolveName(names nameTable) ([]byte, error) {
	name := h.trimmedName()
	if len(name) > 1 && name[0] == '/' && isDigit(name[1]) {
		resolved, err := names.resolve(name[1:])
		if err != nil {
			return nil, err
		}
		return bytes.Clone(resolved), nil
	}
	if len(name) == 0 || string(name) == linkerMemberName || string(name) == longNamesMemberName {
		return nil, fmt.Errorf("reserved name %q outside the archive prologue", name)
	}
	return bytes.Clone(bytes.TrimSuffix(name, []byte{'/'})), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Decode splits an archive into its ordinary members. The linker members
// and the long-name table are consumed here and never returned. Payloads
// are views into data.
func Decode(data []byte) ([]Member, error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, ErrNotAnArchive
	}

	var members []Member
	var names nameTable
	prologue := true
	offset := int64(len(Magic))
	for offset < int64(len(data)) {
		h, err := splitHeader(data, offset)
		if err != nil {
			return nil, err
		}
		size, err := h.payloadSize(offset)
		if err != nil {
			return nil, err
		}

		dataOffset := offset + HeaderSize
		end := dataOffset + size
		if end > int64(len(data)) {
			return nil, &CorruptMemberError{
				Offset: offset,
				Reason: fmt.Sprintf("payload of %d bytes runs past end of archive (%d bytes available)",
					size, int64(len(data))-dataOffset),
			}
		}
		payload := data[dataOffset:end:end]

		// Odd payloads are followed by one pad byte. A missing pad at the
		// very end of the buffer is tolerated.
		next := end
		if size%2 == 1 && next < int64(len(data)) {
			next++
		}

		if prologue {
			switch string(h.trimmedName()) {
			case linkerMemberName, sym64MemberName, ecSymbolsMemberName:
				offset = next
				continue
			case longNamesMemberName:
				names = archiveNames(payload)
				offset = next
				continue
			}
			prologue = false
		}

		name, err := h.resolveName(names)
		if err != nil {
			return nil, &CorruptMemberError{Offset: offset, Reason: "resolve member name", Err: err}
		}
		m := Member{
			Name:         name,
			Offset:       dataOffset,
			HeaderOffset: offset,
			Size:         size,
			Payload:      payload,
		}
		if err := h.metadata(offset, &m); err != nil {
			return nil, err
		}
		members = append(members, m)
		offset = next
	}
	return members, nil
}
