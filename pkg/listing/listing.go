// Package listing renders archive member listings as text, JSON or CBOR.
package listing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"winlib/pkg/core"
)

// Format selects the listing encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatText, FormatJSON, FormatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("unknown listing format %q (want text, json or cbor)", name)
	}
}

// Row is one listed member.
type Row struct {
	Offset int64  `json:"offset" cbor:"offset"`
	Size   int64  `json:"size" cbor:"size"`
	Name   string `json:"name" cbor:"name"`
	Digest string `json:"digest,omitempty" cbor:"digest,omitempty"`
}

// cborEncMode uses Core Deterministic Encoding so the same archive always
// lists to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("listing: CBOR encoder initialization failed: " + err.Error())
	}
}

// Rows converts entries to rows. With digest set, each row carries the
// BLAKE3-256 hex digest of the member payload.
func Rows(entries []core.Entry, digest bool) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Offset: e.Offset, Size: e.Size, Name: core.DisplayName(e.Name)}
		if digest {
			sum := blake3.Sum256(e.Payload)
			rows[i].Digest = hex.EncodeToString(sum[:])
		}
	}
	return rows
}

// Render writes rows to w in the given format.
func Render(w io.Writer, rows []Row, format Format) error {
	switch format {
	case FormatText:
		return renderText(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []Row{}
		}
		return enc.Encode(rows)
	case FormatCBOR:
		if rows == nil {
			rows = []Row{}
		}
		data, err := cborEncMode.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode cbor listing: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown listing format %q", format)
	}
}

// renderText writes right-aligned hex offset and size columns followed by
// the member name.
func renderText(w io.Writer, rows []Row) error {
	withDigest := len(rows) > 0 && rows[0].Digest != ""

	var b strings.Builder
	if withDigest {
		fmt.Fprintf(&b, "%10s  %10s  %-64s  member name\n", "offset", "size", "blake3")
	} else {
		fmt.Fprintf(&b, "%10s  %10s  member name\n", "offset", "size")
	}
	for _, r := range rows {
		if withDigest {
			fmt.Fprintf(&b, "%10s  %10s  %-64s  %s\n", Hex(r.Offset), Hex(r.Size), r.Digest, r.Name)
		} else {
			fmt.Fprintf(&b, "%10s  %10s  %s\n", Hex(r.Offset), Hex(r.Size), r.Name)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Hex formats v as "0x" followed by upper-case hex digits.
func Hex(v int64) string {
	return "0x" + strings.ToUpper(strconv.FormatInt(v, 16))
}
