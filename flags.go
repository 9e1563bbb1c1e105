package main

import (
	"strings"

	"github.com/spf13/pflag"

	"winlib/pkg/config"
	"winlib/pkg/listing"
)

// offsetList collects repeated --exclude values. Each value is a 0x-prefixed
// hex or decimal offset; a comma separates several offsets in one value.
type offsetList struct {
	offsets []uint32
}

var _ pflag.Value = (*offsetList)(nil)

func (l *offsetList) String() string {
	parts := make([]string, len(l.offsets))
	for i, offset := range l.offsets {
		parts[i] = listing.Hex(int64(offset))
	}
	return strings.Join(parts, ",")
}

func (l *offsetList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		offset, err := config.ParseOffset(part)
		if err != nil {
			return err
		}
		l.offsets = append(l.offsets, offset)
	}
	return nil
}

func (l *offsetList) Type() string {
	return "offset"
}
