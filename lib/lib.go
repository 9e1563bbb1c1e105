// Package lib provides the archive rewriting API of winlib.
// This package re-exports the functionality from the core package.
package lib

import (
	"winlib/pkg/core"
	"winlib/pkg/fileio"
	"winlib/pkg/progress"
)

// Constants for the archive container re-exported from core
const (
	Magic      = core.Magic      // Signature of every archive
	HeaderSize = core.HeaderSize // Size of a member header
)

// Types re-exported from core
type (
	Member         = core.Member
	Entry          = core.Entry
	Field          = core.Field
	Kind           = core.Kind
	Classification = core.Classification
	Classified     = core.Classified
	Policy         = core.Policy
	Partition      = core.Partition
	Result         = core.Result
	Stats          = core.Stats
	Option         = core.Option
)

// Member kinds re-exported from core
const (
	KindRegularObject    = core.KindRegularObject
	KindImportDescriptor = core.KindImportDescriptor
)

// Errors re-exported from core
var ErrNotAnArchive = core.ErrNotAnArchive

type (
	CorruptMemberError      = core.CorruptMemberError
	UnrecognizedMemberError = core.UnrecognizedMemberError
	FieldOverflowError      = core.FieldOverflowError
	PipelineError           = core.PipelineError
)

// Run options re-exported from core
var (
	WithWorkers = core.WithWorkers
	WithTracker = core.WithTracker
	WithLogger  = core.WithLogger
)

// NewTracker returns a progress tracker for WithTracker
func NewTracker() *progress.Tracker {
	return progress.New(nil)
}

// Decode is a wrapper around core.Decode
func Decode(data []byte) ([]Member, error) {
	return core.Decode(data)
}

// Encode is a wrapper around core.Encode
func Encode(members []Member) ([]byte, error) {
	return core.Encode(members)
}

// Classify is a wrapper around core.Classify
func Classify(payload []byte) (Classification, error) {
	return core.Classify(payload)
}

// PartitionMembers is a wrapper around core.PartitionMembers
func PartitionMembers(classified []Classified, policy Policy) Partition {
	return core.PartitionMembers(classified, policy)
}

// Run is a wrapper around core.Run
func Run(source []byte, policy Policy, opts ...Option) (*Result, error) {
	return core.Run(source, policy, opts...)
}

// List is a wrapper around core.List
func List(source []byte) ([]Entry, error) {
	return core.List(source)
}

// ReadLibrary is a wrapper around fileio.ReadLibrary
func ReadLibrary(path string) ([]byte, error) {
	return fileio.ReadLibrary(path)
}
