package core

import (
	"errors"
	"fmt"
)

// ErrNotAnArchive is returned when the input does not start with Magic.
var ErrNotAnArchive = errors.New("not a COFF archive: missing !<arch> signature")

// CorruptMemberError reports a malformed or truncated member header or
// payload. Offset is the position of the faulting header.
type CorruptMemberError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *CorruptMemberError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt archive member at %#x: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt archive member at %#x: %s", e.Offset, e.Reason)
}

func (e *CorruptMemberError) Unwrap() error {
	return e.Err
}

// UnrecognizedMemberError reports a payload that is neither a COFF object
// nor an import descriptor. Cause is the object parse failure. Offset is
// negative when the payload was classified outside of an archive.
type UnrecognizedMemberError struct {
	Offset int64
	Name   []byte
	Cause  error
}

func (e *UnrecognizedMemberError) Error() string {
	where := ""
	if len(e.Name) > 0 {
		where = fmt.Sprintf(" %q", DisplayName(e.Name))
	}
	if e.Offset >= 0 {
		where += fmt.Sprintf(" at %#x", e.Offset)
	}
	return fmt.Sprintf("unrecognised archive member%s: %v", where, e.Cause)
}

func (e *UnrecognizedMemberError) Unwrap() error {
	return e.Cause
}

// FieldOverflowError reports a value that does not fit its fixed-width
// header field.
type FieldOverflowError struct {
	Field       string
	MemberIndex int
	Value       string
}

func (e *FieldOverflowError) Error() string {
	return fmt.Sprintf("member %d: %s value %s does not fit the header field", e.MemberIndex, e.Field, e.Value)
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageDecode         Stage = "decode"
	StageClassify       Stage = "classify"
	StageEncodeKept     Stage = "encode kept members"
	StageEncodeExcluded Stage = "encode excluded members"
)

// PipelineError is the single error returned by Run.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
