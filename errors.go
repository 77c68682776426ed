package txdecode

import (
	"errors"
	"fmt"
)

// Errors returned by the decoders. Every failure is a returned value carrying
// the smallest unit that observed the violation (section name, argument path
// or instruction index); decoders never panic and never return partial
// results alongside an error.
var (
	ErrInputEmpty    = errors.New("input is empty")
	ErrOddHexLength  = errors.New("hex input has an odd number of characters")
	ErrInvalidHex    = errors.New("input is not valid hex")
	ErrInvalidBase64 = errors.New("input is not valid base64")

	// ErrDiscriminatorNotFound is returned when no instruction in an IDL has a
	// discriminator matching the leading bytes of the instruction data.
	ErrDiscriminatorNotFound = errors.New("no instruction discriminator matches the instruction data")

	// ErrUnsupportedVersion is reserved. The decoder currently treats any
	// first byte other than 0x80 as a legacy message, so it is never
	// returned; a future version prefix would surface it.
	ErrUnsupportedVersion = errors.New("unsupported message version")

	// ErrUnknownSplInstructionTag is documentation only: unknown token
	// program tags are silently skipped rather than reported, so the
	// decoder never returns this value.
	ErrUnknownSplInstructionTag = errors.New("unknown spl instruction tag")
)

// InsufficientBytesError reports that a length-checked read ran past the end
// of the buffer. Section names the field being parsed at that point.
type InsufficientBytesError struct {
	Section string
}

func (e *InsufficientBytesError) Error() string {
	return fmt.Sprintf("insufficient bytes while parsing %s", e.Section)
}

// ExtraneousBytesError reports bytes left over after a parse that must
// consume its whole input.
type ExtraneousBytesError struct {
	Section string
}

func (e *ExtraneousBytesError) Error() string {
	return fmt.Sprintf("extraneous bytes at end of %s", e.Section)
}

// CompactU16Error reports a malformed compact-u16 header.
type CompactU16Error struct {
	Reason string
}

func (e *CompactU16Error) Error() string {
	return fmt.Sprintf("malformed compact-u16: %s", e.Reason)
}

// OutOfRangeAccountIndexError reports an instruction account index that
// resolves neither to a static account nor to an address-table-lookup slot.
type OutOfRangeAccountIndexError struct {
	Instruction int
	Slot        int
}

func (e *OutOfRangeAccountIndexError) Error() string {
	return fmt.Sprintf("instruction %d: account index %d out of range", e.Instruction, e.Slot)
}

// InvalidAccountCountError reports a native-program instruction carrying the
// wrong number of accounts for its operation.
type InvalidAccountCountError struct {
	Operation string
	Expected  int
	Actual    int
}

func (e *InvalidAccountCountError) Error() string {
	return fmt.Sprintf("%s expects %d accounts, got %d", e.Operation, e.Expected, e.Actual)
}

// IdlError reports an IDL document that could not be loaded.
type IdlError struct {
	Reason string
}

func (e *IdlError) Error() string {
	return "unable to parse IDL: " + e.Reason
}

// IdlMissingKeyError reports a required top-level key absent from an IDL.
type IdlMissingKeyError struct {
	Key string
}

func (e *IdlMissingKeyError) Error() string {
	return fmt.Sprintf("key %q not found in IDL", e.Key)
}

// IdlArrayExpectedError reports a top-level IDL key whose value is not an
// array.
type IdlArrayExpectedError struct {
	Key string
}

func (e *IdlArrayExpectedError) Error() string {
	return fmt.Sprintf("value for IDL key %q must be a JSON array", e.Key)
}

// IdlTypeCycleError reports a defined type that participates in a reference
// cycle. Name is the first type on the cycle encountered by the check.
type IdlTypeCycleError struct {
	Name string
}

func (e *IdlTypeCycleError) Error() string {
	return fmt.Sprintf("IDL type %q is part of a reference cycle", e.Name)
}

// IdlDuplicateTypeError reports two defined types sharing a name.
type IdlDuplicateTypeError struct {
	Name string
}

func (e *IdlDuplicateTypeError) Error() string {
	return fmt.Sprintf("IDL defines type %q more than once", e.Name)
}

// InvalidUtf8Error reports a string field whose bytes are not valid UTF-8.
// Path is the argument position path that observed the failure.
type InvalidUtf8Error struct {
	Path string
}

func (e *InvalidUtf8Error) Error() string {
	return fmt.Sprintf("%s: string is not valid UTF-8", e.Path)
}

// TooFewAccountsError reports a runtime account list shorter than the account
// list the matched IDL instruction declares.
type TooFewAccountsError struct {
	Instruction string
	Expected    int
	Actual      int
}

func (e *TooFewAccountsError) Error() string {
	return fmt.Sprintf("instruction %s declares %d accounts, transaction provides %d", e.Instruction, e.Expected, e.Actual)
}

// SelectorCollisionError reports two ABI functions hashing to the same 4-byte
// selector.
type SelectorCollisionError struct {
	Selector [4]byte
}

func (e *SelectorCollisionError) Error() string {
	return fmt.Sprintf("duplicate function selector %02x%02x%02x%02x in ABI", e.Selector[0], e.Selector[1], e.Selector[2], e.Selector[3])
}
