package formula

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference, circular reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function or name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number outside a function's domain
	ErrorCodeNA    ErrorCode = 7 // #N/A - value not available
)

// ErrorMapper maps error codes to their display text
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
}

// storageCodes is the fixed mapping to the integer codes used by the
// BIFF file format.
var storageCodes = map[ErrorCode]uint8{
	ErrorCodeNull:  0x00,
	ErrorCodeDiv0:  0x07,
	ErrorCodeValue: 0x0F,
	ErrorCodeRef:   0x17,
	ErrorCodeName:  0x1D,
	ErrorCodeNum:   0x24,
	ErrorCodeNA:    0x2A,
}

func (c ErrorCode) String() string {
	if text, ok := ErrorMapper[c]; ok {
		return text
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// Valid reports whether c is one of the seven known codes
func (c ErrorCode) Valid() bool {
	_, ok := ErrorMapper[c]
	return ok
}

// StorageCode returns the stable interop code for c as written by the
// stored file format.
func (c ErrorCode) StorageCode() uint8 {
	code, ok := storageCodes[c]
	if !ok {
		panic(fmt.Sprintf("formula: no storage code for %v", c))
	}
	return code
}

// ErrorCodeFromStorage maps a stored file-format error code back to an
// ErrorCode
func ErrorCodeFromStorage(code uint8) (ErrorCode, bool) {
	for c, stored := range storageCodes {
		if stored == code {
			return c, true
		}
	}
	return 0, false
}

// ParseErrorCode parses display text such as "#DIV/0!" (case-insensitive)
func ParseErrorCode(text string) (ErrorCode, bool) {
	text = strings.ToUpper(strings.TrimSpace(text))
	for c, display := range ErrorMapper {
		if display == text {
			return c, true
		}
	}
	return 0, false
}

// SpreadsheetError is the error variant of Value. errors flow through
// evaluation as ordinary values; Message is diagnostic only and never
// affects equality.
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Is matches any *SpreadsheetError carrying the same code
func (e *SpreadsheetError) Is(target error) bool {
	var other *SpreadsheetError
	if errors.As(target, &other) {
		return other.ErrorCode == e.ErrorCode
	}
	return false
}

func (e *SpreadsheetError) Kind() ValueKind { return KindError }

func (e *SpreadsheetError) String() string { return e.ErrorCode.String() }

func (*SpreadsheetError) value() {}

// NewSpreadsheetError creates an error value. an empty message falls back
// to the display text.
func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// shared instances for the common cases
var (
	ErrNull  = &SpreadsheetError{ErrorCode: ErrorCodeNull}
	ErrDiv0  = &SpreadsheetError{ErrorCode: ErrorCodeDiv0}
	ErrValue = &SpreadsheetError{ErrorCode: ErrorCodeValue}
	ErrRef   = &SpreadsheetError{ErrorCode: ErrorCodeRef}
	ErrName  = &SpreadsheetError{ErrorCode: ErrorCodeName}
	ErrNum   = &SpreadsheetError{ErrorCode: ErrorCodeNum}
	ErrNA    = &SpreadsheetError{ErrorCode: ErrorCodeNA}
)

// ErrorFor returns the shared error value for code
func ErrorFor(code ErrorCode) *SpreadsheetError {
	switch code {
	case ErrorCodeNull:
		return ErrNull
	case ErrorCodeDiv0:
		return ErrDiv0
	case ErrorCodeValue:
		return ErrValue
	case ErrorCodeRef:
		return ErrRef
	case ErrorCodeName:
		return ErrName
	case ErrorCodeNum:
		return ErrNum
	case ErrorCodeNA:
		return ErrNA
	}
	panic(fmt.Sprintf("formula: unknown error code %d", uint8(code)))
}

// FirstError returns the left-most error value in args, or nil
func FirstError(args ...Value) *SpreadsheetError {
	for _, arg := range args {
		if err, ok := arg.(*SpreadsheetError); ok {
			return err
		}
	}
	return nil
}

// SameError reports whether v is an error value with the given code
func SameError(v Value, code ErrorCode) bool {
	err, ok := v.(*SpreadsheetError)
	return ok && err.ErrorCode == code
}

// AppErrorCode represents gRPC-style error codes for application-level
// errors. these never appear inside a cell.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller specified an invalid address,
	// formula or definition.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (sheet, named range) was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the operation was rejected because the
	// system is not in a state required for its execution.
	FailedPrecondition AppErrorCode = 9

	// Unimplemented indicates a function or operator the engine knows about
	// but does not evaluate.
	Unimplemented AppErrorCode = 12

	// Internal errors. some invariant expected by the engine is broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// ErrUnimplemented is matched by every UnimplementedError
var ErrUnimplemented = errors.New("not implemented")

// UnimplementedError is returned when evaluation reaches a function or
// operator without an implementation. it is a Go error, never a cell value,
// so callers can tell it apart from #VALUE!.
type UnimplementedError struct {
	Function string
	Cell     string
	Err      error
}

func (e *UnimplementedError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Function, ErrUnimplemented)
	if e.Cell != "" {
		msg = "error evaluating cell " + e.Cell + ": " + msg
	}
	if e.Err != nil && !errors.Is(e.Err, ErrUnimplemented) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnimplementedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnimplemented, e.Err}
	}
	return []error{ErrUnimplemented}
}

// AppCode lets transport layers map the failure like any other AppError
func (e *UnimplementedError) AppCode() AppErrorCode { return Unimplemented }

// NewUnimplementedError creates an UnimplementedError for function
func NewUnimplementedError(function string) *UnimplementedError {
	return &UnimplementedError{Function: function}
}
