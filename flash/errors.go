package flash

import "fmt"

// Code is the stable taxonomy of negative error codes from spec §6.3/§7.
// Codes are never repurposed; additions only ever append.
type Code int

const (
	CodeSpiInit                Code = -100
	CodeTimeout                Code = -101
	CodeWriteLocked            Code = -102
	CodeUnknownType            Code = -104
	CodeBadDensity             Code = -103
	CodeBadAddress             Code = -105
	CodeSectorBoundary         Code = -106
	CodeIdMismatch             Code = -109
	CodeBadName                Code = -110
	CodeIndexFull              Code = -111
	CodeOutOfSpace             Code = -113
	CodeCorrupt                Code = -114
	CodeBadStatIndex           Code = -115
	CodeBadDescriptor          Code = -117
	CodeNotWritable            Code = -118
	CodeIndexOutOfRange        Code = -119
	CodeBadSectorAddress       Code = -120
	CodeChainLoop              Code = -121
	CodeOwnerMismatch          Code = -122
	CodeBadSectorType          Code = -123
	CodeNotFound               Code = -124
	CodeRenameBadFlags         Code = -125
	CodeBadHeader              Code = -126
	CodeDescriptorCorrupt      Code = -129
	CodeWriteUnknownEnd        Code = -130
	CodeRenameBothOpen         Code = -131
	CodeRenameNeedsEmptyTarget Code = -132
	CodeEraseFailed            Code = -136
	CodeWriteFailed            Code = -137
	CodeVerifyFailed           Code = -138
	CodeSupplyLow              Code = -139
	CodeBadFormatParameter     Code = -140
	CodeAlreadySleeping        Code = -141
	CodeSleepingBusy           Code = -142
	CodeUnformatted            Code = -150
)

// Error is the single error type exposed across the module. Every fallible
// operation returns one of these (wrapped in a plain error interface) rather
// than panicking out to the caller.
type Error struct {
	Code    Code
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("jesfs: %s (code %d): %s", e.Context, e.Code, e.Cause)
	}
	return fmt.Sprintf("jesfs: %s (code %d)", e.Context, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an *Error carrying the given code.
func NewError(code Code, context string) *Error {
	return &Error{Code: code, Context: context}
}

// WrapError builds an *Error carrying the given code and wrapping cause.
func WrapError(code Code, context string, cause error) *Error {
	return &Error{Code: code, Context: context, Cause: cause}
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error; returns 0, false otherwise.
func CodeOf(err error) (Code, bool) {
	var fe *Error
	if asError(err, &fe) {
		return fe.Code, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
