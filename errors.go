package jesfs

import (
	"reflect"

	"github.com/dsoprea/go-logging"

	"github.com/jesfs/go-jesfs/flash"
)

// Error and Code are the same stable taxonomy the flash command layer uses
// (spec §6.3) — one set of negative codes spans hardware, identification,
// formatting, addressing, directory, descriptor, and filesystem-state
// errors, so a caller never needs to know which layer raised one.
type Error = flash.Error
type Code = flash.Code

const (
	CodeSpiInit                = flash.CodeSpiInit
	CodeTimeout                = flash.CodeTimeout
	CodeWriteLocked            = flash.CodeWriteLocked
	CodeUnknownType            = flash.CodeUnknownType
	CodeBadDensity             = flash.CodeBadDensity
	CodeBadAddress             = flash.CodeBadAddress
	CodeSectorBoundary         = flash.CodeSectorBoundary
	CodeIdMismatch             = flash.CodeIdMismatch
	CodeBadName                = flash.CodeBadName
	CodeIndexFull              = flash.CodeIndexFull
	CodeOutOfSpace             = flash.CodeOutOfSpace
	CodeCorrupt                = flash.CodeCorrupt
	CodeBadStatIndex           = flash.CodeBadStatIndex
	CodeBadDescriptor          = flash.CodeBadDescriptor
	CodeNotWritable            = flash.CodeNotWritable
	CodeIndexOutOfRange        = flash.CodeIndexOutOfRange
	CodeBadSectorAddress       = flash.CodeBadSectorAddress
	CodeChainLoop              = flash.CodeChainLoop
	CodeOwnerMismatch          = flash.CodeOwnerMismatch
	CodeBadSectorType          = flash.CodeBadSectorType
	CodeNotFound               = flash.CodeNotFound
	CodeRenameBadFlags         = flash.CodeRenameBadFlags
	CodeBadHeader              = flash.CodeBadHeader
	CodeDescriptorCorrupt      = flash.CodeDescriptorCorrupt
	CodeWriteUnknownEnd        = flash.CodeWriteUnknownEnd
	CodeRenameBothOpen         = flash.CodeRenameBothOpen
	CodeRenameNeedsEmptyTarget = flash.CodeRenameNeedsEmptyTarget
	CodeEraseFailed            = flash.CodeEraseFailed
	CodeWriteFailed            = flash.CodeWriteFailed
	CodeVerifyFailed           = flash.CodeVerifyFailed
	CodeSupplyLow              = flash.CodeSupplyLow
	CodeBadFormatParameter     = flash.CodeBadFormatParameter
	CodeAlreadySleeping        = flash.CodeAlreadySleeping
	CodeSleepingBusy           = flash.CodeSleepingBusy
	CodeUnformatted            = flash.CodeUnformatted
)

// NewError builds an *Error carrying code, with no wrapped cause.
func NewError(code Code, context string) *Error {
	return flash.NewError(code, context)
}

// WrapError builds an *Error carrying code and wrapping cause.
func WrapError(code Code, context string, cause error) *Error {
	return flash.WrapError(code, context, cause)
}

// CodeOf extracts the Code from err, if any.
func CodeOf(err error) (Code, bool) {
	return flash.CodeOf(err)
}

// recoverErr is the standard boundary every exported FS method installs via
// defer, converting an internal log.PanicIf/log.Panicf panic into the
// method's returned error — the same shape go-exfat uses throughout
// navigator.go/tree.go, just applied to this package's own operations
// instead of directory-entry parsing.
func recoverErr(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*Error); ok {
		*err = fe
		return
	}
	if asErr, ok := r.(error); ok {
		*err = log.Wrap(asErr)
		return
	}
	*err = log.Errorf("non-error panic: [%s] [%v]", reflect.TypeOf(r).Name(), r)
}

func panicOn(code Code, context string, err error) {
	if err != nil {
		panic(WrapError(code, context, err))
	}
}
