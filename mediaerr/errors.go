// Package mediaerr defines the closed error taxonomy returned across the
// decoder/reader/tmb boundary. No codec-specific error escapes this
// package: the decoder implementation maps every FFmpeg return code into
// one of these codes before it reaches a caller.
package mediaerr

import "fmt"

// Code is a closed taxonomy; callers switch on it instead of matching
// message strings.
type Code int

const (
	Ok Code = iota
	FileNotFound
	Unsupported
	DecodeFailed
	SeekFailed
	EOFReached
	InvalidArg
	Internal
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case FileNotFound:
		return "FileNotFound"
	case Unsupported:
		return "Unsupported"
	case DecodeFailed:
		return "DecodeFailed"
	case SeekFailed:
		return "SeekFailed"
	case EOFReached:
		return "EOFReached"
	case InvalidArg:
		return "InvalidArg"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by decoder/reader/tmb operations.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is match any *Error target with the same Code (its
// Message is ignored), so callers can check "was this EOF" with
// errors.Is(err, mediaerr.NewEOF()) without an intermediate errors.As.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewFileNotFound(path string) *Error {
	return &Error{Code: FileNotFound, Message: "file not found: " + path}
}

func NewUnsupported(detail string) *Error {
	return &Error{Code: Unsupported, Message: detail}
}

func NewDecodeFailed(detail string) *Error {
	return &Error{Code: DecodeFailed, Message: detail}
}

func NewSeekFailed(detail string) *Error {
	return &Error{Code: SeekFailed, Message: detail}
}

func NewEOF() *Error {
	return &Error{Code: EOFReached, Message: "end of file reached"}
}

func NewInvalidArg(detail string) *Error {
	return &Error{Code: InvalidArg, Message: detail}
}

func NewInternal(detail string) *Error {
	return &Error{Code: Internal, Message: detail}
}

// CodeOf extracts the Code from err, or Internal if err is not a
// *mediaerr.Error (a programmer error somewhere failed to map it).
func CodeOf(err error) Code {
	var me *Error
	if asError(err, &me) {
		return me.Code
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
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
