package appdir

import "github.com/pkg/errors"

// Kind classifies deployment failures so callers can branch on the failure
// class without string matching.
type Kind int

const (
	KindParse Kind = iota
	KindDependencyNotFound
	KindExcludePattern
	KindFileSystem
	KindSubprocess
	KindImageDecode
	KindIconResolution
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindDependencyNotFound:
		return "DependencyNotFound"
	case KindExcludePattern:
		return "ExcludePatternError"
	case KindFileSystem:
		return "FileSystemError"
	case KindSubprocess:
		return "SubprocessError"
	case KindImageDecode:
		return "ImageDecodeError"
	case KindIconResolution:
		return "IconResolutionError"
	case KindValidation:
		return "ValidationError"
	default:
		return "UnknownError"
	}
}

// Error is the tagged error type every operation in this package returns for
// domain failures, so callers can branch on Kind without string matching.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return e.Kind.String() + " (" + e.Path + "): " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Cause() error { return e.Err }
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, path string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Path: path, Err: errors.Errorf(format, args...)}
}

func wrapErr(kind Kind, path string, err error, context string) *Error {
	return &Error{Kind: kind, Path: path, Err: errors.Wrap(err, context)}
}
