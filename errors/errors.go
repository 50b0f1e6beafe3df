package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
)

var callerTag = regexp.MustCompile(`\[[^\[\]\s]+:\d+\] `)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(2), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(2), fmt.Sprintf(format, a...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error wrapping the non-nil errors, or nil if there are
// none.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Recover turns a value obtained from recover() into an error. Errors are
// returned unchanged so their message survives; other values are formatted
// with %v. A nil value yields nil.
func Recover(r any) error {
	switch v := r.(type) {
	case nil:
		return nil
	case error:
		return v
	case string:
		return stderrors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

// Message returns err's text without the [file:line] tags added by New and
// Wrapf, for showing to users. A nil error yields "".
func Message(err error) string {
	if err == nil {
		return ""
	}
	return callerTag.ReplaceAllString(err.Error(), "")
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
