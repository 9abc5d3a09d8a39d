package synclog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the log file does not exist.
	ErrNotFound = errors.New("log file not found")

	// ErrEncoding is returned when the log content is not valid UTF-8 text.
	ErrEncoding = errors.New("log is not valid UTF-8 text")
)

// IOError reports that a log could not be read as text. It is the only
// error the parser produces; malformed but readable content never fails.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read log: %v", e.Err)
	}
	return fmt.Sprintf("read log %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err is (or wraps) an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
