package aeon

import (
	"errors"
	"fmt"
)

// ContainerError reports that the archive container could not be read or
// written. The pre-existing archive on disk is always left valid when a
// ContainerError is returned from Save.
type ContainerError struct {
	Op   string // "open" or "save"
	Path string
	Msg  string
	Err  error
}

func (e *ContainerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Msg)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// IsContainerError reports whether err is a ContainerError, unwrapping as
// needed.
func IsContainerError(err error) bool {
	var ce *ContainerError
	return errors.As(err, &ce)
}

// SchemaError reports that the document lacks a structural element the
// sync engine cannot invent, such as the calendar era that anchors all
// timestamps.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string {
	return e.Msg
}

// IsSchemaError reports whether err is a SchemaError, unwrapping as
// needed.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
