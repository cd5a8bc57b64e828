package mdl

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTree reports an input tree the codec cannot lay out.
	ErrMalformedTree = errors.New("malformed tree")
	// ErrUnsupportedFeature reports data the binary form cannot carry.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrIO reports a failure writing either output stream.
	ErrIO = errors.New("i/o failure")
)

// TreeError locates a validation failure at a node.
type TreeError struct {
	Index int // flattened index, -1 when the node was never reached
	Name  string
	Err   error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("node %d %q: %v", e.Index, e.Name, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

// IOError wraps a write failure on one of the output streams.
type IOError struct {
	Path string // file path or stream name
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrIO and the underlying cause to errors.Is.
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

func nodeErr(index int, name string, kind error, format string, args ...any) error {
	return &TreeError{
		Index: index,
		Name:  name,
		Err:   fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}
